package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatroom-service/internal/models"
)

type historianMock struct {
	mock.Mock
}

func (m *historianMock) History(ctx context.Context) ([]models.Message, error) {
	args := m.Called(ctx)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/messages", handler.ListMessages)
	return r
}

func TestListMessagesReturnsHistoryInOrder(t *testing.T) {
	historian := new(historianMock)
	router := setupMessageRouter(NewMessageHandler(historian))

	historian.On("History", mock.Anything).Return([]models.Message{
		{ID: 1, AuthorID: 1, AuthorUsername: "alice", Text: "hi"},
		{ID: 2, AuthorID: 2, AuthorUsername: "bob", Text: "hello"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, 1, resp.Messages[0].ID)
	assert.Equal(t, 2, resp.Messages[1].ID)
	historian.AssertExpectations(t)
}

func TestListMessagesEmptyHistory(t *testing.T) {
	historian := new(historianMock)
	router := setupMessageRouter(NewMessageHandler(historian))

	historian.On("History", mock.Anything).Return(nil, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestListMessagesStorageError(t *testing.T) {
	historian := new(historianMock)
	router := setupMessageRouter(NewMessageHandler(historian))

	historian.On("History", mock.Anything).Return(nil, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
