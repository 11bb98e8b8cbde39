package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatroom-service/internal/media"
	"chatroom-service/internal/mocks"
	"chatroom-service/internal/models"
	"chatroom-service/internal/repositories"
)

func newTestPipeline() (*Pipeline, *mocks.MessageRepositoryMock, *mocks.UserRepositoryMock, *mocks.PresenceCheckerMock, *mocks.BroadcasterMock) {
	msgRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	checker := new(mocks.PresenceCheckerMock)
	broadcaster := new(mocks.BroadcasterMock)
	return NewPipeline(msgRepo, userRepo, checker, broadcaster), msgRepo, userRepo, checker, broadcaster
}

func TestSubmitRejectsUnboundSender(t *testing.T) {
	pipe, msgRepo, _, checker, broadcaster := newTestPipeline()
	checker.On("IsOnline", 9).Return(false).Once()

	_, err := pipe.Submit(context.Background(), SubmitRequest{AuthorID: 9, Text: "hi"})

	require.ErrorIs(t, err, ErrUnauthenticated)
	msgRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	broadcaster.AssertNotCalled(t, "BroadcastMessage", mock.Anything)
}

func TestSubmitRejectsEmptyMessage(t *testing.T) {
	pipe, msgRepo, _, checker, broadcaster := newTestPipeline()
	checker.On("IsOnline", 1).Return(true).Once()

	_, err := pipe.Submit(context.Background(), SubmitRequest{AuthorID: 1})

	require.ErrorIs(t, err, ErrEmptyMessage)
	msgRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	broadcaster.AssertNotCalled(t, "BroadcastMessage", mock.Anything)
}

func TestSubmitCodecFailureAbortsPersistence(t *testing.T) {
	pipe, msgRepo, _, checker, broadcaster := newTestPipeline()
	checker.On("IsOnline", 1).Return(true)

	// oversized payload
	_, err := pipe.Submit(context.Background(), SubmitRequest{
		AuthorID:   1,
		Attachment: &RawAttachment{Data: make([]byte, 6<<20), MimeType: "image/png", Kind: media.KindImage},
	})
	require.ErrorIs(t, err, ErrInvalidAttachment)
	require.ErrorIs(t, err, media.ErrPayloadTooLarge)

	// wrong mime for the declared kind
	_, err = pipe.Submit(context.Background(), SubmitRequest{
		AuthorID:   1,
		Attachment: &RawAttachment{Data: []byte("x"), MimeType: "audio/mpeg", Kind: media.KindImage},
	})
	require.ErrorIs(t, err, ErrInvalidAttachment)
	require.ErrorIs(t, err, media.ErrUnsupportedMediaType)

	msgRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	broadcaster.AssertNotCalled(t, "BroadcastMessage", mock.Anything)
}

func TestSubmitPersistenceFailureProducesNoBroadcast(t *testing.T) {
	pipe, msgRepo, userRepo, checker, broadcaster := newTestPipeline()
	checker.On("IsOnline", 1).Return(true).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, mock.Anything).Return(models.Message{}, assert.AnError).Once()

	_, err := pipe.Submit(context.Background(), SubmitRequest{AuthorID: 1, Text: "hi"})

	require.ErrorIs(t, err, ErrPersistence)
	broadcaster.AssertNotCalled(t, "BroadcastMessage", mock.Anything)
}

func TestSubmitSuccessBroadcastsPersistedMessage(t *testing.T) {
	pipe, msgRepo, userRepo, checker, broadcaster := newTestPipeline()
	checker.On("IsOnline", 1).Return(true).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice", ProfilePicType: "image/png"}, nil).Once()

	persisted := models.Message{ID: 7, AuthorID: 1, AuthorUsername: "alice", Text: "hi"}
	msgRepo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.AuthorID == 1 && msg.AuthorUsername == "alice" && msg.Text == "hi"
	})).Return(persisted, nil).Once()
	broadcaster.On("BroadcastMessage", persisted).Once()

	got, err := pipe.Submit(context.Background(), SubmitRequest{AuthorID: 1, Text: "hi"})

	require.NoError(t, err)
	assert.Equal(t, persisted, got)
	msgRepo.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
}

func TestSubmitWithAttachmentStoresEncodedPayload(t *testing.T) {
	pipe, msgRepo, userRepo, checker, broadcaster := newTestPipeline()
	checker.On("IsOnline", 1).Return(true).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()

	raw := []byte{0x01, 0x02, 0x03}
	msgRepo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		if msg.Attachment == nil {
			return false
		}
		decoded, err := media.Decode(*msg.Attachment)
		return err == nil && string(decoded) == string(raw) && msg.Attachment.Kind == "image"
	})).Return(models.Message{ID: 1}, nil).Once()
	broadcaster.On("BroadcastMessage", mock.Anything).Once()

	_, err := pipe.Submit(context.Background(), SubmitRequest{
		AuthorID:   1,
		Attachment: &RawAttachment{Data: raw, MimeType: "image/png", Kind: media.KindImage},
	})

	require.NoError(t, err)
	msgRepo.AssertExpectations(t)
}

func TestSubmitUnknownAuthorRejected(t *testing.T) {
	pipe, msgRepo, userRepo, checker, _ := newTestPipeline()
	checker.On("IsOnline", 5).Return(true).Once()
	userRepo.On("GetUser", mock.Anything, 5).Return(models.User{}, repositories.ErrUserNotFound).Once()

	_, err := pipe.Submit(context.Background(), SubmitRequest{AuthorID: 5, Text: "hi"})

	require.ErrorIs(t, err, ErrUnauthenticated)
	msgRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

// seqRepo assigns ids in persistence-completion order, like the SERIAL
// column does.
type seqRepo struct {
	mu   sync.Mutex
	seq  int
	msgs []models.Message
}

func (r *seqRepo) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	msg.ID = r.seq
	r.msgs = append(r.msgs, msg)
	return msg, nil
}

func (r *seqRepo) ListMessages(_ context.Context) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, len(r.msgs))
	copy(out, r.msgs)
	return out, nil
}

func TestRacingSubmitsOrderedByPersistenceCompletion(t *testing.T) {
	repo := &seqRepo{}
	userRepo := new(mocks.UserRepositoryMock)
	checker := new(mocks.PresenceCheckerMock)
	broadcaster := new(mocks.BroadcasterMock)
	checker.On("IsOnline", mock.Anything).Return(true)
	userRepo.On("GetUser", mock.Anything, mock.Anything).Return(models.User{ID: 1, Username: "alice"}, nil)
	broadcaster.On("BroadcastMessage", mock.Anything)

	pipe := NewPipeline(repo, userRepo, checker, broadcaster)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pipe.Submit(context.Background(), SubmitRequest{AuthorID: 1, Text: "race"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs, err := pipe.History(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i, msg := range msgs {
		assert.Equal(t, i+1, msg.ID, "sequence ids must be dense and ascending regardless of call-start order")
	}
}

func TestHistoryReturnsSequenceOrder(t *testing.T) {
	pipe, msgRepo, _, _, _ := newTestPipeline()
	stored := []models.Message{{ID: 1, Text: "first"}, {ID: 2, Text: "second"}}
	msgRepo.On("ListMessages", mock.Anything).Return(stored, nil).Once()

	msgs, err := pipe.History(context.Background())

	require.NoError(t, err)
	assert.Equal(t, stored, msgs)
}

func TestHistoryMapsStorageFailure(t *testing.T) {
	pipe, msgRepo, _, _, _ := newTestPipeline()
	msgRepo.On("ListMessages", mock.Anything).Return(nil, assert.AnError).Once()

	_, err := pipe.History(context.Background())

	require.ErrorIs(t, err, ErrPersistence)
}
