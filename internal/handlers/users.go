package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatroom-service/internal/media"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/repositories"
	"chatroom-service/internal/telemetry"
)

// UserHandler serves profile creation. Usernames are immutable: posting an
// existing username returns the stored profile and ignores the upload.
type UserHandler struct {
	users   repositories.UserRepository
	emitter *telemetry.AuditEmitter
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users repositories.UserRepository, emitter *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{users: users, emitter: emitter}
}

// CreateUser handles POST /api/users: multipart form with a username and an
// optional profilePic image, validated through the media codec.
func (h *UserHandler) CreateUser(c *gin.Context) {
	username := c.PostForm("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	picData := ""
	picType := "image/png"
	file, header, err := c.Request.FormFile("profilePic")
	if err == nil {
		defer file.Close()

		raw, readErr := io.ReadAll(io.LimitReader(file, media.MaxPayloadBytes+1))
		if readErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read profile picture"})
			return
		}
		att, encErr := media.Encode(raw, header.Header.Get("Content-Type"), media.KindImage)
		if encErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": encErr.Error()})
			return
		}
		picData = att.Data
		picType = att.MimeType
	}

	user, err := h.users.FindOrCreateUser(c.Request.Context(), username, picData, picType)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateUsername) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
		return
	}

	h.emitter.Emit(c.Request.Context(), "INFO", "profile resolved: "+user.Username, requestIDFromContext(c), nil)
	_ = observability.PublishEvent(c.Request.Context(), "chat_events.users", observability.EventEnvelope{
		EventType: "chat_events",
		EventName: "profile_resolved",
		Payload:   map[string]interface{}{"user_id": user.ID, "username": user.Username},
	}, nil)

	c.JSON(http.StatusOK, gin.H{
		"id":                  user.ID,
		"username":            user.Username,
		"profile_picture_url": user.ProfilePictureURL(),
	})
}
