package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chatroom-service/internal/media"
	"chatroom-service/internal/models"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/repositories"
)

var (
	ErrUnauthenticated   = errors.New("sender is not joined to the room")
	ErrEmptyMessage      = errors.New("message has neither text nor attachment")
	ErrInvalidAttachment = errors.New("invalid attachment")
	ErrPersistence       = errors.New("message persistence failed")
)

// PresenceChecker is the read-only presence view the pipeline needs.
type PresenceChecker interface {
	IsOnline(userID int) bool
}

// Broadcaster fans a persisted message out to every connected client,
// sender included.
type Broadcaster interface {
	BroadcastMessage(msg models.Message)
}

// RawAttachment is an inbound media payload before validation.
type RawAttachment struct {
	Data     []byte
	MimeType string
	Kind     media.Kind
}

// SubmitRequest is one inbound send event.
type SubmitRequest struct {
	AuthorID   int
	Text       string
	Attachment *RawAttachment
}

// Pipeline validates, orders, persists and fans out room messages.
// Persistence is the ordering point: a message is observable only after the
// durable write assigned its sequence id, and two racing submits are ordered
// by persistence completion, not arrival.
type Pipeline struct {
	messages    repositories.MessageRepository
	users       repositories.UserRepository
	presence    PresenceChecker
	broadcaster Broadcaster
}

// NewPipeline constructs a Pipeline.
func NewPipeline(messages repositories.MessageRepository, users repositories.UserRepository, presence PresenceChecker, broadcaster Broadcaster) *Pipeline {
	return &Pipeline{
		messages:    messages,
		users:       users,
		presence:    presence,
		broadcaster: broadcaster,
	}
}

// Submit runs one message through validation, persistence and fan-out.
// Validation failures and persistence failures reach only the caller;
// nothing is broadcast unless the durable write succeeded. The returned
// message is for logging, the caller must not re-broadcast it.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (models.Message, error) {
	if !p.presence.IsOnline(req.AuthorID) {
		return models.Message{}, ErrUnauthenticated
	}
	if req.Text == "" && req.Attachment == nil {
		return models.Message{}, ErrEmptyMessage
	}

	var attachment *models.Attachment
	if req.Attachment != nil {
		encoded, err := media.Encode(req.Attachment.Data, req.Attachment.MimeType, req.Attachment.Kind)
		if err != nil {
			return models.Message{}, fmt.Errorf("%w: %w", ErrInvalidAttachment, err)
		}
		attachment = &encoded
	}

	author, err := p.users.GetUser(ctx, req.AuthorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.Message{}, ErrUnauthenticated
		}
		return models.Message{}, fmt.Errorf("%w: load author: %w", ErrPersistence, err)
	}

	persisted, err := p.messages.CreateMessage(ctx, models.Message{
		AuthorID:         author.ID,
		AuthorUsername:   author.Username,
		AuthorPictureURL: author.ProfilePictureURL(),
		Text:             req.Text,
		Attachment:       attachment,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	p.broadcaster.BroadcastMessage(persisted)
	observability.IncMessagePersisted()
	p.publishPersisted(ctx, persisted)

	return persisted, nil
}

// History returns the full room history ordered by sequence id ascending,
// used to hydrate a newly joining client before live events arrive.
func (p *Pipeline) History(ctx context.Context) ([]models.Message, error) {
	msgs, err := p.messages.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return msgs, nil
}

func (p *Pipeline) publishPersisted(ctx context.Context, msg models.Message) {
	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"id":        msg.ID,
			"author_id": msg.AuthorID,
			"has_media": msg.Attachment != nil,
		},
	}
	err := observability.PublishEvent(ctx, "chat_events.room", observability.EventEnvelope{
		EventType: "chat_events",
		EventName: "message_persisted",
		Payload:   payload,
	}, nil)
	if err != nil {
		log.Printf("publish message_persisted failed: %v", err)
	}
}
