package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"chatroom-service/internal/models"
)

// MessageRepository is the durable store for room messages. Inserts assign
// the sequence id (SERIAL) atomically with the write; ListMessages returns
// the full history in sequence order.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// messageRow flattens the nullable media columns for scanning.
type messageRow struct {
	ID               int            `db:"id"`
	AuthorID         int            `db:"author_id"`
	AuthorUsername   string         `db:"author_username"`
	AuthorPictureURL string         `db:"author_picture_url"`
	Body             string         `db:"body"`
	MediaKind        sql.NullString `db:"media_kind"`
	MediaType        sql.NullString `db:"media_type"`
	MediaData        sql.NullString `db:"media_data"`
	MediaSize        sql.NullInt64  `db:"media_size"`
	CreatedAt        sql.NullTime   `db:"created_at"`
}

func (row messageRow) toModel() models.Message {
	msg := models.Message{
		ID:               row.ID,
		AuthorID:         row.AuthorID,
		AuthorUsername:   row.AuthorUsername,
		AuthorPictureURL: row.AuthorPictureURL,
		Text:             row.Body,
		CreatedAt:        row.CreatedAt.Time,
	}
	if row.MediaKind.Valid {
		msg.Attachment = &models.Attachment{
			Kind:     row.MediaKind.String,
			MimeType: row.MediaType.String,
			Data:     row.MediaData.String,
			Size:     row.MediaSize.Int64,
		}
	}
	return msg
}

const messageColumns = `id, author_id, author_username, author_picture_url, body, media_kind, media_type, media_data, media_size, created_at`

// CreateMessage appends a message and returns it with the server-assigned
// sequence id and persistence timestamp filled in.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var mediaKind, mediaType, mediaData, mediaSize interface{}
	if msg.Attachment != nil {
		mediaKind = msg.Attachment.Kind
		mediaType = msg.Attachment.MimeType
		mediaData = msg.Attachment.Data
		mediaSize = msg.Attachment.Size
	}

	var row messageRow
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (author_id, author_username, author_picture_url, body, media_kind, media_type, media_data, media_size)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+messageColumns,
		msg.AuthorID, msg.AuthorUsername, msg.AuthorPictureURL, msg.Text, mediaKind, mediaType, mediaData, mediaSize).
		StructScan(&row)
	if err != nil {
		return models.Message{}, err
	}
	return row.toModel(), nil
}

// ListMessages returns all messages ordered by sequence id ascending. The id
// is the order key; created_at is informational and may collide.
func (r *MessageRepo) ListMessages(ctx context.Context) ([]models.Message, error) {
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+messageColumns+` FROM messages ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toModel())
	}
	return msgs, nil
}
