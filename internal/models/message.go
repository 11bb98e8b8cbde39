package models

import "time"

// Message is a persisted room message. ID is the persistence sequence:
// assigned by the database at write time, strictly increasing, never reused.
// Author display fields are denormalized at send time.
type Message struct {
	ID               int         `db:"id" json:"id"`
	AuthorID         int         `db:"author_id" json:"author_id"`
	AuthorUsername   string      `db:"author_username" json:"author_username"`
	AuthorPictureURL string      `db:"author_picture_url" json:"author_picture_url"`
	Text             string      `db:"body" json:"text"`
	Attachment       *Attachment `db:"-" json:"attachment,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// Attachment is an inline media payload carried by a message. Data holds the
// base64 transport encoding of the original bytes; the payload is stored and
// delivered byte-identical, never transcoded.
type Attachment struct {
	Kind     string `db:"media_kind" json:"kind"`
	MimeType string `db:"media_type" json:"mime_type"`
	Data     string `db:"media_data" json:"data"`
	Size     int64  `db:"media_size" json:"size"`
}

// RoomEvent is the websocket envelope broadcast to clients. OnlineUsers has
// no omitempty: a presence frame for an empty room must still carry the list
// as a literal empty array, or clients keep displaying stale presence.
type RoomEvent struct {
	Type        string   `json:"type"`
	Message     *Message `json:"message,omitempty"`
	OnlineUsers []int    `json:"online_users"`
	UserID      int      `json:"user_id,omitempty"`
	Error       string   `json:"error,omitempty"`
}

const (
	EventPresence = "presence"
	EventMessage  = "message"
	EventTyping   = "typing"
	EventError    = "error"
)
