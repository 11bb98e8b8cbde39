package media

import (
	"encoding/base64"
	"errors"
	"fmt"

	"chatroom-service/internal/models"
)

// MaxPayloadBytes caps inline attachments at 5 MiB, matching the upload limit
// enforced on profile pictures.
const MaxPayloadBytes = 5 << 20

var (
	ErrPayloadTooLarge      = errors.New("attachment payload too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// Kind classifies an attachment payload.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// allowedTypes maps each kind to its permitted MIME types. Payloads are
// stored as-is; the allow-list is the only inspection performed.
var allowedTypes = map[Kind]map[string]bool{
	KindImage: {
		"image/jpeg": true,
		"image/png":  true,
		"image/gif":  true,
		"image/webp": true,
	},
	KindAudio: {
		"audio/mpeg": true,
		"audio/ogg":  true,
		"audio/mp4":  true,
		"audio/webm": true,
	},
}

// Encode validates raw bytes against the declared kind and MIME type and
// wraps them in a transport-safe attachment. The payload is base64-encoded,
// never transcoded: Decode returns the exact input bytes.
func Encode(raw []byte, mimeType string, kind Kind) (models.Attachment, error) {
	if len(raw) > MaxPayloadBytes {
		return models.Attachment{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(raw))
	}
	allowed, ok := allowedTypes[kind]
	if !ok {
		return models.Attachment{}, fmt.Errorf("%w: unknown kind %q", ErrUnsupportedMediaType, kind)
	}
	if !allowed[mimeType] {
		return models.Attachment{}, fmt.Errorf("%w: %q is not a valid %s type", ErrUnsupportedMediaType, mimeType, kind)
	}

	return models.Attachment{
		Kind:     string(kind),
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(raw),
		Size:     int64(len(raw)),
	}, nil
}

// Decode recovers the original payload bytes from an attachment.
func Decode(att models.Attachment) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	return raw, nil
}

// AllowedType reports whether mimeType is permitted for the given kind.
// Used by the profile upload handler to validate avatars without encoding.
func AllowedType(mimeType string, kind Kind) bool {
	return allowedTypes[kind][mimeType]
}
