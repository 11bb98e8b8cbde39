package ws

import (
	"crypto/rand"
	"encoding/hex"
)

// newConnID mints the random id that keys a connection in the presence
// registry for its whole lifetime. 128 bits keeps collisions out of the
// picture.
func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
