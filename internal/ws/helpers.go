package ws

import (
	"crypto/rand"
	"encoding/hex"
)

// newConnID returns a random 32-char hex id identifying one websocket
// connection in events and logs. An empty id means the system RNG failed.
func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
