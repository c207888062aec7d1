package session_management

import (
	"crypto/rand"
	"encoding/hex"
)

const sessionTokenBytes = 16

// newSessionToken returns a 128-bit random token in hex form. Tokens are
// compared by exact equality only; the lookup key is always (username, room).
func newSessionToken() string {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic("session token entropy unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
