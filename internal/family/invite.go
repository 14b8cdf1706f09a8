package family

import (
	"crypto/rand"
	"fmt"
)

const (
	inviteCodeLen      = 10
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
)

// NewInviteCode returns a random URL-safe token. The alphabet has 64 symbols so
// masking a random byte keeps the distribution uniform.
func NewInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[b&63]
	}
	return string(buf), nil
}
