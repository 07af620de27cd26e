package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// RandomHex reads n bytes from the system CSPRNG and returns them
// lowercase hex encoded, 2n characters long.
func RandomHex(n int) (string, error) {
	return randomHex(rand.Reader, n)
}

func randomHex(r io.Reader, n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
