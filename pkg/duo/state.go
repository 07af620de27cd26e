package duo

import (
	"github.com/duosecurity/duo-universal-go/pkg/crypto"
)

// GenerateRandomString returns length random bytes from a
// cryptographically secure source as a lowercase hex string of
// 2*length characters. length must be within [MinStateLength, MaxStateLength].
func GenerateRandomString(length int) (string, error) {
	if length < MinStateLength || length > MaxStateLength {
		return "", errStateLength()
	}
	return crypto.RandomHex(length)
}

// GenerateState returns a new 72 character anti-CSRF state value.
// The caller keeps it (e.g. in the session) and compares it with the
// state returned on the callback.
func (c *Client) GenerateState() (string, error) {
	return GenerateRandomString(DefaultStateLength)
}

func validateState(state string) error {
	if len(state) < MinStateLength || len(state) > MaxStateLength {
		return errStateLength()
	}
	return nil
}
