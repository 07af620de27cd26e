package crypto

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod is the only algorithm used between the client and Duo.
var SigningMethod = jwt.SigningMethodHS512

var ErrMissingSecret = errors.New("missing signing secret")

// Sign serializes claims into a compact JWT signed with HS512.
func Sign(claims jwt.Claims, secret string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	return jwt.NewWithClaims(SigningMethod, claims).SignedString([]byte(secret))
}
