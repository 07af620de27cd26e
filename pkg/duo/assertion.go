package duo

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/duosecurity/duo-universal-go/pkg/crypto"
)

// clientAssertion returns a signed JWT authenticating this client
// to the given Duo endpoint. Every assertion carries a fresh jti.
func (c *Client) clientAssertion(audience string) (string, error) {
	jti, err := GenerateRandomString(jtiLength)
	if err != nil {
		return "", err
	}
	iat := time.Now()
	assertion, err := crypto.Sign(jwt.MapClaims{
		"iss": c.clientID,
		"sub": c.clientID,
		"aud": audience,
		"jti": jti,
		"iat": iat.Unix(),
		"exp": iat.Add(assertionLifetime).Unix(),
	}, c.clientSecret)
	if err != nil {
		return "", fmt.Errorf("sign client assertion: %w", err)
	}
	return assertion, nil
}
