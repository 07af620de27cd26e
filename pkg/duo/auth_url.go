package duo

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/duosecurity/duo-universal-go/pkg/crypto"
	httphelper "github.com/duosecurity/duo-universal-go/pkg/http"
)

const (
	scopeOpenID      = "openid"
	responseTypeCode = "code"
)

type authorizeRequest struct {
	ResponseType string `schema:"response_type"`
	ClientID     string `schema:"client_id"`
	Request      string `schema:"request"`
	RedirectURI  string `schema:"redirect_uri"`
	Scope        string `schema:"scope"`
}

// CreateAuthURL returns the URL of the Duo Prompt for username.
// The authorization parameters travel inside a signed request object,
// state included, so Duo can check they were issued by this client.
func (c *Client) CreateAuthURL(username, state string) (string, error) {
	if err := validateState(state); err != nil {
		return "", err
	}
	if username == "" {
		return "", newError(ConfigError, errUsernameRequired)
	}

	request, err := crypto.Sign(jwt.MapClaims{
		"scope":                  scopeOpenID,
		"redirect_uri":           c.redirectURL,
		"client_id":              c.clientID,
		"iss":                    c.clientID,
		"aud":                    c.url(""),
		"exp":                    time.Now().Add(assertionLifetime).Unix(),
		"state":                  state,
		"response_type":          responseTypeCode,
		"duo_uname":              username,
		"use_duo_code_attribute": c.useDuoCodeAttribute,
	}, c.clientSecret)
	if err != nil {
		return "", fmt.Errorf("sign authorization request: %w", err)
	}

	params, err := httphelper.URLEncodeParams(&authorizeRequest{
		ResponseType: responseTypeCode,
		ClientID:     c.clientID,
		Request:      request,
		RedirectURI:  c.redirectURL,
		Scope:        scopeOpenID,
	}, c.encoder)
	if err != nil {
		return "", err
	}
	return c.Endpoint().AuthURL + "?" + params.Encode(), nil
}
