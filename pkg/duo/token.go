package duo

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/duosecurity/duo-universal-go/pkg/crypto"
)

const (
	grantTypeAuthorizationCode = "authorization_code"

	ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	idTokenKey = "id_token"
)

type tokenRequest struct {
	GrantType           string `schema:"grant_type"`
	Code                string `schema:"code"`
	RedirectURI         string `schema:"redirect_uri"`
	ClientAssertionType string `schema:"client_assertion_type"`
	ClientAssertion     string `schema:"client_assertion"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	IDToken     string `json:"id_token"`
}

// IDTokenClaims is the verified content of the id_token Duo returns
// for a completed authentication.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string         `json:"preferred_username"`
	Nonce             string         `json:"nonce,omitempty"`
	AuthTime          int64          `json:"auth_time,omitempty"`
	AuthContext       map[string]any `json:"auth_context,omitempty"`
	AuthResult        map[string]any `json:"auth_result,omitempty"`
}

// Tokens holds the oauth2 token of an exchange together with the
// raw and verified id_token.
type Tokens struct {
	*oauth2.Token
	IDTokenClaims *IDTokenClaims
	IDToken       string
}

type exchangeConfig struct {
	nonce string
}

type ExchangeOption func(*exchangeConfig)

// WithNonce requires the id_token to carry the given nonce.
func WithNonce(nonce string) ExchangeOption {
	return func(cfg *exchangeConfig) {
		cfg.nonce = nonce
	}
}

// ExchangeAuthorizationCode redeems the code Duo appended to the redirect
// for the result of the authentication. The returned id_token has been
// verified against the client secret, this client's id, the token endpoint
// as issuer and the expected username.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, code, username string, opts ...ExchangeOption) (*Tokens, error) {
	ctx, span := tracer.Start(ctx, "ExchangeAuthorizationCode")
	defer span.End()
	ctx = logCtxWithClientData(ctx, c, "function", "ExchangeAuthorizationCode")

	if code == "" {
		return nil, newError(TokenError, errMissingCode)
	}
	cfg := new(exchangeConfig)
	for _, opt := range opts {
		opt(cfg)
	}

	endpoint := c.Endpoint().TokenURL
	assertion, err := c.clientAssertion(endpoint)
	if err != nil {
		return nil, err
	}
	request := &tokenRequest{
		GrantType:           grantTypeAuthorizationCode,
		Code:                code,
		RedirectURI:         c.redirectURL,
		ClientAssertionType: ClientAssertionTypeJWTBearer,
		ClientAssertion:     assertion,
	}
	tokenRes := new(tokenResponse)
	if err := c.call(ctx, endpoint, request, tokenRes, false); err != nil {
		c.logError(ctx, "authorization code exchange failed", err)
		return nil, err
	}
	if tokenRes.IDToken == "" {
		e := newError(MalformedResponseError, errMalformedResponse)
		c.logError(ctx, "authorization code exchange failed", e)
		return nil, e
	}

	claims, e := c.verifyIDToken(tokenRes.IDToken, username, cfg.nonce)
	if e != nil {
		c.logError(ctx, "id_token verification failed", e)
		return nil, e
	}

	token := &oauth2.Token{
		AccessToken: tokenRes.AccessToken,
		TokenType:   tokenRes.TokenType,
	}
	if tokenRes.ExpiresIn > 0 {
		token.Expiry = time.Now().UTC().Add(time.Duration(tokenRes.ExpiresIn) * time.Second)
	}
	token = token.WithExtra(map[string]any{
		idTokenKey: tokenRes.IDToken,
	})
	return &Tokens{
		Token:         token,
		IDTokenClaims: claims,
		IDToken:       tokenRes.IDToken,
	}, nil
}

func (c *Client) verifyIDToken(idToken, username, nonce string) (*IDTokenClaims, *Error) {
	claims := new(IDTokenClaims)
	_, err := jwt.ParseWithClaims(idToken, claims, func(*jwt.Token) (any, error) {
		return []byte(c.clientSecret), nil
	},
		jwt.WithValidMethods([]string{crypto.SigningMethod.Alg()}),
		jwt.WithAudience(c.clientID),
		jwt.WithIssuer(c.Endpoint().TokenURL),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(idTokenLeeway),
	)
	if err != nil {
		return nil, newError(TokenError, errInvalidIDToken).WithParent(err)
	}
	if claims.IssuedAt == nil {
		return nil, newError(TokenError, errInvalidIDToken).WithParent(jwt.ErrTokenRequiredClaimMissing)
	}
	if claims.PreferredUsername != username {
		return nil, newError(TokenError, errInvalidUsername)
	}
	if nonce != "" && claims.Nonce != nonce {
		return nil, newError(TokenError, errInvalidNonce)
	}
	return claims, nil
}
