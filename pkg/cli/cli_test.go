package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duosecurity/duo-universal-go/pkg/duo"
)

const (
	testClientID     = "12345678901234567890"
	testClientSecret = "1234567890123456789012345678901234567890"
	testCode         = "duo-code-1234"
	testUsername     = "alice"
)

func duoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/oauth/v1/health_check":
			io.WriteString(w, `{"stat":"OK","response":{"timestamp":1607009339}}`)
		case "/oauth/v1/token":
			if r.FormValue("code") != testCode {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"stat":"FAIL","message":"invalid_grant","message_detail":"The provided authorization grant is invalid."}`)
				return
			}
			now := time.Now()
			idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &duo.IDTokenClaims{
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    "https://" + r.Host + "/oauth/v1/token",
					Subject:   testUsername,
					Audience:  jwt.ClaimStrings{testClientID},
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
				},
				PreferredUsername: testUsername,
			}).SignedString([]byte(testClientSecret))
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			io.WriteString(w, `{"access_token":"access","token_type":"Bearer","expires_in":3600,"id_token":"`+idToken+`"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server, redirectURL string) *duo.Client {
	t.Helper()
	client, err := duo.NewClient(testClientID, testClientSecret, strings.TrimPrefix(server.URL, "https://"), redirectURL,
		duo.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return client
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(u.Query().Get("request"), claims, func(*jwt.Token) (any, error) {
		return []byte(testClientSecret), nil
	})
	require.NoError(t, err)
	return claims["state"].(string)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestCallbackHandler(t *testing.T) {
	client := newTestClient(t, duoServer(t), "http://localhost/duo-callback")
	state := strings.Repeat("a", duo.DefaultStateLength)

	tests := []struct {
		name       string
		query      url.Values
		wantStatus int
		wantDone   bool
		wantErr    bool
	}{
		{
			name:       "success",
			query:      url.Values{"state": {state}, "duo_code": {testCode}},
			wantStatus: http.StatusOK,
			wantDone:   true,
		},
		{
			name:       "state mismatch",
			query:      url.Values{"state": {strings.Repeat("b", duo.DefaultStateLength)}, "duo_code": {testCode}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid code",
			query:      url.Values{"state": {state}, "duo_code": {"other"}},
			wantStatus: http.StatusUnauthorized,
			wantDone:   true,
			wantErr:    true,
		},
		{
			name:       "error from duo",
			query:      url.Values{"error": {"access_denied"}, "error_description": {"User denied"}},
			wantStatus: http.StatusUnauthorized,
			wantDone:   true,
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				called bool
				tokens *duo.Tokens
				err    error
			)
			handler := CallbackHandler(client, testUsername, state, func(tok *duo.Tokens, e error) {
				called = true
				tokens, err = tok, e
			})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost/duo-callback?"+tt.query.Encode(), nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantDone, called)
			if !tt.wantDone {
				return
			}
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testUsername, tokens.IDTokenClaims.PreferredUsername)
			assert.Contains(t, w.Body.String(), "return to the CLI")
		})
	}
}

func TestCodeFlow(t *testing.T) {
	addr := freeAddr(t)
	client := newTestClient(t, duoServer(t), "http://"+addr+"/duo-callback")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	open := func(authURL string) error {
		state := stateFromAuthURL(t, authURL)
		callback := "http://" + addr + "/duo-callback?" + url.Values{
			"state":    {state},
			"duo_code": {testCode},
		}.Encode()
		go assert.Eventually(t, func() bool {
			resp, err := http.Get(callback)
			if err != nil {
				return false
			}
			resp.Body.Close()
			return true
		}, 5*time.Second, 20*time.Millisecond)
		return nil
	}

	tokens, err := CodeFlow(ctx, client, testUsername, addr, open, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, testUsername, tokens.IDTokenClaims.Subject)
}

func TestCodeFlow_canceled(t *testing.T) {
	addr := freeAddr(t)
	client := newTestClient(t, duoServer(t), "http://"+addr+"/duo-callback")

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	open := func(authURL string) error {
		defer cancel()
		return PrintURL(&out)(authURL)
	}

	_, err := CodeFlow(ctx, client, testUsername, addr, open, slog.Default())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, out.String(), "https://")
	assert.Contains(t, out.String(), "/oauth/v1/authorize?")
}

func TestCodeFlow_healthCheckFails(t *testing.T) {
	client, err := duo.NewClient(testClientID, testClientSecret, "127.0.0.1:1", "http://localhost/duo-callback")
	require.NoError(t, err)

	_, err = CodeFlow(context.Background(), client, testUsername, freeAddr(t), func(string) error {
		t.Fatal("prompt must not be opened")
		return nil
	}, slog.Default())
	assert.ErrorIs(t, err, duo.ErrConnection)
}

func TestCodeFlow_addrInUse(t *testing.T) {
	held, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer held.Close()
	addr := held.Addr().String()
	client := newTestClient(t, duoServer(t), "http://"+addr+"/duo-callback")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opened := false
	start := time.Now()
	_, err = CodeFlow(ctx, client, testUsername, addr, func(string) error {
		opened = true
		return nil
	}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "start callback server")
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, opened)
	assert.Less(t, time.Since(start), 5*time.Second)
}
