package duo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duosecurity/duo-universal-go/pkg/duo/mock"
)

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		doer    func(t *testing.T) Doer
		want    *HealthCheckResponse
		wantErr error
		wantMsg string
	}{
		{
			name: "good health check",
			doer: func(t *testing.T) Doer {
				return mock.NewDoerExpectResponse(t, http.StatusOK, `{"response":{"timestamp":1607009339},"stat":"OK"}`)
			},
			want: &HealthCheckResponse{
				Stat:     "OK",
				Response: HealthCheckResult{Timestamp: 1607009339},
			},
		},
		{
			name: "connection failure",
			doer: func(t *testing.T) Doer {
				return mock.NewDoerExpectNoResponse(t)
			},
			wantErr: ErrConnection,
			wantMsg: "unable to connect to Duo",
		},
		{
			name: "nil response",
			doer: func(t *testing.T) Doer {
				m := mock.NewDoer(t)
				m.EXPECT().Do(gomock.Any()).Return(nil, nil)
				return m
			},
			wantErr: ErrConnection,
			wantMsg: "unable to connect to Duo",
		},
		{
			name: "signature failure",
			doer: func(t *testing.T) Doer {
				return mock.NewDoerExpectResponse(t, http.StatusBadRequest,
					`{"code":40002,"message":"invalid_client","message_detail":"Failed to verify signature.","stat":"FAIL","timestamp":1607009339}`)
			},
			wantErr: ErrProvider,
			wantMsg: "invalid_client: Failed to verify signature.",
		},
		{
			name: "missing stat",
			doer: func(t *testing.T) Doer {
				return mock.NewDoerExpectResponse(t, http.StatusOK, `{"response":{"timestamp":1607009339}}`)
			},
			wantErr: ErrMalformedResponse,
			wantMsg: "result missing expected data",
		},
		{
			name: "missing message on failure",
			doer: func(t *testing.T) Doer {
				return mock.NewDoerExpectResponse(t, http.StatusBadRequest, `{"stat":"Fail"}`)
			},
			wantErr: ErrMalformedResponse,
			wantMsg: "result missing expected data",
		},
		{
			name: "stat not OK with message",
			doer: func(t *testing.T) Doer {
				return mock.NewDoerExpectResponse(t, http.StatusOK,
					`{"stat":"FAIL","message":"server_error","message_detail":"Try again later."}`)
			},
			wantErr: ErrProvider,
			wantMsg: "server_error: Try again later.",
		},
		{
			name: "message without detail",
			doer: func(t *testing.T) Doer {
				return mock.NewDoerExpectResponse(t, http.StatusUnauthorized, `{"stat":"FAIL","message":"invalid_client"}`)
			},
			wantErr: ErrMalformedResponse,
			wantMsg: "result missing expected data",
		},
		{
			name: "body is not json",
			doer: func(t *testing.T) Doer {
				return mock.NewDoerExpectResponse(t, http.StatusBadGateway, `<html>bad gateway</html>`)
			},
			wantErr: ErrMalformedResponse,
			wantMsg: "result missing expected data",
		},
		{
			name: "stat of wrong type",
			doer: func(t *testing.T) Doer {
				return mock.NewDoerExpectResponse(t, http.StatusOK, `{"stat":1,"response":{"timestamp":1607009339}}`)
			},
			wantErr: ErrMalformedResponse,
			wantMsg: "result missing expected data",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, WithHTTPClient(tt.doer(t)))
			got, err := c.HealthCheck(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.EqualError(t, err, tt.wantMsg)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_HealthCheck_providerErrorFields(t *testing.T) {
	c := newTestClient(t, WithHTTPClient(mock.NewDoerExpectResponse(t, http.StatusBadRequest,
		`{"code":40002,"message":"invalid_client","message_detail":"Failed to verify signature.","stat":"FAIL","timestamp":1607009339}`)))
	_, err := c.HealthCheck(context.Background())

	var duoErr *Error
	require.ErrorAs(t, err, &duoErr)
	assert.Equal(t, ProviderError, duoErr.Kind)
	assert.Equal(t, 40002, duoErr.Code)
	assert.Equal(t, int64(1607009339), duoErr.Timestamp)
	assert.Equal(t, http.StatusBadRequest, duoErr.HTTPStatus)
}

func TestClient_HealthCheck_request(t *testing.T) {
	var (
		gotForm      map[string][]string
		gotAgent     string
		gotClaims    jwt.MapClaims
		gotAlgorithm string
	)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/oauth/v1/health_check" {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotAgent = r.UserAgent()
		gotClaims = jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(r.PostForm.Get("client_assertion"), gotClaims, func(*jwt.Token) (any, error) {
			return []byte(testClientSecret), nil
		})
		require.NoError(t, err)
		gotAlgorithm = token.Method.Alg()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"stat":     "OK",
			"response": map[string]any{"timestamp": 1607009339},
		})
	}))
	defer server.Close()

	host := strings.TrimPrefix(server.URL, "https://")
	c, err := NewClient(testClientID, testClientSecret, host, testRedirectURL, WithHTTPClient(server.Client()))
	require.NoError(t, err)

	got, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1607009339), got.Response.Timestamp)

	assert.Equal(t, []string{testClientID}, gotForm["client_id"])
	assert.Equal(t, "duo_universal_go/"+Version, gotAgent)
	assert.Equal(t, "HS512", gotAlgorithm)
	assert.Equal(t, testClientID, gotClaims["iss"])
	assert.Equal(t, testClientID, gotClaims["sub"])
	assert.Equal(t, "https://"+host+"/oauth/v1/health_check", gotClaims["aud"])
	assert.Regexp(t, hexPattern, gotClaims["jti"])
	assert.Len(t, gotClaims["jti"], 72)
	iat, exp := gotClaims["iat"].(float64), gotClaims["exp"].(float64)
	assert.Equal(t, float64(300), exp-iat)
}

func TestClient_HealthCheck_uniqueJTI(t *testing.T) {
	seen := make(map[string]bool)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(r.FormValue("client_assertion"), claims, func(*jwt.Token) (any, error) {
			return []byte(testClientSecret), nil
		})
		require.NoError(t, err)
		jti := claims["jti"].(string)
		assert.False(t, seen[jti], "jti reused")
		seen[jti] = true
		w.Write([]byte(`{"stat":"OK","response":{"timestamp":1}}`))
	}))
	defer server.Close()

	c, err := NewClient(testClientID, testClientSecret, strings.TrimPrefix(server.URL, "https://"), testRedirectURL,
		WithHTTPClient(server.Client()))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := c.HealthCheck(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, seen, 3)
}
