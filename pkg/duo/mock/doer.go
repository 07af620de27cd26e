package mock

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
)

var ErrConnectionRefused = errors.New("dial tcp: connection refused")

func NewDoer(t *testing.T) *MockDoer {
	return NewMockDoer(gomock.NewController(t))
}

// NewDoerExpectResponse returns a Doer answering one request with status and body.
func NewDoerExpectResponse(t *testing.T, status int, body string) *MockDoer {
	m := NewDoer(t)
	ExpectResponse(m, status, body)
	return m
}

func ExpectResponse(m *MockDoer, status int, body string) {
	m.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			Status:     http.StatusText(status),
			StatusCode: status,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	})
}

// NewDoerExpectNoResponse returns a Doer that fails one request without a response.
func NewDoerExpectNoResponse(t *testing.T) *MockDoer {
	m := NewDoer(t)
	m.EXPECT().Do(gomock.Any()).Return(nil, ErrConnectionRefused)
	return m
}
