package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zitadel/schema"
)

// DefaultHTTPClient is used for provider calls when no other client is configured.
var DefaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// maxResponseSize bounds how much of a provider response body is read.
const maxResponseSize = 1 << 20

type Encoder interface {
	Encode(src any, dst map[string][]string) error
}

// NewEncoder returns the form encoder used for provider requests.
// Fields are named by their `schema` struct tag.
func NewEncoder() Encoder {
	return schema.NewEncoder()
}

type RequestAuthorization func(*http.Request)

func WithUserAgent(agent string) RequestAuthorization {
	return func(req *http.Request) {
		req.Header.Set("User-Agent", agent)
	}
}

// FormRequest builds a POST request with the encoded request as
// application/x-www-form-urlencoded body.
func FormRequest(ctx context.Context, endpoint string, request any, encoder Encoder, authFn ...RequestAuthorization) (*http.Request, error) {
	form, err := URLEncodeParams(request, encoder)
	if err != nil {
		return nil, err
	}
	body := strings.NewReader(form.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	for _, fn := range authFn {
		fn(req)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// ReadBody reads at most 1MiB of the response body and closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

func URLEncodeParams(resp any, encoder Encoder) (url.Values, error) {
	values := make(map[string][]string)
	err := encoder.Encode(resp, values)
	if err != nil {
		return nil, err
	}
	return values, nil
}

// StartServer binds addr and serves handler on it until ctx is done.
// A bind failure is returned before anything is served.
func StartServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Serve", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error("Shutdown", "error", err)
		}
	}()
	return nil
}
