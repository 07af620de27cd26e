package cli

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/duosecurity/duo-universal-go/pkg/duo"
	httphelper "github.com/duosecurity/duo-universal-go/pkg/http"
)

var ErrStateMismatch = errors.New("duo state does not match saved state")

// Opener hands the Duo Prompt URL to the user, usually by launching a browser.
type Opener func(authURL string) error

// PrintURL returns an Opener asking the user to visit the URL themselves.
func PrintURL(w io.Writer) Opener {
	return func(authURL string) error {
		_, err := fmt.Fprintf(w, "Open the following URL to complete the Duo login:\n\n%s\n\n", authURL)
		return err
	}
}

type result struct {
	tokens *duo.Tokens
	err    error
}

// CodeFlow runs a complete Duo login for username from a command line
// program. It serves the path of the client's redirect URL on addr,
// passes the prompt URL to open and blocks until Duo redirected back
// or ctx is done. The prompt is not opened when addr cannot be bound.
func CodeFlow(ctx context.Context, client *duo.Client, username, addr string, open Opener, logger *slog.Logger) (*duo.Tokens, error) {
	codeflowCtx, codeflowCancel := context.WithCancel(ctx)
	defer codeflowCancel()

	if _, err := client.HealthCheck(codeflowCtx); err != nil {
		return nil, err
	}
	state, err := client.GenerateState()
	if err != nil {
		return nil, err
	}
	authURL, err := client.CreateAuthURL(username, state)
	if err != nil {
		return nil, err
	}
	redirect, err := url.Parse(client.RedirectURL())
	if err != nil {
		return nil, fmt.Errorf("parse redirect url: %w", err)
	}

	resultChan := make(chan result, 1)
	mux := http.NewServeMux()
	mux.Handle(callbackPath(redirect), CallbackHandler(client, username, state, func(tokens *duo.Tokens, err error) {
		select {
		case resultChan <- result{tokens, err}:
		default:
		}
	}))
	if err := httphelper.StartServer(codeflowCtx, addr, mux, logger); err != nil {
		return nil, fmt.Errorf("start callback server: %w", err)
	}

	if err := open(authURL); err != nil {
		return nil, err
	}

	select {
	case res := <-resultChan:
		return res.tokens, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func callbackPath(redirect *url.URL) string {
	if redirect.Path == "" {
		return "/"
	}
	return redirect.Path
}

// CallbackHandler completes the login Duo redirected back to and reports
// the outcome to done. Requests carrying a different state are rejected
// without calling done.
func CallbackHandler(client *duo.Client, username, state string, done func(*duo.Tokens, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if errType := r.FormValue("error"); errType != "" {
			done(nil, fmt.Errorf("duo login failed: %s: %s", errType, r.FormValue("error_description")))
			http.Error(w, "Duo login failed, return to the CLI.", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(r.FormValue("state")), []byte(state)) != 1 {
			http.Error(w, ErrStateMismatch.Error(), http.StatusBadRequest)
			return
		}
		tokens, err := client.ExchangeAuthorizationCode(r.Context(), r.FormValue(client.CodeParam()), username)
		done(tokens, err)
		if err != nil {
			http.Error(w, "Duo login failed, return to the CLI.", http.StatusUnauthorized)
			return
		}
		msg := "<p><strong>Success!</strong></p>"
		msg = msg + "<p>You are authenticated and can now return to the CLI.</p>"
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(msg))
	})
}
