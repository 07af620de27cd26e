package duo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zitadel/logging"
	"golang.org/x/oauth2"

	"github.com/duosecurity/duo-universal-go/internal/otel"
	httphelper "github.com/duosecurity/duo-universal-go/pkg/http"
)

const (
	ClientIDLength     = 20
	ClientSecretLength = 40

	MinStateLength     = 22
	MaxStateLength     = 1024
	DefaultStateLength = 36

	jtiLength         = 36
	assertionLifetime = 5 * time.Minute
	idTokenLeeway     = time.Minute

	healthCheckPath = "/oauth/v1/health_check"
	authorizePath   = "/oauth/v1/authorize"
	tokenPath       = "/oauth/v1/token"

	Version   = "1.0.0"
	userAgent = "duo_universal_go/" + Version
)

var tracer = otel.Tracer("github.com/duosecurity/duo-universal-go/pkg/duo")

// Doer sends a single HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Duo Universal Prompt endpoints of one Duo application.
// It is immutable after construction and safe for concurrent use
// as long as its Doer is.
type Client struct {
	clientID     string
	clientSecret string
	apiHost      string
	redirectURL  string

	httpClient          Doer
	encoder             httphelper.Encoder
	logger              *slog.Logger
	useDuoCodeAttribute bool
}

// NewClient validates the application credentials and returns a Client.
// The client id must be 20 and the client secret 40 characters long.
// apiHost and redirectURL are used as given.
func NewClient(clientID, clientSecret, apiHost, redirectURL string, options ...Option) (*Client, error) {
	return NewClientFromValues(clientID, clientSecret, apiHost, redirectURL, options...)
}

// NewClientFromValues is NewClient for loosely typed configuration sources,
// such as a decoded YAML or JSON document. Any value that is not a string
// is rejected before the credential lengths are checked.
func NewClientFromValues(clientID, clientSecret, apiHost, redirectURL any, options ...Option) (*Client, error) {
	id, idOK := clientID.(string)
	secret, secretOK := clientSecret.(string)
	host, hostOK := apiHost.(string)
	redirect, redirectOK := redirectURL.(string)
	if !idOK || !secretOK || !hostOK || !redirectOK {
		return nil, newError(ConfigError, errParsingConfig)
	}
	if len(id) != ClientIDLength {
		return nil, newError(ConfigError, errInvalidClientID)
	}
	if len(secret) != ClientSecretLength {
		return nil, newError(ConfigError, errInvalidClientSecret)
	}

	c := &Client{
		clientID:            id,
		clientSecret:        secret,
		apiHost:             host,
		redirectURL:         redirect,
		httpClient:          httphelper.DefaultHTTPClient,
		encoder:             httphelper.NewEncoder(),
		useDuoCodeAttribute: true,
	}
	for _, optFunc := range options {
		if err := optFunc(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Option is the type for providing dynamic options to the Client
type Option func(*Client) error

var ErrNilHTTPClient = errors.New("http client must not be nil")

// WithHTTPClient sets the transport used for all calls to Duo.
func WithHTTPClient(client Doer) Option {
	return func(c *Client) error {
		if client == nil {
			return ErrNilHTTPClient
		}
		c.httpClient = client
		return nil
	}
}

// WithTimeout uses a dedicated http.Client with the given request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Timeout: timeout}
		return nil
	}
}

// WithLogger sets a logger that is used
// in case the request context does not contain a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithoutDuoCodeAttribute makes Duo return the authorization code
// in the `code` query parameter instead of `duo_code`.
func WithoutDuoCodeAttribute() Option {
	return func(c *Client) error {
		c.useDuoCodeAttribute = false
		return nil
	}
}

func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) APIHost() string {
	return c.apiHost
}

func (c *Client) RedirectURL() string {
	return c.redirectURL
}

// CodeParam is the callback query parameter carrying the authorization code.
func (c *Client) CodeParam() string {
	if c.useDuoCodeAttribute {
		return "duo_code"
	}
	return "code"
}

// Endpoint returns the authorize and token URLs of the configured API host.
func (c *Client) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   c.url(authorizePath),
		TokenURL:  c.url(tokenPath),
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// Logger from the context, or a fallback if set.
func (c *Client) Logger(ctx context.Context) (logger *slog.Logger, ok bool) {
	logger, ok = logging.FromContext(ctx)
	if ok {
		return logger, ok
	}
	return c.logger, c.logger != nil
}

func (c *Client) url(path string) string {
	return "https://" + c.apiHost + path
}
