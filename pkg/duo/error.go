package duo

import (
	"fmt"
)

// ErrorKind classifies an Error.
type ErrorKind string

const (
	ConfigError            ErrorKind = "config_error"
	StateLengthError       ErrorKind = "state_length_error"
	ConnectionError        ErrorKind = "connection_error"
	ProviderError          ErrorKind = "provider_error"
	MalformedResponseError ErrorKind = "malformed_response_error"
	TokenError             ErrorKind = "token_error"
)

const (
	errParsingConfig       = "parsing config error"
	errInvalidClientID     = "invalid client id"
	errInvalidClientSecret = "invalid client secret"
	errUsernameRequired    = "username is required"
	errFailedConnection    = "unable to connect to Duo"
	errMalformedResponse   = "result missing expected data"
	errMissingCode         = "missing authorization code"
	errInvalidIDToken      = "invalid id token"
	errInvalidUsername     = "invalid username"
	errInvalidNonce        = "invalid nonce"
	errStateLengthTemplate = "state must be at least %d characters long and no longer than %d characters"
	errProviderTemplate    = "%s: %s"
)

// Sentinels for use with errors.Is. They match any *Error of the same kind.
var (
	ErrConfig            = &Error{Kind: ConfigError}
	ErrStateLength       = &Error{Kind: StateLengthError}
	ErrConnection        = &Error{Kind: ConnectionError}
	ErrProvider          = &Error{Kind: ProviderError}
	ErrMalformedResponse = &Error{Kind: MalformedResponseError}
	ErrToken             = &Error{Kind: TokenError}
)

// Error is returned by every failing Client operation.
// Message is the human readable cause and the value of Error().
// Code, Timestamp and HTTPStatus are only set when the failure
// was reported by Duo.
type Error struct {
	Parent     error
	Kind       ErrorKind
	Message    string
	Code       int
	Timestamp  int64
	HTTPStatus int
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Parent
}

// Is reports whether target is an *Error of the same kind. A target
// with a Message only matches errors carrying the same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind &&
		(e.Message == t.Message || t.Message == "")
}

// WithParent returns a copy of e wrapping err. e itself is not modified.
func (e *Error) WithParent(err error) *Error {
	c := *e
	c.Parent = err
	return &c
}

// Detail returns the message with the parent error appended, for logging.
func (e *Error) Detail() string {
	if e.Parent == nil {
		return e.Error()
	}
	return fmt.Sprintf("%s: %v", e.Error(), e.Parent)
}

func errStateLength() *Error {
	return newError(StateLengthError, fmt.Sprintf(errStateLengthTemplate, MinStateLength, MaxStateLength))
}
