package duo

import (
	"context"
	"log/slog"

	"github.com/zitadel/logging"
)

func logCtxWithClientData(ctx context.Context, c *Client, attrs ...any) context.Context {
	logger, ok := c.Logger(ctx)
	if !ok {
		return ctx
	}
	attrs = append(attrs, "client_id", c.clientID, "api_host", c.apiHost)
	logger = logger.With(slog.Group("duo", attrs...))
	return logging.ToContext(ctx, logger)
}

// logError logs err at error level if a logger is available.
func (c *Client) logError(ctx context.Context, msg string, err *Error) {
	logger, ok := c.Logger(ctx)
	if !ok {
		return
	}
	logger.ErrorContext(ctx, msg,
		"kind", err.Kind,
		"error", err.Detail(),
		"http_status", err.HTTPStatus,
	)
}
