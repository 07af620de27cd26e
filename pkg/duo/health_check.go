package duo

import (
	"context"
)

type HealthCheckResponse struct {
	Stat     string            `json:"stat"`
	Response HealthCheckResult `json:"response"`
}

type HealthCheckResult struct {
	Timestamp int64 `json:"timestamp"`
}

type healthCheckRequest struct {
	ClientID        string `schema:"client_id"`
	ClientAssertion string `schema:"client_assertion"`
}

// HealthCheck asks Duo whether it is reachable and accepts this client's
// credentials. Callers typically run it before redirecting a user to the
// prompt and fall back to their failmode when it fails.
func (c *Client) HealthCheck(ctx context.Context) (*HealthCheckResponse, error) {
	ctx, span := tracer.Start(ctx, "HealthCheck")
	defer span.End()
	ctx = logCtxWithClientData(ctx, c, "function", "HealthCheck")

	endpoint := c.url(healthCheckPath)
	assertion, err := c.clientAssertion(endpoint)
	if err != nil {
		return nil, err
	}
	resp := new(HealthCheckResponse)
	request := &healthCheckRequest{
		ClientID:        c.clientID,
		ClientAssertion: assertion,
	}
	if err := c.call(ctx, endpoint, request, resp, true); err != nil {
		c.logError(ctx, "health check failed", err)
		return nil, err
	}
	return resp, nil
}
