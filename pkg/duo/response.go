package duo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	httphelper "github.com/duosecurity/duo-universal-go/pkg/http"
)

const statOK = "OK"

// providerStatus holds the fields Duo uses to report the outcome of a call.
// A nil field was absent from the response.
type providerStatus struct {
	Stat          *string `json:"stat"`
	Message       *string `json:"message"`
	MessageDetail *string `json:"message_detail"`
	Code          *int    `json:"code"`
	Timestamp     *int64  `json:"timestamp"`
}

// failure translates a failed response into a ProviderError when Duo
// sent both message and message_detail, and a MalformedResponseError otherwise.
func (s *providerStatus) failure(httpStatus int) *Error {
	if s.Message == nil || s.MessageDetail == nil {
		e := newError(MalformedResponseError, errMalformedResponse)
		e.HTTPStatus = httpStatus
		return e
	}
	e := newError(ProviderError, fmt.Sprintf(errProviderTemplate, *s.Message, *s.MessageDetail))
	e.HTTPStatus = httpStatus
	if s.Code != nil {
		e.Code = *s.Code
	}
	if s.Timestamp != nil {
		e.Timestamp = *s.Timestamp
	}
	return e
}

// call posts request form encoded to endpoint and decodes a successful
// response body into dst. With requireStat the body must also carry
// `"stat": "OK"` to count as successful.
func (c *Client) call(ctx context.Context, endpoint string, request, dst any, requireStat bool) *Error {
	req, err := httphelper.FormRequest(ctx, endpoint, request, c.encoder, httphelper.WithUserAgent(userAgent))
	if err != nil {
		return newError(ConnectionError, errFailedConnection).WithParent(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newError(ConnectionError, errFailedConnection).WithParent(err)
	}
	if resp == nil {
		return newError(ConnectionError, errFailedConnection)
	}
	body, err := httphelper.ReadBody(resp)
	if err != nil {
		return newError(ConnectionError, errFailedConnection).WithParent(err)
	}

	status := new(providerStatus)
	if err := json.Unmarshal(body, status); err != nil {
		e := newError(MalformedResponseError, errMalformedResponse).WithParent(err)
		e.HTTPStatus = resp.StatusCode
		return e
	}
	if resp.StatusCode != http.StatusOK {
		return status.failure(resp.StatusCode)
	}
	if requireStat && (status.Stat == nil || *status.Stat != statOK) {
		return status.failure(resp.StatusCode)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		e := newError(MalformedResponseError, errMalformedResponse).WithParent(err)
		e.HTTPStatus = resp.StatusCode
		return e
	}
	return nil
}
