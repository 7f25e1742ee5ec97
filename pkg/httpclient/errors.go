package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
)

// downstreamError accepts both error shapes the POS API has used:
// {"message": "..."} and {"error": {"code": "...", "message": "..."}}.
type downstreamError struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

type nestedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseError is a non-2xx answer from a remote service. Message is the
// backend's own text, passed through unchanged.
type ResponseError struct {
	Service    string
	StatusCode int
	Code       string
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
}

// Unwrap exposes the AppError equivalent so handlers render the backend
// message with a matching status.
func (e *ResponseError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return apperrors.Unauthorized(e.Message)
	}
	return apperrors.Remote(e.StatusCode, e.Message)
}

// ParseResponseError reads the body of a non-2xx HTTP response and returns a
// *ResponseError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	rerr := &ResponseError{Service: serviceName, StatusCode: resp.StatusCode}

	var body downstreamError
	if json.Unmarshal(bodyBytes, &body) == nil {
		rerr.Message = body.Message
		if len(body.Error) > 0 {
			var nested nestedError
			if json.Unmarshal(body.Error, &nested) == nil {
				rerr.Code = nested.Code
				if rerr.Message == "" {
					rerr.Message = nested.Message
				}
			} else {
				var plain string
				if json.Unmarshal(body.Error, &plain) == nil && rerr.Message == "" {
					rerr.Message = plain
				}
			}
		}
	}

	if rerr.Message == "" {
		rerr.Message = strings.TrimSpace(string(bodyBytes))
	}
	if rerr.Message == "" {
		rerr.Message = http.StatusText(resp.StatusCode)
	}

	return rerr
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
// A 4xx from the backend means the request itself was rejected, so it is
// never retried and does not count against the circuit breaker.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
