// Package client talks to the remote POS API: sales, products, reports,
// goals and authentication.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/httpclient"
	"github.com/AlejandroAndrade98/embipos/pkg/tracing"
)

const (
	serviceName = "pos-api"
	tracerName  = "github.com/AlejandroAndrade98/embipos/internal/client"
)

// RemoteError is a non-2xx answer from the POS API. Its Message is the
// backend's text, unchanged.
type RemoteError = httpclient.ResponseError

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is a stateless wrapper over the POS API. The operator's bearer
// token is passed on every call.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// New creates a client for the API at baseURL (no trailing slash).
func New(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{http: doer, baseURL: baseURL, logger: logger}
}

// call is one API round trip.
type call struct {
	op      string
	method  string
	path    string
	query   url.Values
	token   string
	idemKey string
	in      any
	out     any
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	ctx, span := tracing.Start(ctx, tracerName, "posapi."+cl.op,
		attribute.String("http.request.method", cl.method),
		attribute.String("url.path", cl.path),
	)
	defer func() { tracing.End(span, err) }()

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var body io.Reader = http.NoBody
	if cl.in != nil {
		b, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", cl.op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if cl.idemKey != "" {
		req.Header.Set(httpclient.IdempotencyKeyHeader, cl.idemKey)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call %s: %w", serviceName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}

	if cl.out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		c.logger.WarnContext(ctx, "undecodable response from POS API",
			slog.String("op", cl.op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("decode %s response: %w", cl.op, invalidResponse())
	}
	return nil
}

func invalidResponse() *apperrors.AppError {
	return apperrors.Remote(http.StatusBadGateway, "unexpected response from POS API")
}
