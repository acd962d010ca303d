package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reveal/core"
	"github.com/goliatone/go-reveal/transport"
)

const InitPath = "/api/init"

// HTTPGatewayClient calls a reveal gateway over HTTP. It satisfies
// display.GatewayClient.
type HTTPGatewayClient struct {
	baseURL   string
	transport core.TransportAdapter
	logger    core.Logger
	timeout   time.Duration
}

type Option func(*HTTPGatewayClient)

func WithTransport(adapter core.TransportAdapter) Option {
	return func(c *HTTPGatewayClient) {
		if adapter != nil {
			c.transport = adapter
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *HTTPGatewayClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPGatewayClient) {
		c.timeout = timeout
	}
}

func NewHTTPGatewayClient(baseURL string, opts ...Option) (*HTTPGatewayClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("client: gateway url is required")
	}
	client := &HTTPGatewayClient{baseURL: baseURL, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.transport == nil {
		client.transport = transport.NewRESTAdapter(nil)
	}
	client.logger = glog.Ensure(client.logger)
	return client, nil
}

// InitializeReveal posts set to the gateway and returns the init payload.
// Every failure is a client init error; non-2xx answers use the
// "Init request failed" message with status and body in metadata.
func (c *HTTPGatewayClient) InitializeReveal(ctx context.Context, set core.IdentifierSet) (core.InitPayload, error) {
	req, err := transport.NewJSONRequest(http.MethodPost, c.baseURL+InitPath, set.Normalize(), nil)
	if err != nil {
		return nil, core.NewClientInitError(err, "", map[string]any{"step": "encode"})
	}
	req.Timeout = c.timeout

	res, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, core.NewClientInitError(err, "", map[string]any{"step": "transport"})
	}
	if !res.Successful() {
		c.logger.WithContext(ctx).Warn("gateway init request rejected", "status", res.StatusCode)
		return nil, core.NewClientInitError(nil, core.MessageUpstreamInitFailed, map[string]any{
			"status":  res.StatusCode,
			"details": string(res.Body),
		})
	}
	payload := core.InitPayload(append([]byte(nil), res.Body...))
	if len(payload) == 0 {
		return nil, core.NewClientInitError(nil, "gateway returned an empty init payload", nil)
	}
	return payload, nil
}
