package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reveal/core"
	"github.com/goliatone/go-reveal/transport"
)

const HeaderAPIKey = "x-api-key"

const tokenPathPrefix = "/auth/token/"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// TokenExchange trades the client credentials for an access token. It keeps
// no state between calls; nothing is cached.
type TokenExchange struct {
	transport core.TransportAdapter
	logger    core.Logger
}

type TokenExchangeOption func(*TokenExchange)

func WithTokenExchangeLogger(logger core.Logger) TokenExchangeOption {
	return func(e *TokenExchange) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewTokenExchange(adapter core.TransportAdapter, opts ...TokenExchangeOption) *TokenExchange {
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	exchange := &TokenExchange{transport: adapter, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(exchange)
		}
	}
	exchange.logger = glog.Ensure(exchange.logger)
	return exchange
}

// TokenURL returns the exchange endpoint for the configured client.
func TokenURL(cfg core.PayrailsConfig) string {
	return cfg.ResolvedBaseURL() + tokenPathPrefix + url.PathEscape(strings.TrimSpace(cfg.ClientID))
}

// Exchange performs the credential exchange. A non-2xx answer becomes an
// upstream auth error carrying the upstream body; a 2xx answer without an
// access_token is a server error.
func (e *TokenExchange) Exchange(ctx context.Context, cfg core.PayrailsConfig) (AccessToken, error) {
	if e == nil || e.transport == nil {
		return AccessToken{}, core.NewServerError(nil, "token exchange is not configured")
	}
	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		return AccessToken{}, core.NewConfigurationError(missing...)
	}

	req, err := transport.NewJSONRequest(http.MethodPost, TokenURL(cfg), nil, map[string]string{
		HeaderAPIKey: strings.TrimSpace(cfg.ClientSecret),
	})
	if err != nil {
		return AccessToken{}, core.NewServerError(err, "")
	}
	req.Timeout = cfg.Timeout()

	res, err := e.transport.Do(ctx, req)
	if err != nil {
		return AccessToken{}, core.NewServerError(err, "")
	}
	if !res.Successful() {
		e.logger.WithContext(ctx).Warn("token exchange rejected", "upstream_status", res.StatusCode)
		return AccessToken{}, core.NewUpstreamAuthError(res.StatusCode, string(res.Body))
	}

	var decoded tokenResponse
	if err := transport.DecodeJSON(res, &decoded); err != nil {
		return AccessToken{}, core.NewServerError(fmt.Errorf("token response is not valid json: %w", err), "")
	}
	token := NewAccessToken(decoded.AccessToken)
	if token.IsZero() {
		return AccessToken{}, core.NewServerError(nil, "token response is missing access_token")
	}
	return token, nil
}
