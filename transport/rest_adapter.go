package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reveal/core"
)

const (
	KindREST = "rest"

	HeaderAccept      = "Accept"
	HeaderContentType = "Content-Type"
	ContentTypeJSON   = "application/json"
)

const defaultClientTimeout = 30 * time.Second

const defaultMaxResponseBytes int64 = 10 << 20

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter performs one HTTP exchange and hands back the raw response.
// A non-2xx status is a response, not an error.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
	Logger               core.Logger
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{HeaderAccept: ContentTypeJSON},
		MaxResponseBodyBytes: defaultMaxResponseBytes,
		Logger:               glog.Nop(),
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, failure(failureUnconfigured, nil, "transport: rest adapter has no http client", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := a.newHTTPRequest(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}

	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, failure(failureExchange, err, "transport: http exchange failed", map[string]any{
			"method": httpReq.Method,
			"path":   httpReq.URL.Path,
		})
	}
	defer httpRes.Body.Close()

	body, err := readLimited(httpRes, limitFor(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes))
	if err != nil {
		return core.TransportResponse{}, err
	}
	elapsed := time.Since(startedAt).Milliseconds()

	glog.Ensure(a.Logger).WithContext(ctx).Debug("upstream exchange",
		"method", httpReq.Method,
		"path", httpReq.URL.Path,
		"status_code", httpRes.StatusCode,
		"duration_ms", elapsed,
	)

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    joinHeaders(httpRes.Header),
		Body:       body,
		Metadata:   map[string]any{"kind": KindREST, "duration_ms": elapsed},
	}, nil
}

func (a *RESTAdapter) newHTTPRequest(ctx context.Context, req core.TransportRequest) (*http.Request, error) {
	target := strings.TrimSpace(req.URL)
	if target == "" {
		return nil, failure(failureRequest, nil, "transport: request url is required", nil)
	}
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, failure(failureRequest, err, "transport: invalid request url", nil)
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, failure(failureRequest, err, "transport: build http request", map[string]any{"method": method})
	}
	setHeaders(httpReq.Header, a.DefaultHeaders)
	setHeaders(httpReq.Header, req.Headers)
	return httpReq, nil
}

// readLimited reads at most limit bytes; a longer body is an error rather
// than a silently truncated payload.
func readLimited(res *http.Response, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, failure(failureResponse, err, "transport: read response body", map[string]any{"status_code": res.StatusCode})
	}
	if int64(len(body)) > limit {
		return nil, failure(failureResponse, nil, fmt.Sprintf("transport: response body larger than %d bytes", limit), map[string]any{
			"status_code": res.StatusCode,
			"limit_bytes": limit,
		})
	}
	return body, nil
}

func limitFor(requestLimit, adapterLimit int64) int64 {
	switch {
	case requestLimit > 0:
		return requestLimit
	case adapterLimit > 0:
		return adapterLimit
	default:
		return defaultMaxResponseBytes
	}
}

func setHeaders(dst http.Header, values map[string]string) {
	for key, value := range values {
		if key = strings.TrimSpace(key); key != "" {
			dst.Set(key, strings.TrimSpace(value))
		}
	}
}

func joinHeaders(headers http.Header) map[string]string {
	joined := make(map[string]string, len(headers))
	for key, values := range headers {
		joined[key] = strings.Join(values, ",")
	}
	return joined
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
