package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reveal/core"
	"github.com/goliatone/go-reveal/ratelimit"
	"github.com/google/uuid"
)

const loggerName = "reveal.httpapi"

// Initializer runs the reveal token exchange for a raw request body.
// *gateway.Gateway satisfies it.
type Initializer interface {
	InitializeRevealFromBody(ctx context.Context, body []byte) (core.InitPayload, error)
}

// Handler is the inbound HTTP adapter for the reveal gateway.
type Handler struct {
	initializer  Initializer
	attempts     core.AttemptReader
	limiter      *ratelimit.Limiter
	logger       core.Logger
	maxBodyBytes int64
	requestIDGen func() string
}

func NewHandler(initializer Initializer, opts ...Option) *Handler {
	b := builder{
		maxBodyBytes: defaultMaxBodyBytes,
		requestIDGen: uuid.NewString,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&b)
	}
	_, logger := glog.Resolve(loggerName, b.loggerProvider, b.logger)
	return &Handler{
		initializer:  initializer,
		attempts:     b.attempts,
		limiter:      b.limiter,
		logger:       glog.Ensure(logger),
		maxBodyBytes: b.maxBodyBytes,
		requestIDGen: b.requestIDGen,
	}
}

// NewRouter registers the gateway routes and middleware stack.
func NewRouter(initializer Initializer, opts ...Option) http.Handler {
	return NewHandler(initializer, opts...).Routes()
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)

	r.Get("/healthz", h.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.rateLimitMiddleware)
			}
			r.Post("/init", h.initialize)
		})
		if h.attempts != nil {
			r.Get("/attempts", h.listAttempts)
			r.Get("/attempts/{id}", h.getAttempt)
		}
	})

	return r
}
