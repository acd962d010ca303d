package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reveal/auth"
	"github.com/goliatone/go-reveal/core"
	"github.com/goliatone/go-reveal/transport"
	"github.com/google/uuid"
)

const (
	loggerName = "reveal.gateway"

	HeaderAuthorization  = "Authorization"
	HeaderIdempotencyKey = "x-idempotency-key"

	initPath            = "/token/client/init"
	operationInitialize = "initialize"
)

// Gateway performs the token exchange followed by the session init call.
// It holds no per-invocation state and is safe for concurrent use.
type Gateway struct {
	configSource      func() core.PayrailsConfig
	exchange          *auth.TokenExchange
	transport         core.TransportAdapter
	observer          core.Observer
	idempotencyKeyGen core.IdempotencyKeyGenerator
	attemptIDGen      func() string
	recorder          core.AttemptRecorder
	now               func() time.Time
}

func New(cfg core.PayrailsConfig, opts ...Option) *Gateway {
	b := builder{
		configSource: func() core.PayrailsConfig { return cfg },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&b)
	}

	_, logger := glog.Resolve(loggerName, b.loggerProvider, b.logger)
	logger = glog.Ensure(logger)
	if b.configSource == nil {
		b.configSource = func() core.PayrailsConfig { return cfg }
	}
	if b.transport == nil {
		adapter := transport.NewRESTAdapter(nil)
		adapter.Logger = logger
		b.transport = adapter
	}
	if b.idempotencyKeyGen == nil {
		b.idempotencyKeyGen = core.NewIdempotencyKey
	}
	if b.attemptIDGen == nil {
		b.attemptIDGen = uuid.NewString
	}
	if b.now == nil {
		b.now = func() time.Time { return time.Now().UTC() }
	}

	return &Gateway{
		configSource:      b.configSource,
		exchange:          auth.NewTokenExchange(b.transport, auth.WithTokenExchangeLogger(logger)),
		transport:         b.transport,
		observer:          core.NewObserver("reveal", logger, b.metricsRecorder),
		idempotencyKeyGen: b.idempotencyKeyGen,
		attemptIDGen:      b.attemptIDGen,
		recorder:          b.recorder,
		now:               b.now,
	}
}

// InitializeReveal exchanges credentials for a token and opens a reveal
// session for set. The upstream init body is returned verbatim.
func (g *Gateway) InitializeReveal(ctx context.Context, set core.IdentifierSet) (core.InitPayload, error) {
	return g.run(ctx, func() core.IdentifierSet { return set })
}

// InitializeRevealFromBody is InitializeReveal for a raw request body. Bodies
// that cannot be parsed degrade to the empty identifier set.
func (g *Gateway) InitializeRevealFromBody(ctx context.Context, body []byte) (core.InitPayload, error) {
	return g.run(ctx, func() core.IdentifierSet { return core.ParseIdentifierSet(body) })
}

type trace struct {
	idempotencyKey  string
	identifierKinds []string
	upstreamStatus  int
}

func (g *Gateway) run(ctx context.Context, resolve func() core.IdentifierSet) (core.InitPayload, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := g.now()
	var tr trace
	payload, err := g.initialize(ctx, resolve, &tr)
	g.finish(ctx, startedAt, tr, err)
	return payload, err
}

func (g *Gateway) initialize(ctx context.Context, resolve func() core.IdentifierSet, tr *trace) (core.InitPayload, error) {
	cfg := g.configSource()
	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		return nil, core.NewConfigurationError(missing...)
	}

	set := resolve().Normalize()
	tr.identifierKinds = set.Kinds()
	payload := core.NewRevealPayload(set, cfg.AuditData)

	token, err := g.exchange.Exchange(ctx, cfg)
	if err != nil {
		tr.upstreamStatus = core.UpstreamStatus(err)
		return nil, err
	}

	tr.idempotencyKey = g.idempotencyKeyGen()
	req, err := transport.NewJSONRequest(http.MethodPost, cfg.ResolvedBaseURL()+initPath, payload, map[string]string{
		HeaderAuthorization:  token.BearerHeader(),
		HeaderIdempotencyKey: tr.idempotencyKey,
	})
	if err != nil {
		return nil, core.NewServerError(err, "")
	}
	req.Timeout = cfg.Timeout()

	res, err := g.transport.Do(ctx, req)
	if err != nil {
		return nil, core.NewServerError(err, "")
	}
	tr.upstreamStatus = res.StatusCode
	if !res.Successful() {
		return nil, core.NewUpstreamInitError(res.StatusCode, string(res.Body))
	}
	if !json.Valid(res.Body) {
		return nil, core.NewServerError(nil, "init response is not valid json")
	}
	return core.InitPayload(append([]byte(nil), res.Body...)), nil
}

func (g *Gateway) finish(ctx context.Context, startedAt time.Time, tr trace, err error) {
	outcome, errorCode := classify(err)
	g.observer.Observe(ctx, startedAt, operationInitialize, err, map[string]any{
		"outcome":          string(outcome),
		"idempotency_key":  tr.idempotencyKey,
		"identifier_kinds": tr.identifierKinds,
		"upstream_status":  tr.upstreamStatus,
	})
	if g.recorder == nil {
		return
	}

	attempt := core.Attempt{
		ID:              g.attemptIDGen(),
		IdempotencyKey:  tr.idempotencyKey,
		IdentifierKinds: append([]string{}, tr.identifierKinds...),
		Outcome:         outcome,
		UpstreamStatus:  tr.upstreamStatus,
		ErrorCode:       errorCode,
		RequestID:       core.RequestIDFromContext(ctx),
		DurationMS:      g.now().Sub(startedAt).Milliseconds(),
		CreatedAt:       startedAt.UTC(),
	}
	if recordErr := g.recorder.Record(context.WithoutCancel(ctx), attempt); recordErr != nil {
		g.observer.Log(ctx, "warn", "reveal attempt audit record failed", map[string]any{
			"attempt_id": attempt.ID,
			"error":      recordErr.Error(),
		})
	}
}

func classify(err error) (core.AttemptOutcome, string) {
	switch {
	case err == nil:
		return core.AttemptSucceeded, ""
	case core.HasTextCode(err, core.ErrorConfiguration):
		return core.AttemptConfigurationError, core.ErrorConfiguration
	case core.HasTextCode(err, core.ErrorUpstreamAuthFailed):
		return core.AttemptAuthFailed, core.ErrorUpstreamAuthFailed
	case core.HasTextCode(err, core.ErrorUpstreamInitFailed):
		return core.AttemptInitFailed, core.ErrorUpstreamInitFailed
	default:
		return core.AttemptServerError, core.ErrorServer
	}
}
