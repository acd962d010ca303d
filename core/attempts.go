package core

import (
	"context"
	"errors"
	"time"
)

type AttemptOutcome string

const (
	AttemptSucceeded          AttemptOutcome = "succeeded"
	AttemptConfigurationError AttemptOutcome = "configuration_error"
	AttemptAuthFailed         AttemptOutcome = "auth_failed"
	AttemptInitFailed         AttemptOutcome = "init_failed"
	AttemptServerError        AttemptOutcome = "server_error"
)

func (o AttemptOutcome) Valid() bool {
	switch o {
	case AttemptSucceeded, AttemptConfigurationError, AttemptAuthFailed, AttemptInitFailed, AttemptServerError:
		return true
	default:
		return false
	}
}

// Attempt is the audit record of one gateway invocation. It never carries
// identifier values, tokens or secrets.
type Attempt struct {
	ID              string         `json:"id"`
	IdempotencyKey  string         `json:"idempotency_key,omitempty"`
	IdentifierKinds []string       `json:"identifier_kinds"`
	Outcome         AttemptOutcome `json:"outcome"`
	UpstreamStatus  int            `json:"upstream_status,omitempty"`
	ErrorCode       string         `json:"error_code,omitempty"`
	RequestID       string         `json:"request_id,omitempty"`
	DurationMS      int64          `json:"duration_ms"`
	CreatedAt       time.Time      `json:"created_at"`
}

type AttemptFilter struct {
	Outcome AttemptOutcome
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

type AttemptPage struct {
	Items   []Attempt `json:"items"`
	Page    int       `json:"page"`
	PerPage int       `json:"per_page"`
	Total   int       `json:"total"`
	HasNext bool      `json:"has_next"`
}

type RetentionPolicy struct {
	TTL    time.Duration
	RowCap int
}

type AttemptRecorder interface {
	Record(ctx context.Context, attempt Attempt) error
}

type AttemptReader interface {
	Get(ctx context.Context, id string) (Attempt, error)
	List(ctx context.Context, filter AttemptFilter) (AttemptPage, error)
}

type AttemptPruner interface {
	Prune(ctx context.Context, policy RetentionPolicy) (int, error)
}

// MultiAttemptRecorder fans an attempt out to every recorder and joins the
// failures.
type MultiAttemptRecorder []AttemptRecorder

func (m MultiAttemptRecorder) Record(ctx context.Context, attempt Attempt) error {
	var errs []error
	for _, recorder := range m {
		if recorder == nil {
			continue
		}
		if err := recorder.Record(ctx, attempt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type requestIDKey struct{}

// ContextWithRequestID tags ctx with the inbound request id so audit records
// and logs can be correlated.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}
