package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-reveal/core"
	"github.com/uptrace/bun"
)

type attemptRecord struct {
	bun.BaseModel `bun:"table:reveal_attempts,alias:ra"`

	ID              string    `bun:"id,pk"`
	IdempotencyKey  string    `bun:"idempotency_key,notnull"`
	IdentifierKinds []string  `bun:"identifier_kinds,type:jsonb,notnull"`
	Outcome         string    `bun:"outcome,notnull"`
	UpstreamStatus  int       `bun:"upstream_status,notnull"`
	ErrorCode       string    `bun:"error_code,notnull"`
	RequestID       string    `bun:"request_id,notnull"`
	DurationMS      int64     `bun:"duration_ms,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func attemptRecordFromDomain(attempt core.Attempt) *attemptRecord {
	kinds := append([]string(nil), attempt.IdentifierKinds...)
	if kinds == nil {
		kinds = []string{}
	}
	return &attemptRecord{
		ID:              strings.TrimSpace(attempt.ID),
		IdempotencyKey:  strings.TrimSpace(attempt.IdempotencyKey),
		IdentifierKinds: kinds,
		Outcome:         strings.TrimSpace(string(attempt.Outcome)),
		UpstreamStatus:  attempt.UpstreamStatus,
		ErrorCode:       strings.TrimSpace(attempt.ErrorCode),
		RequestID:       strings.TrimSpace(attempt.RequestID),
		DurationMS:      attempt.DurationMS,
		CreatedAt:       attempt.CreatedAt.UTC(),
	}
}

func (r *attemptRecord) toDomain() core.Attempt {
	if r == nil {
		return core.Attempt{}
	}
	kinds := append([]string(nil), r.IdentifierKinds...)
	if kinds == nil {
		kinds = []string{}
	}
	return core.Attempt{
		ID:              r.ID,
		IdempotencyKey:  r.IdempotencyKey,
		IdentifierKinds: kinds,
		Outcome:         core.AttemptOutcome(r.Outcome),
		UpstreamStatus:  r.UpstreamStatus,
		ErrorCode:       r.ErrorCode,
		RequestID:       r.RequestID,
		DurationMS:      r.DurationMS,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}
