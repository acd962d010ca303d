package query

import (
	"strings"

	"github.com/goliatone/go-reveal/core"
)

const (
	TypeListAttempts = "reveal.query.attempts.list"
	TypeGetAttempt   = "reveal.query.attempts.get"
)

type ListAttemptsMessage struct {
	Filter core.AttemptFilter
}

func (ListAttemptsMessage) Type() string { return TypeListAttempts }

func (m ListAttemptsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return core.NewFieldValidationError("query", "page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return core.NewFieldValidationError("query", "per_page", "per_page must be >= 0")
	}
	if m.Filter.Outcome != "" && !m.Filter.Outcome.Valid() {
		return core.NewFieldValidationError("query", "outcome", "unknown outcome")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return core.NewFieldValidationError("query", "to", "to must not be before from")
	}
	return nil
}

type GetAttemptMessage struct {
	ID string
}

func (GetAttemptMessage) Type() string { return TypeGetAttempt }

func (m GetAttemptMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return core.NewFieldValidationError("query", "id", "attempt id is required")
	}
	return nil
}
