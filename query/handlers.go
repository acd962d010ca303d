package query

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-reveal/core"
)

type ListAttemptsQuery struct {
	reader core.AttemptReader
}

func NewListAttemptsQuery(reader core.AttemptReader) *ListAttemptsQuery {
	return &ListAttemptsQuery{reader: reader}
}

func (q *ListAttemptsQuery) Query(ctx context.Context, msg ListAttemptsMessage) (core.AttemptPage, error) {
	if q == nil || q.reader == nil {
		return core.AttemptPage{}, core.NewServerError(nil, "query: attempt reader is required")
	}
	return q.reader.List(ctx, msg.Filter)
}

type GetAttemptQuery struct {
	reader core.AttemptReader
}

func NewGetAttemptQuery(reader core.AttemptReader) *GetAttemptQuery {
	return &GetAttemptQuery{reader: reader}
}

func (q *GetAttemptQuery) Query(ctx context.Context, msg GetAttemptMessage) (core.Attempt, error) {
	if q == nil || q.reader == nil {
		return core.Attempt{}, core.NewServerError(nil, "query: attempt reader is required")
	}
	return q.reader.Get(ctx, strings.TrimSpace(msg.ID))
}

var (
	_ gocmd.Querier[ListAttemptsMessage, core.AttemptPage] = (*ListAttemptsQuery)(nil)
	_ gocmd.Querier[GetAttemptMessage, core.Attempt]       = (*GetAttemptQuery)(nil)
)
