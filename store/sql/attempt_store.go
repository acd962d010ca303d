package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-reveal/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultPerPage = 20

// AttemptStore persists gateway audit attempts. It implements
// core.AttemptRecorder, core.AttemptReader and core.AttemptPruner.
type AttemptStore struct {
	db   *bun.DB
	repo repository.Repository[*attemptRecord]
	now  func() time.Time
}

func NewAttemptStore(db *bun.DB) (*AttemptStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*attemptRecord](db, attemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid attempt repository wiring: %w", err)
		}
	}
	return &AttemptStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *AttemptStore) Record(ctx context.Context, attempt core.Attempt) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: attempt store is not configured")
	}
	record := attemptRecordFromDomain(attempt)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Outcome == "" {
		return fmt.Errorf("sqlstore: attempt outcome is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *AttemptStore) Get(ctx context.Context, id string) (core.Attempt, error) {
	if s == nil || s.db == nil {
		return core.Attempt{}, fmt.Errorf("sqlstore: attempt store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &attemptRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Attempt{}, core.NewNotFoundError("attempt", id)
		}
		return core.Attempt{}, err
	}
	return record.toDomain(), nil
}

// List returns attempts newest first.
func (s *AttemptStore) List(ctx context.Context, filter core.AttemptFilter) (core.AttemptPage, error) {
	if s == nil || s.repo == nil {
		return core.AttemptPage{}, fmt.Errorf("sqlstore: attempt store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if outcome := strings.TrimSpace(string(filter.Outcome)); outcome != "" {
		selectors = append(selectors, repository.SelectBy("outcome", "=", outcome))
	}
	if filter.From != nil {
		selectors = append(selectors, createdAtBound(">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, createdAtBound("<=", filter.To.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.AttemptPage{}, err
	}
	items := make([]core.Attempt, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.AttemptPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

// createdAtBound binds the time value itself so the driver encodes it in
// the same layout bun used on insert. RFC3339 text does not compare
// correctly against stored sqlite timestamps.
func createdAtBound(operator string, value time.Time) repository.SelectCriteria {
	return repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.created_at "+operator+" ?", value)
	})
}

// Prune deletes attempts older than the TTL, then the oldest rows beyond
// the row cap.
func (s *AttemptStore) Prune(ctx context.Context, policy core.RetentionPolicy) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: attempt store is not configured")
	}
	deleted := 0

	if policy.TTL > 0 {
		cutoff := s.now().Add(-policy.TTL)
		res, err := s.db.NewDelete().
			Model((*attemptRecord)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return deleted, err
		}
		affected, _ := res.RowsAffected()
		deleted += int(affected)
	}

	if policy.RowCap > 0 {
		total, err := s.db.NewSelect().Model((*attemptRecord)(nil)).Count(ctx)
		if err != nil {
			return deleted, err
		}
		excess := total - policy.RowCap
		if excess > 0 {
			res, err := s.db.NewRaw(
				"DELETE FROM reveal_attempts WHERE id IN (SELECT id FROM reveal_attempts ORDER BY created_at ASC, id ASC LIMIT ?)",
				excess,
			).Exec(ctx)
			if err != nil {
				return deleted, err
			}
			affected, _ := res.RowsAffected()
			deleted += int(affected)
		}
	}

	return deleted, nil
}

var (
	_ core.AttemptRecorder = (*AttemptStore)(nil)
	_ core.AttemptReader   = (*AttemptStore)(nil)
	_ core.AttemptPruner   = (*AttemptStore)(nil)
)
