package crud

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"

	"tracker-api/internal/resource"
	"tracker-api/internal/scope"
	"tracker-api/internal/store"
)

// Ordered children keep positions 0..n-1 among their siblings. Every helper
// below runs inside the transaction that performs the insert, move or delete.

// placeNew returns the position of a new sibling. Without an explicit
// position the row is appended. An explicit position is clamped to the end
// and every sibling at or after it moves down by one.
func (e *Engine) placeNew(ctx context.Context, q *store.Querier, cfg *resource.Config, sc scope.Context, path Path, want int, explicit bool) (int, error) {
	group := siblings(cfg, sc, path)
	last, err := q.Max(ctx, cfg.TableName(), resource.ColPosition, group)
	if err != nil {
		return 0, err
	}
	next := last + 1
	if !explicit || want >= next {
		return next, nil
	}
	_, err = q.Shift(ctx, cfg.TableName(), resource.ColPosition, 1,
		entsql.And(group, entsql.GTE(resource.ColPosition, want)))
	return want, err
}

// move shifts the siblings between from and to so a row can take position
// to. It returns the clamped target position.
func (e *Engine) move(ctx context.Context, q *store.Querier, cfg *resource.Config, sc scope.Context, path Path, from, to int) (int, error) {
	group := siblings(cfg, sc, path)
	last, err := q.Max(ctx, cfg.TableName(), resource.ColPosition, group)
	if err != nil {
		return 0, err
	}
	if to > last {
		to = last
	}
	switch {
	case to < from:
		_, err = q.Shift(ctx, cfg.TableName(), resource.ColPosition, 1, entsql.And(group,
			entsql.GTE(resource.ColPosition, to), entsql.LT(resource.ColPosition, from)))
	case to > from:
		_, err = q.Shift(ctx, cfg.TableName(), resource.ColPosition, -1, entsql.And(group,
			entsql.GT(resource.ColPosition, from), entsql.LTE(resource.ColPosition, to)))
	}
	return to, err
}

// closeGap moves every sibling after a removed position up by one.
func (e *Engine) closeGap(ctx context.Context, q *store.Querier, cfg *resource.Config, sc scope.Context, path Path, removed int) error {
	_, err := q.Shift(ctx, cfg.TableName(), resource.ColPosition, -1,
		entsql.And(siblings(cfg, sc, path), entsql.GT(resource.ColPosition, removed)))
	return err
}
