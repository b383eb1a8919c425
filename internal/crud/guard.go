package crud

import (
	"context"
	"slices"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/apperr"
	"tracker-api/internal/resource"
	"tracker-api/internal/scope"
	"tracker-api/internal/store"
)

// guardValues rejects assigning or taking away a protected value unless the
// caller holds the role of that name. before is nil on create, after is nil
// on delete.
func guardValues(cfg *resource.Config, sc scope.Context, before, after resource.Record) error {
	for _, f := range cfg.Fields {
		if len(f.Protected) == 0 {
			continue
		}
		var touched []string
		next, set := after[f.Key]
		switch {
		case before == nil:
			touched = append(touched, str(next))
		case after == nil:
			touched = append(touched, str(before[f.Key]))
		case set && str(next) != str(before[f.Key]):
			touched = append(touched, str(before[f.Key]), str(next))
		}
		for _, v := range touched {
			if slices.Contains(f.Protected, v) && sc.Role != v {
				return apperr.Disallowed("role may not grant or revoke this value",
					goerr.V(apperr.ResourceKey, cfg.Name), goerr.V("field", f.Key),
					goerr.V("value", v), goerr.V("role", sc.Role))
			}
		}
	}
	return nil
}

// retain fails when a write left no row of the workspace holding a retained
// value that the written row held before. It runs inside the write's
// transaction so a failure rolls the write back.
func (e *Engine) retain(ctx context.Context, q *store.Querier, cfg *resource.Config, sc scope.Context, path Path, before, after resource.Record) error {
	for _, f := range cfg.Fields {
		old := str(before[f.Key])
		if !slices.Contains(f.Retain, old) {
			continue
		}
		if after != nil {
			if next, set := after[f.Key]; !set || str(next) == old {
				continue
			}
		}
		n, err := q.Count(ctx, cfg.TableName(), entsql.And(siblings(cfg, sc, path), entsql.EQ(f.Key, old)))
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.Conflict(goerr.New("no holder left", goerr.V("value", old)),
				"the last "+old+" cannot be removed",
				goerr.V(apperr.ResourceKey, cfg.Name), goerr.V("field", f.Key))
		}
	}
	return nil
}
