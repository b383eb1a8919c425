package crud

import (
	"context"
	"sort"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/apperr"
	"tracker-api/internal/resource"
	"tracker-api/internal/scope"
	"tracker-api/internal/store"
	"tracker-api/internal/validation"
)

// toggleAttempts bounds the insert-or-delete loop. Each round either writes
// or observes a concurrent writer, so contention resolves quickly.
const toggleAttempts = 5

// Tally is the aggregate of one discriminator value under a parent.
type Tally struct {
	Value string `json:"value"`
	Count int    `json:"count"`
	// Mine is true when the caller holds one of the counted rows.
	Mine bool `json:"mine"`
}

// ToggleResult is the outcome of one toggle.
type ToggleResult struct {
	Active    bool    `json:"active"`
	Aggregate []Tally `json:"aggregate"`
}

// ToggleService flips the presence of a (parent, principal, value) row.
type ToggleService struct {
	*Engine
	cfg *resource.Config
}

func NewToggleService(e *Engine, cfg *resource.Config) *ToggleService {
	return &ToggleService{Engine: e, cfg: cfg}
}

// Config returns the resource config.
func (t *ToggleService) Config() *resource.Config { return t.cfg }

// Toggle inserts the caller's row when absent and removes it when present.
// The unique key on the triple makes each call either one insert or one
// delete, so N concurrent toggles leave the row present iff N is odd.
func (t *ToggleService) Toggle(ctx context.Context, sc scope.Context, path Path, payload map[string]any) (ToggleResult, error) {
	vals, err := validation.Validate(t.cfg, payload, validation.Create)
	if err != nil {
		return ToggleResult{}, err
	}
	q := t.Store.Q()
	if err := t.resolvePath(ctx, q, t.cfg, sc, path); err != nil {
		return ToggleResult{}, err
	}
	value := str(vals[t.cfg.Toggle])
	key := entsql.And(
		inWorkspace(sc),
		entsql.EQ(t.cfg.Parent.KeyField, path.Parent()),
		entsql.EQ(t.cfg.PrincipalField, sc.PrincipalID),
		entsql.EQ(t.cfg.Toggle, value),
	)

	active, id, err := t.flip(ctx, q, sc, path, value, key)
	if err != nil {
		return ToggleResult{}, err
	}
	tallies, err := t.tally(ctx, q, sc, path)
	if err != nil {
		return ToggleResult{}, err
	}
	action := Deleted
	if active {
		action = Created
	}
	t.emit(ctx, sc, t.cfg, action, resource.Record{
		resource.ColID:          id,
		resource.ColWorkspaceID: sc.WorkspaceID,
		t.cfg.Parent.KeyField:   path.Parent(),
		t.cfg.PrincipalField:    sc.PrincipalID,
		t.cfg.Toggle:            value,
	})
	return ToggleResult{Active: active, Aggregate: tallies}, nil
}

func (t *ToggleService) flip(ctx context.Context, q *store.Querier, sc scope.Context, path Path, value string, key *entsql.Predicate) (bool, string, error) {
	for range toggleAttempts {
		now := t.Store.Now()
		id := uuid.NewString()
		inserted, err := q.InsertIgnore(ctx, t.cfg.TableName(), resource.Record{
			resource.ColID:          id,
			resource.ColWorkspaceID: sc.WorkspaceID,
			t.cfg.Parent.KeyField:   path.Parent(),
			t.cfg.PrincipalField:    sc.PrincipalID,
			t.cfg.Toggle:            value,
			resource.ColCreatedAt:   now,
			resource.ColUpdatedAt:   now,
		}, t.cfg.ToggleKey()...)
		if err != nil {
			return false, "", err
		}
		if inserted {
			return true, id, nil
		}
		held, err := q.First(ctx, t.cfg.TableName(), []string{resource.ColID}, key)
		if store.IsNotFound(err) {
			continue
		}
		if err != nil {
			return false, "", err
		}
		id = str(held[resource.ColID])
		n, err := q.Delete(ctx, t.cfg.TableName(), entsql.And(key, entsql.EQ(resource.ColID, id)))
		if err != nil {
			return false, "", err
		}
		if n > 0 {
			return false, id, nil
		}
		// the row vanished between insert and delete; try again
	}
	return false, "", apperr.Conflict(goerr.New("toggle contention"), "toggle did not settle",
		goerr.V(apperr.ResourceKey, t.cfg.Name))
}

// Get returns the aggregate under path.
func (t *ToggleService) Get(ctx context.Context, sc scope.Context, path Path) ([]Tally, error) {
	q := t.Store.Q()
	if err := t.resolvePath(ctx, q, t.cfg, sc, path); err != nil {
		return nil, err
	}
	return t.tally(ctx, q, sc, path)
}

// tally counts rows per value, most used first, ties in first-use order.
func (t *ToggleService) tally(ctx context.Context, q *store.Querier, sc scope.Context, path Path) ([]Tally, error) {
	recs, err := q.Select(ctx, t.cfg.TableName(), []string{t.cfg.Toggle, t.cfg.PrincipalField}, func(sel *entsql.Selector) {
		sel.Where(siblings(t.cfg, sc, path)).
			OrderBy(entsql.Asc(resource.ColCreatedAt), entsql.Asc(resource.ColID))
	})
	if err != nil {
		return nil, err
	}
	out := []Tally{}
	idx := map[string]int{}
	for _, r := range recs {
		v := str(r[t.cfg.Toggle])
		i, ok := idx[v]
		if !ok {
			i = len(out)
			idx[v] = i
			out = append(out, Tally{Value: v})
		}
		out[i].Count++
		if str(r[t.cfg.PrincipalField]) == sc.PrincipalID {
			out[i].Mine = true
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	return out, nil
}
