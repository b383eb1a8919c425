// Package crud implements the verb contract shared by every registered
// resource: list, get, create, update, delete and duplicate, plus ordered
// children and presence toggles. Every query is filtered by the caller's
// workspace.
package crud

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/apperr"
	"tracker-api/internal/logx"
	"tracker-api/internal/resource"
	"tracker-api/internal/scope"
	"tracker-api/internal/store"
)

var crudLogger = logx.GetScope("crud")

// Path holds the ids of a nested resource's ancestors, outermost first.
type Path []string

// Parent returns the immediate parent id, or "".
func (p Path) Parent() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Event describes a committed mutation.
type Event struct {
	Resource    string          `json:"resource"`
	Action      string          `json:"action"`
	WorkspaceID string          `json:"workspace_id"`
	ID          string          `json:"id"`
	ActorID     string          `json:"actor_id"`
	Record      resource.Record `json:"record,omitempty"`
	At          time.Time       `json:"at"`
}

// Event actions.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// Hook observes committed mutations. Hooks must not fail the request; they
// log their own errors.
type Hook interface {
	AfterCommit(ctx context.Context, ev Event)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, ev Event)

func (f HookFunc) AfterCommit(ctx context.Context, ev Event) { f(ctx, ev) }

// Engine holds what every resource service shares.
type Engine struct {
	Store    *store.Store
	Registry *resource.Registry
	Hooks    []Hook
}

func NewEngine(st *store.Store, reg *resource.Registry, hooks ...Hook) *Engine {
	return &Engine{Store: st, Registry: reg, Hooks: hooks}
}

func (e *Engine) emit(ctx context.Context, sc scope.Context, cfg *resource.Config, action string, rec resource.Record) {
	if len(e.Hooks) == 0 {
		return
	}
	ev := Event{
		Resource:    cfg.Name,
		Action:      action,
		WorkspaceID: sc.WorkspaceID,
		ID:          str(rec[resource.ColID]),
		ActorID:     sc.PrincipalID,
		Record:      rec,
		At:          e.Store.Now(),
	}
	for _, h := range e.Hooks {
		h.AfterCommit(ctx, ev)
	}
}

func inWorkspace(sc scope.Context) *entsql.Predicate {
	return entsql.EQ(resource.ColWorkspaceID, sc.WorkspaceID)
}

// siblings matches the rows of cfg visible under path.
func siblings(cfg *resource.Config, sc scope.Context, path Path) *entsql.Predicate {
	if cfg.Parent == nil {
		return inWorkspace(sc)
	}
	return entsql.And(inWorkspace(sc), entsql.EQ(cfg.Parent.KeyField, path.Parent()))
}

func byID(cfg *resource.Config, sc scope.Context, path Path, id string) *entsql.Predicate {
	return entsql.And(siblings(cfg, sc, path), entsql.EQ(resource.ColID, id))
}

// resolvePath checks that every ancestor in path exists in the caller's
// workspace and that each one belongs to the previous. Inside a transaction
// on PostgreSQL the immediate parent row is locked, which serializes
// concurrent position changes among its children.
func (e *Engine) resolvePath(ctx context.Context, q *store.Querier, cfg *resource.Config, sc scope.Context, path Path) error {
	chain := e.Registry.Ancestors(cfg.Name)
	if len(chain) != len(path) {
		return apperr.NotFound("parent not found", goerr.V(apperr.ResourceKey, cfg.Name))
	}
	for i, anc := range chain {
		pred := entsql.And(inWorkspace(sc), entsql.EQ(resource.ColID, path[i]))
		if i > 0 {
			pred = entsql.And(pred, entsql.EQ(anc.Parent.KeyField, path[i-1]))
		}
		if _, err := q.First(ctx, anc.TableName(), []string{resource.ColID}, pred); err != nil {
			if store.IsNotFound(err) {
				return apperr.NotFound("parent not found",
					goerr.V(apperr.ResourceKey, anc.Name), goerr.V(apperr.ParentKey, path[i]))
			}
			return err
		}
	}
	return nil
}

// checkRefs verifies that every reference field names an existing row. Rows
// of a resource must also belong to the caller's workspace.
func (e *Engine) checkRefs(ctx context.Context, q *store.Querier, cfg *resource.Config, sc scope.Context, vals resource.Record) error {
	verr := &apperr.ValidationError{}
	for _, f := range cfg.Fields {
		if f.Ref == "" && f.RefTable == "" {
			continue
		}
		id, ok := vals[f.Key].(string)
		if !ok || id == "" {
			continue
		}
		table, pred := f.RefTable, entsql.EQ(resource.ColID, id)
		if f.Ref != "" {
			target, _ := e.Registry.Get(f.Ref)
			table, pred = target.TableName(), entsql.And(inWorkspace(sc), pred)
		}
		found, err := q.Exists(ctx, table, pred)
		if err != nil {
			return err
		}
		if !found {
			verr.Add(f.Key, "not found")
		}
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}

// change is a row touched by a mutation, reported to hooks after commit.
type change struct {
	cfg    *resource.Config
	action string
	rec    resource.Record
}

func (e *Engine) emitAll(ctx context.Context, sc scope.Context, changes []change) {
	for _, c := range changes {
		e.emit(ctx, sc, c.cfg, c.action, c.rec)
	}
}

// cascade deletes the descendants of one row and clears nullable references
// to it. It returns every row it removed or rewrote.
func (e *Engine) cascade(ctx context.Context, q *store.Querier, cfg *resource.Config, sc scope.Context, id string) ([]change, error) {
	var out []change
	for _, child := range e.Registry.Children(cfg.Name) {
		owned := entsql.And(inWorkspace(sc), entsql.EQ(child.Parent.KeyField, id))
		rows, err := q.Select(ctx, child.TableName(), child.Columns(), func(s *entsql.Selector) { s.Where(owned) })
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		for _, row := range rows {
			nested, err := e.cascade(ctx, q, child, sc, str(row[resource.ColID]))
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			out = append(out, change{cfg: child, action: Deleted, rec: normalize(child, row)})
		}
		if _, err := q.Delete(ctx, child.TableName(), owned); err != nil {
			return nil, err
		}
	}
	for _, other := range e.Registry.Configs() {
		for _, f := range other.Fields {
			if f.Ref != cfg.Name || f.Required {
				continue
			}
			pointing := entsql.And(inWorkspace(sc), entsql.EQ(f.Key, id))
			rows, err := q.Select(ctx, other.TableName(), other.Columns(), func(s *entsql.Selector) { s.Where(pointing) })
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				continue
			}
			now := e.Store.Now()
			if _, err := q.Update(ctx, other.TableName(), resource.Record{f.Key: nil, resource.ColUpdatedAt: now}, pointing); err != nil {
				return nil, err
			}
			for _, row := range rows {
				rec := normalize(other, row)
				rec[f.Key] = nil
				rec[resource.ColUpdatedAt] = now
				out = append(out, change{cfg: other, action: Updated, rec: rec})
			}
		}
	}
	return out, nil
}

// normalize converts driver values to the types the models expect.
func normalize(cfg *resource.Config, rec resource.Record) resource.Record {
	for _, f := range cfg.Fields {
		if f.Type == resource.Switch {
			rec[f.Key] = asBool(rec[f.Key])
		}
	}
	if cfg.Ordered {
		n, _ := store.AsInt(rec[resource.ColPosition])
		rec[resource.ColPosition] = n
	}
	rec[resource.ColCreatedAt] = store.Time(rec[resource.ColCreatedAt])
	rec[resource.ColUpdatedAt] = store.Time(rec[resource.ColUpdatedAt])
	return rec
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case string:
		return b == "true" || b == "1"
	}
	return false
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func allowed(cfg *resource.Config, sc scope.Context, a resource.Action) error {
	if !cfg.Allows(a) {
		return apperr.Disallowed("action is not enabled",
			goerr.V(apperr.ResourceKey, cfg.Name), goerr.V(apperr.ActionKey, string(a)))
	}
	if !cfg.CanWrite(sc.Role) {
		return apperr.Disallowed("role may not modify this resource",
			goerr.V(apperr.ResourceKey, cfg.Name), goerr.V("role", sc.Role))
	}
	return nil
}
