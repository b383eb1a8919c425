package crud

import (
	"context"
	"strings"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/apperr"
	"tracker-api/internal/resource"
	"tracker-api/internal/scope"
	"tracker-api/internal/store"
	"tracker-api/internal/validation"
)

// Paging bounds. MaxPage keeps the offset far from integer overflow.
const (
	DefaultLimit = 50
	MaxLimit     = 200
	MaxPage      = 1_000_000
)

// ListQuery carries the list options of a request.
type ListQuery struct {
	Search string
	// Sort is "field", "field:asc", "field:desc" or "-field".
	Sort  string
	Page  int
	Limit int
}

func (lq ListQuery) bounds() (limit, offset int) {
	limit = lq.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	page := min(max(lq.Page, 1), MaxPage)
	return limit, (page - 1) * limit
}

// Page is one page of a list and the total number of matching rows.
type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// Service serves the verbs of one resource.
type Service[T any] struct {
	*Engine
	res *resource.Resource[T]
	cfg *resource.Config
}

func NewService[T any](e *Engine, res *resource.Resource[T]) *Service[T] {
	return &Service[T]{Engine: e, res: res, cfg: res.Config()}
}

// Config returns the resource config.
func (s *Service[T]) Config() *resource.Config { return s.cfg }

// List returns the rows under path matching lq, with the total count.
func (s *Service[T]) List(ctx context.Context, sc scope.Context, path Path, lq ListQuery) (Page[T], error) {
	q := s.Store.Q()
	if err := s.resolvePath(ctx, q, s.cfg, sc, path); err != nil {
		return Page[T]{}, err
	}
	order, err := ParseSort(s.cfg, lq.Sort)
	if err != nil {
		return Page[T]{}, err
	}
	pred := siblings(s.cfg, sc, path)
	if search := strings.TrimSpace(lq.Search); search != "" && len(s.cfg.SearchFields) > 0 {
		terms := make([]*entsql.Predicate, 0, len(s.cfg.SearchFields))
		for _, f := range s.cfg.SearchFields {
			terms = append(terms, entsql.ContainsFold(f, search))
		}
		pred = entsql.And(pred, entsql.Or(terms...))
	}
	total, err := q.Count(ctx, s.cfg.TableName(), pred)
	if err != nil {
		return Page[T]{}, err
	}
	limit, offset := lq.bounds()
	recs, err := q.Select(ctx, s.cfg.TableName(), s.cfg.Columns(), func(sel *entsql.Selector) {
		sel.Where(pred).OrderBy(order...).OrderBy(entsql.Asc(resource.ColID)).Limit(limit).Offset(offset)
	})
	if err != nil {
		return Page[T]{}, err
	}
	items, err := s.decode(recs)
	if err != nil {
		return Page[T]{}, err
	}
	return Page[T]{Data: items, Total: total}, nil
}

// Get returns one row. Rows of other workspaces are reported as not found.
func (s *Service[T]) Get(ctx context.Context, sc scope.Context, path Path, id string) (T, error) {
	var zero T
	q := s.Store.Q()
	if err := s.resolvePath(ctx, q, s.cfg, sc, path); err != nil {
		return zero, err
	}
	rec, err := s.find(ctx, q, sc, path, id)
	if err != nil {
		return zero, err
	}
	return s.res.Decode(rec)
}

// Create validates payload and inserts a row owned by the caller's workspace.
func (s *Service[T]) Create(ctx context.Context, sc scope.Context, path Path, payload map[string]any) (T, error) {
	var zero T
	if err := allowed(s.cfg, sc, resource.ActionCreate); err != nil {
		return zero, err
	}
	var created resource.Record
	err := s.Store.InTx(ctx, func(q *store.Querier) error {
		if err := s.resolvePath(ctx, q, s.cfg, sc, path); err != nil {
			return err
		}
		vals, err := validation.Validate(s.cfg, payload, validation.Create)
		if err != nil {
			return err
		}
		if err := guardValues(s.cfg, sc, nil, vals); err != nil {
			return err
		}
		if err := s.checkRefs(ctx, q, s.cfg, sc, vals); err != nil {
			return err
		}
		rec := s.stamp(sc, path, vals)
		if s.cfg.Ordered {
			want, explicit := vals[resource.ColPosition].(int)
			pos, err := s.placeNew(ctx, q, s.cfg, sc, path, want, explicit)
			if err != nil {
				return err
			}
			rec[resource.ColPosition] = pos
		}
		if err := q.Insert(ctx, s.cfg.TableName(), rec); err != nil {
			return err
		}
		created, err = s.find(ctx, q, sc, path, str(rec[resource.ColID]))
		return err
	})
	if err != nil {
		return zero, err
	}
	s.emit(ctx, sc, s.cfg, Created, created)
	return s.res.Decode(created)
}

// Update applies a partial payload to an existing row.
func (s *Service[T]) Update(ctx context.Context, sc scope.Context, path Path, id string, payload map[string]any) (T, error) {
	var zero T
	var updated resource.Record
	err := s.Store.InTx(ctx, func(q *store.Querier) error {
		if err := s.resolvePath(ctx, q, s.cfg, sc, path); err != nil {
			return err
		}
		existing, err := s.find(ctx, q, sc, path, id)
		if err != nil {
			return err
		}
		if err := allowed(s.cfg, sc, resource.ActionUpdate); err != nil {
			return err
		}
		vals, err := validation.Validate(s.cfg, payload, validation.Update)
		if err != nil {
			return err
		}
		if err := guardValues(s.cfg, sc, existing, vals); err != nil {
			return err
		}
		if err := s.checkRefs(ctx, q, s.cfg, sc, vals); err != nil {
			return err
		}
		if to, ok := vals[resource.ColPosition].(int); ok && s.cfg.Ordered {
			from := existing[resource.ColPosition].(int)
			if vals[resource.ColPosition], err = s.move(ctx, q, s.cfg, sc, path, from, to); err != nil {
				return err
			}
		}
		vals[resource.ColUpdatedAt] = s.Store.Now()
		if _, err := q.Update(ctx, s.cfg.TableName(), vals, byID(s.cfg, sc, path, id)); err != nil {
			return err
		}
		if err := s.retain(ctx, q, s.cfg, sc, path, existing, vals); err != nil {
			return err
		}
		updated, err = s.find(ctx, q, sc, path, id)
		return err
	})
	if err != nil {
		return zero, err
	}
	s.emit(ctx, sc, s.cfg, Updated, updated)
	return s.res.Decode(updated)
}

// Delete removes a row and everything nested under it. Remaining ordered
// siblings are renumbered so positions stay contiguous.
func (s *Service[T]) Delete(ctx context.Context, sc scope.Context, path Path, id string) error {
	var changes []change
	err := s.Store.InTx(ctx, func(q *store.Querier) error {
		if err := s.resolvePath(ctx, q, s.cfg, sc, path); err != nil {
			return err
		}
		existing, err := s.find(ctx, q, sc, path, id)
		if err != nil {
			return err
		}
		if err := allowed(s.cfg, sc, resource.ActionDelete); err != nil {
			return err
		}
		if err := guardValues(s.cfg, sc, existing, nil); err != nil {
			return err
		}
		cascaded, err := s.cascade(ctx, q, s.cfg, sc, id)
		if err != nil {
			return err
		}
		if _, err := q.Delete(ctx, s.cfg.TableName(), byID(s.cfg, sc, path, id)); err != nil {
			return err
		}
		if s.cfg.Ordered {
			if err := s.closeGap(ctx, q, s.cfg, sc, path, existing[resource.ColPosition].(int)); err != nil {
				return err
			}
		}
		if err := s.retain(ctx, q, s.cfg, sc, path, existing, nil); err != nil {
			return err
		}
		changes = append(cascaded, change{cfg: s.cfg, action: Deleted, rec: existing})
		return nil
	})
	if err != nil {
		return err
	}
	s.emitAll(ctx, sc, changes)
	return nil
}

// Duplicate copies a row and its structural children. Children stamped with
// a principal (comments, reactions) are not copied.
func (s *Service[T]) Duplicate(ctx context.Context, sc scope.Context, path Path, id string) (T, error) {
	var zero T
	var copied resource.Record
	err := s.Store.InTx(ctx, func(q *store.Querier) error {
		if err := s.resolvePath(ctx, q, s.cfg, sc, path); err != nil {
			return err
		}
		src, err := s.find(ctx, q, sc, path, id)
		if err != nil {
			return err
		}
		if err := allowed(s.cfg, sc, resource.ActionDuplicate); err != nil {
			return err
		}
		if err := guardValues(s.cfg, sc, nil, src); err != nil {
			return err
		}
		rec := s.clone(src, sc)
		if _, ok := s.cfg.Field("name"); ok {
			if rec["name"], err = copyName(s.cfg, str(src["name"])); err != nil {
				return err
			}
		}
		if s.cfg.Ordered {
			if rec[resource.ColPosition], err = s.placeNew(ctx, q, s.cfg, sc, path, 0, false); err != nil {
				return err
			}
		}
		if err := q.Insert(ctx, s.cfg.TableName(), rec); err != nil {
			return err
		}
		if err := s.copyChildren(ctx, q, s.cfg, sc, id, str(rec[resource.ColID])); err != nil {
			return err
		}
		copied, err = s.find(ctx, q, sc, path, str(rec[resource.ColID]))
		return err
	})
	if err != nil {
		return zero, err
	}
	s.emit(ctx, sc, s.cfg, Created, copied)
	return s.res.Decode(copied)
}

// copyName suffixes name with " (copy)", shortening name until the result
// passes the field's rules.
func copyName(cfg *resource.Config, name string) (string, error) {
	base := []rune(name)
	for {
		candidate := string(base) + " (copy)"
		_, err := validation.Validate(cfg, map[string]any{"name": candidate}, validation.Update)
		if err == nil {
			return candidate, nil
		}
		if len(base) == 0 {
			return "", err
		}
		base = base[:len(base)-1]
	}
}

func (s *Service[T]) copyChildren(ctx context.Context, q *store.Querier, cfg *resource.Config, sc scope.Context, fromID, toID string) error {
	for _, child := range s.Registry.Children(cfg.Name) {
		if child.PrincipalField != "" {
			continue
		}
		rows, err := q.Select(ctx, child.TableName(), child.Columns(), func(sel *entsql.Selector) {
			sel.Where(entsql.And(inWorkspace(sc), entsql.EQ(child.Parent.KeyField, fromID)))
			if child.Ordered {
				sel.OrderBy(entsql.Asc(resource.ColPosition))
			}
		})
		if err != nil {
			return err
		}
		for _, row := range rows {
			rec := s.clone(normalize(child, row), sc)
			rec[child.Parent.KeyField] = toID
			if err := q.Insert(ctx, child.TableName(), rec); err != nil {
				return err
			}
			if err := s.copyChildren(ctx, q, child, sc, str(row[resource.ColID]), str(rec[resource.ColID])); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service[T]) clone(src resource.Record, sc scope.Context) resource.Record {
	now := s.Store.Now()
	rec := make(resource.Record, len(src))
	for k, v := range src {
		rec[k] = v
	}
	rec[resource.ColID] = uuid.NewString()
	rec[resource.ColWorkspaceID] = sc.WorkspaceID
	rec[resource.ColCreatedAt] = now
	rec[resource.ColUpdatedAt] = now
	return rec
}

// stamp adds the server-controlled columns to validated values.
func (s *Service[T]) stamp(sc scope.Context, path Path, vals resource.Record) resource.Record {
	now := s.Store.Now()
	rec := make(resource.Record, len(vals)+6)
	for k, v := range vals {
		rec[k] = v
	}
	rec[resource.ColID] = uuid.NewString()
	rec[resource.ColWorkspaceID] = sc.WorkspaceID
	if key := s.cfg.ParentKey(); key != "" {
		rec[key] = path.Parent()
	}
	if s.cfg.PrincipalField != "" {
		rec[s.cfg.PrincipalField] = sc.PrincipalID
	}
	rec[resource.ColCreatedAt] = now
	rec[resource.ColUpdatedAt] = now
	return rec
}

func (s *Service[T]) find(ctx context.Context, q *store.Querier, sc scope.Context, path Path, id string) (resource.Record, error) {
	rec, err := q.First(ctx, s.cfg.TableName(), s.cfg.Columns(), byID(s.cfg, sc, path, id))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperr.NotFound("resource not found",
				goerr.V(apperr.ResourceKey, s.cfg.Name), goerr.V(apperr.IDKey, id))
		}
		return nil, err
	}
	return normalize(s.cfg, rec), nil
}

func (s *Service[T]) decode(recs []resource.Record) ([]T, error) {
	for _, rec := range recs {
		normalize(s.cfg, rec)
	}
	return s.res.DecodeAll(recs)
}

// ParseSort turns a sort expression into ORDER BY terms. An empty
// expression selects the configured sort field, then creation time.
func ParseSort(cfg *resource.Config, raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if cfg.SortField != "" {
			return []string{entsql.Asc(cfg.SortField)}, nil
		}
		return []string{entsql.Asc(resource.ColCreatedAt)}, nil
	}
	col, dir, _ := strings.Cut(raw, ":")
	desc := false
	if strings.HasPrefix(col, "-") {
		col, desc = col[1:], true
	}
	switch strings.ToLower(dir) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return nil, apperr.BadRequest("invalid sort direction", goerr.V("sort", raw))
	}
	if !cfg.Sortable(col) {
		return nil, apperr.BadRequest("invalid sort field", goerr.V("sort", raw))
	}
	if desc {
		return []string{entsql.Desc(col)}, nil
	}
	return []string{entsql.Asc(col)}, nil
}
