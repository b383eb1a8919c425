package crud

import (
	"context"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker-api/internal/apperr"
	"tracker-api/internal/db"
	"tracker-api/internal/resource"
	"tracker-api/internal/scope"
	"tracker-api/internal/store"
	"tracker-api/internal/tracker"
)

// positions reads the stored positions under path, lowest first.
func positions(t *testing.T, e *Engine, cfg *resource.Config, sc scope.Context, path Path) []int {
	t.Helper()
	recs, err := e.Store.Q().Select(context.Background(), cfg.TableName(), []string{resource.ColPosition}, func(sel *entsql.Selector) {
		sel.Where(siblings(cfg, sc, path)).OrderBy(entsql.Asc(resource.ColPosition))
	})
	require.NoError(t, err)
	out := make([]int, 0, len(recs))
	for _, r := range recs {
		n, _ := store.AsInt(r[resource.ColPosition])
		out = append(out, n)
	}
	return out
}

func stateNames(t *testing.T, f *fixture, states *Service[tracker.State], flowID string) []string {
	t.Helper()
	page, err := states.List(f.ctx, f.a, Path{flowID}, ListQuery{})
	require.NoError(t, err)
	out := make([]string, 0, len(page.Data))
	for i, s := range page.Data {
		require.Equal(t, i, s.Position, "positions must be contiguous")
		out = append(out, s.Name)
	}
	return out
}

func TestNested_Positions(t *testing.T) {
	f := newFixture(t)
	flows := NewService(f.eng, f.res.StatusFlows)
	states := NewService(f.eng, f.res.States)

	flow, err := flows.Create(f.ctx, f.a, nil, map[string]any{"name": "Default"})
	require.NoError(t, err)
	path := Path{flow.ID}

	ids := map[string]string{}
	for _, n := range []string{"Todo", "Doing", "Done"} {
		s, err := states.Create(f.ctx, f.a, path, map[string]any{"name": n, "category": "started"})
		require.NoError(t, err)
		ids[n] = s.ID
	}
	assert.Equal(t, []string{"Todo", "Doing", "Done"}, stateNames(t, f, states, flow.ID))

	// explicit position shifts the rest down
	s, err := states.Create(f.ctx, f.a, path, map[string]any{"name": "Backlog", "category": "backlog", "position": 0})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Position)
	ids["Backlog"] = s.ID
	assert.Equal(t, []string{"Backlog", "Todo", "Doing", "Done"}, stateNames(t, f, states, flow.ID))

	// a position past the end is clamped
	s, err = states.Create(f.ctx, f.a, path, map[string]any{"name": "Canceled", "category": "canceled", "position": 42})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Position)
	ids["Canceled"] = s.ID

	// move down, then up
	_, err = states.Update(f.ctx, f.a, path, ids["Backlog"], map[string]any{"position": 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Todo", "Doing", "Backlog", "Done", "Canceled"}, stateNames(t, f, states, flow.ID))
	_, err = states.Update(f.ctx, f.a, path, ids["Canceled"], map[string]any{"position": 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"Canceled", "Todo", "Doing", "Backlog", "Done"}, stateNames(t, f, states, flow.ID))

	// deleting closes the gap
	require.NoError(t, states.Delete(f.ctx, f.a, path, ids["Doing"]))
	assert.Equal(t, []string{"Canceled", "Todo", "Backlog", "Done"}, stateNames(t, f, states, flow.ID))

	assert.Equal(t, []int{0, 1, 2, 3}, positions(t, f.eng, states.Config(), f.a, path))
}

func TestNested_SiblingGroupsAreIndependent(t *testing.T) {
	f := newFixture(t)
	flows := NewService(f.eng, f.res.StatusFlows)
	states := NewService(f.eng, f.res.States)

	one, err := flows.Create(f.ctx, f.a, nil, map[string]any{"name": "One"})
	require.NoError(t, err)
	two, err := flows.Create(f.ctx, f.a, nil, map[string]any{"name": "Two"})
	require.NoError(t, err)

	a, err := states.Create(f.ctx, f.a, Path{one.ID}, map[string]any{"name": "A", "category": "started"})
	require.NoError(t, err)
	b, err := states.Create(f.ctx, f.a, Path{two.ID}, map[string]any{"name": "B", "category": "started"})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 0, b.Position)

	// a state is invisible under the wrong flow
	_, err = states.Update(f.ctx, f.a, Path{two.ID}, a.ID, map[string]any{"name": "X"})
	require.Error(t, err)
}

func TestDuplicate_CopiesOrderedChildren(t *testing.T) {
	f := newFixture(t)
	flows := NewService(f.eng, f.res.StatusFlows)
	states := NewService(f.eng, f.res.States)

	flow, err := flows.Create(f.ctx, f.a, nil, map[string]any{"name": "Default", "is_default": true})
	require.NoError(t, err)
	assert.True(t, flow.IsDefault)
	for _, n := range []string{"Todo", "Doing", "Done"} {
		_, err := states.Create(f.ctx, f.a, Path{flow.ID}, map[string]any{"name": n, "category": "started"})
		require.NoError(t, err)
	}

	cp, err := flows.Duplicate(f.ctx, f.a, nil, flow.ID)
	require.NoError(t, err)
	assert.NotEqual(t, flow.ID, cp.ID)
	assert.Equal(t, "Default (copy)", cp.Name)
	assert.Equal(t, []string{"Todo", "Doing", "Done"}, stateNames(t, f, states, cp.ID))
	assert.Equal(t, []string{"Todo", "Doing", "Done"}, stateNames(t, f, states, flow.ID))
}

type board struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type card struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	BoardID     string    `json:"board_id"`
	Name        string    `json:"name"`
	Kind        *string   `json:"kind"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// A write that fails after siblings were shifted must leave them as they were.
func TestNested_FailedWriteKeepsPositions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	reg := resource.NewRegistry()
	writes := []resource.Action{resource.ActionCreate, resource.ActionUpdate, resource.ActionDelete}
	boardRes, err := resource.Register[board](reg, resource.Config{
		Name:    "boards",
		Fields:  []resource.Field{{Key: "name", Type: resource.Text, Required: true}},
		Actions: writes,
	})
	require.NoError(t, err)
	cardRes, err := resource.Register[card](reg, resource.Config{
		Name: "cards",
		Fields: []resource.Field{
			{Key: "name", Type: resource.Text, Required: true, Unique: true},
			{Key: "kind", Type: resource.Select, Options: []string{"pinned", "plain"}, Retain: []string{"pinned"}},
		},
		SortField: resource.ColPosition,
		Actions:   writes,
		Parent:    &resource.ParentRelation{Resource: "boards", KeyField: "board_id"},
		Ordered:   true,
	})
	require.NoError(t, err)
	require.NoError(t, reg.Check())

	drv, closeFn, err := db.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(closeFn)
	require.NoError(t, db.Migrate(ctx, drv, reg))

	eng := NewEngine(store.New(drv), reg)
	sc := scope.Context{WorkspaceID: uuid.NewString(), PrincipalID: uuid.NewString(), Role: store.RoleOwner}
	boards := NewService(eng, boardRes)
	cards := NewService(eng, cardRes)

	b, err := boards.Create(ctx, sc, nil, map[string]any{"name": "Sprint"})
	require.NoError(t, err)
	path := Path{b.ID}
	ids := map[string]string{}
	for _, n := range []string{"a", "b", "c"} {
		kind := "plain"
		if n == "b" {
			kind = "pinned"
		}
		c, err := cards.Create(ctx, sc, path, map[string]any{"name": n, "kind": kind})
		require.NoError(t, err)
		ids[n] = c.ID
	}
	order := func() []string {
		page, err := cards.List(ctx, sc, path, ListQuery{})
		require.NoError(t, err)
		out := make([]string, 0, len(page.Data))
		for _, c := range page.Data {
			out = append(out, c.Name)
		}
		return out
	}
	cfg := cardRes.Config()

	// insert at the front conflicts after the shift
	_, err = cards.Create(ctx, sc, path, map[string]any{"name": "c", "position": 0})
	requireKind(t, err, apperr.ErrConflict)
	assert.Equal(t, []int{0, 1, 2}, positions(t, eng, cfg, sc, path))
	assert.Equal(t, []string{"a", "b", "c"}, order())

	// a move whose update conflicts
	_, err = cards.Update(ctx, sc, path, ids["c"], map[string]any{"name": "a", "position": 0})
	requireKind(t, err, apperr.ErrConflict)
	assert.Equal(t, []int{0, 1, 2}, positions(t, eng, cfg, sc, path))
	assert.Equal(t, []string{"a", "b", "c"}, order())

	// a delete refused after the gap was closed
	err = cards.Delete(ctx, sc, path, ids["b"])
	requireKind(t, err, apperr.ErrConflict)
	assert.Equal(t, []int{0, 1, 2}, positions(t, eng, cfg, sc, path))
	assert.Equal(t, []string{"a", "b", "c"}, order())

	// the same writes succeed once nothing stands in the way
	require.NoError(t, cards.Delete(ctx, sc, path, ids["a"]))
	assert.Equal(t, []int{0, 1}, positions(t, eng, cfg, sc, path))
	assert.Equal(t, []string{"b", "c"}, order())
}
