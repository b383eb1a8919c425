package crud

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tracker-api/internal/apperr"
	"tracker-api/internal/db"
	"tracker-api/internal/scope"
	"tracker-api/internal/store"
	"tracker-api/internal/tracker"
)

type fixture struct {
	ctx    context.Context
	store  *store.Store
	res    *tracker.Resources
	eng    *Engine
	events *recorder
	a, b   scope.Context
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) AfterCommit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Resource+"."+ev.Action)
	}
	return out
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	drv, closeFn, err := db.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(closeFn)

	res, err := tracker.Build()
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, drv, res.Registry))

	st := store.New(drv)
	u, err := st.CreateUser(ctx, "owner@example.com", "Owner", "x")
	require.NoError(t, err)
	wa, err := st.CreateWorkspace(ctx, "Acme", "acme", u.ID)
	require.NoError(t, err)
	wb, err := st.CreateWorkspace(ctx, "Beta", "beta", u.ID)
	require.NoError(t, err)

	rec := &recorder{}
	return &fixture{
		ctx:    ctx,
		store:  st,
		res:    res,
		eng:    NewEngine(st, res.Registry, rec),
		events: rec,
		a:      scope.Context{WorkspaceID: wa.ID, Slug: wa.Slug, PrincipalID: u.ID, Role: store.RoleOwner},
		b:      scope.Context{WorkspaceID: wb.ID, Slug: wb.Slug, PrincipalID: u.ID, Role: store.RoleOwner},
	}
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "want %v, got %v", kind, err)
}

func requireFields(t *testing.T, err error, want map[string]string) {
	t.Helper()
	verr, ok := apperr.AsValidation(err)
	require.True(t, ok, "want validation error, got %v", err)
	require.Equal(t, want, verr.Fields)
}
