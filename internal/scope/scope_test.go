package scope

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker-api/internal/apperr"
	"tracker-api/internal/store"
)

type fakeMembership struct {
	workspaces map[string]string // slug -> id
	roles      map[string]string // workspaceID/userID -> role
}

func (f fakeMembership) WorkspaceBySlug(_ context.Context, slug string) (store.Workspace, error) {
	id, ok := f.workspaces[slug]
	if !ok {
		return store.Workspace{}, apperr.NotFound("no workspace")
	}
	return store.Workspace{ID: id, Slug: slug}, nil
}

func (f fakeMembership) MemberRole(_ context.Context, workspaceID, userID string) (string, error) {
	role, ok := f.roles[workspaceID+"/"+userID]
	if !ok {
		return "", apperr.NotFound("no member")
	}
	return role, nil
}

func fixture() fakeMembership {
	return fakeMembership{
		workspaces: map[string]string{"acme": "w1", "other": "w2"},
		roles:      map[string]string{"w1/u1": "owner"},
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	sc, err := Resolve(ctx, fixture(), "u1", "acme")
	require.NoError(t, err)
	assert.Equal(t, Context{WorkspaceID: "w1", Slug: "acme", PrincipalID: "u1", Role: "owner"}, sc)

	_, err = Resolve(ctx, fixture(), "", "acme")
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))

	_, missing := Resolve(ctx, fixture(), "u1", "nope")
	_, foreign := Resolve(ctx, fixture(), "u1", "other")
	assert.True(t, errors.Is(missing, apperr.ErrNotFound))
	assert.True(t, errors.Is(foreign, apperr.ErrNotFound))
	// absent and foreign workspaces must be indistinguishable
	assert.Equal(t, missing.Error(), foreign.Error())
}

func TestMiddleware(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		switch {
		case errors.Is(err, apperr.ErrUnauthenticated):
			return c.SendStatus(http.StatusUnauthorized)
		case errors.Is(err, apperr.ErrNotFound):
			return c.SendStatus(http.StatusNotFound)
		}
		return c.SendStatus(http.StatusInternalServerError)
	}})
	principal := func(c *fiber.Ctx) string { return c.Get("X-User") }
	app.Get("/ws/:workspace/ping", Middleware(fixture(), principal), func(c *fiber.Ctx) error {
		sc, err := From(c)
		if err != nil {
			return err
		}
		return c.SendString(sc.WorkspaceID)
	})

	cases := []struct {
		user, slug string
		want       int
	}{
		{"u1", "acme", http.StatusOK},
		{"", "acme", http.StatusUnauthorized},
		{"u1", "other", http.StatusNotFound},
		{"u1", "nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ws/"+tc.slug+"/ping", nil)
		if tc.user != "" {
			req.Header.Set("X-User", tc.user)
		}
		res, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.StatusCode, "user=%q slug=%q", tc.user, tc.slug)
	}
}
