// Package scope resolves the workspace a request acts in and checks that the
// caller belongs to it.
package scope

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/apperr"
	"tracker-api/internal/logx"
	"tracker-api/internal/store"
)

var scopeLogger = logx.GetScope("scope")

// LocalsKey is where the middleware stores the resolved Context.
const LocalsKey = "scope"

// Context is the resolved tenant of one request. It is immutable once built.
type Context struct {
	WorkspaceID string
	Slug        string
	PrincipalID string
	Role        string
}

// Membership looks up workspaces and member roles.
type Membership interface {
	WorkspaceBySlug(ctx context.Context, slug string) (store.Workspace, error)
	MemberRole(ctx context.Context, workspaceID, userID string) (string, error)
}

// Resolve builds the scope for principalID acting in the workspace named by
// slug. An unknown workspace and a workspace the principal is not a member
// of produce the same not-found error.
func Resolve(ctx context.Context, m Membership, principalID, slug string) (Context, error) {
	if principalID == "" {
		return Context{}, goerr.Wrap(apperr.ErrUnauthenticated, "no principal")
	}
	ws, err := m.WorkspaceBySlug(ctx, slug)
	if err != nil {
		return Context{}, denied(err, slug)
	}
	role, err := m.MemberRole(ctx, ws.ID, principalID)
	if err != nil {
		return Context{}, denied(err, slug)
	}
	return Context{WorkspaceID: ws.ID, Slug: ws.Slug, PrincipalID: principalID, Role: role}, nil
}

func denied(err error, slug string) error {
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	scopeLogger.Sugar().Debugf("workspace %q denied: %v", slug, err)
	return apperr.NotFound("workspace not found", goerr.V(apperr.WorkspaceKey, slug))
}

// Middleware resolves the scope from the :workspace route param. principal
// extracts the authenticated principal id, "" when there is none.
func Middleware(m Membership, principal func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc, err := Resolve(c.UserContext(), m, principal(c), c.Params("workspace"))
		if err != nil {
			return err
		}
		c.Locals(LocalsKey, sc)
		return c.Next()
	}
}

// From returns the scope stored by Middleware.
func From(c *fiber.Ctx) (Context, error) {
	sc, ok := c.Locals(LocalsKey).(Context)
	if !ok {
		return Context{}, goerr.Wrap(apperr.ErrUnauthenticated, "scope not resolved")
	}
	return sc, nil
}
