// Package workspaces serves workspace creation and the caller's workspace list.
package workspaces

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"tracker-api/internal/apperr"
	"tracker-api/internal/httpx/kit"
	"tracker-api/internal/httpx/mw"
	"tracker-api/internal/store"
	"tracker-api/internal/validation"
)

// Store is the workspace storage the handlers need.
type Store interface {
	CreateWorkspace(ctx context.Context, name, slug, ownerID string) (store.Workspace, error)
	WorkspacesFor(ctx context.Context, userID string) ([]store.Workspace, error)
}

// CreateRequest is the body of POST /api/workspaces.
// swagger:model CreateWorkspaceRequest
type CreateRequest struct {
	Name string `json:"name" validate:"required,max=120" example:"Acme"`
	Slug string `json:"slug" validate:"required,min=2,max=48,slug" example:"acme"`
}

// CreateHandler creates a workspace owned by the caller.
//
//	@Summary      Create Workspace
//	@Tags         workspaces
//	@Accept       json
//	@Produce      json
//	@Security     BearerAuth
//	@Param        body  body      workspaces.CreateRequest  true  "workspace"
//	@Success      201   {object}  store.Workspace
//	@Failure      400   {object}  map[string]interface{}
//	@Failure      409   {object}  map[string]interface{}
//	@Router       /api/workspaces [post]
func CreateHandler(st Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.BadRequest("request body must be a JSON object")
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
		if err := validation.Struct(req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()
		ws, err := st.CreateWorkspace(ctx, req.Name, req.Slug, mw.PrincipalID(c))
		if err != nil {
			return err
		}
		return kit.Created(c, ws)
	}
}

// ListHandler lists the workspaces the caller belongs to, with their role.
//
//	@Summary      List Workspaces
//	@Tags         workspaces
//	@Produce      json
//	@Security     BearerAuth
//	@Success      200   {array}   store.Workspace
//	@Router       /api/workspaces [get]
func ListHandler(st Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()
		list, err := st.WorkspacesFor(ctx, mw.PrincipalID(c))
		if err != nil {
			return err
		}
		return kit.List(c, list, len(list), len(list), 1, len(list))
	}
}

// Mount registers the workspace routes on the /workspaces group r. The
// caller must already be authenticated.
func Mount(r fiber.Router, st Store) {
	r.Post("", CreateHandler(st))
	r.Get("", ListHandler(st))
}
