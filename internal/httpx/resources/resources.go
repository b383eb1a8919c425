// Package resources turns crud services into tenant-scoped REST routes. One
// generic adapter serves every registered resource; nothing here is specific
// to a single entity.
package resources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"tracker-api/internal/crud"
	"tracker-api/internal/httpx/kit"
	"tracker-api/internal/resource"
	"tracker-api/internal/scope"
	"tracker-api/internal/validation"
)

const requestTimeout = 5 * time.Second

// Route returns the route pattern of cfg relative to the workspace prefix,
// with one :pN parameter per ancestor, e.g. "/issues/:p0/comments".
func Route(reg *resource.Registry, cfg *resource.Config) string {
	var b strings.Builder
	for i, anc := range reg.Ancestors(cfg.Name) {
		fmt.Fprintf(&b, "/%s/:p%d", anc.Name, i)
	}
	b.WriteString("/" + cfg.Name)
	return b.String()
}

// path collects the ancestor ids of a nested route.
func path(c *fiber.Ctx, depth int) crud.Path {
	p := make(crud.Path, depth)
	for i := range p {
		p[i] = c.Params(fmt.Sprintf("p%d", i))
	}
	return p
}

func body(c *fiber.Ctx) (map[string]any, error) {
	return validation.Decode(c.Body())
}

type handler func(ctx context.Context, c *fiber.Ctx, sc scope.Context, p crud.Path) error

// scoped resolves the tenant and the ancestor path before calling h.
func scoped(depth int, h handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc, err := scope.From(c)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
		defer cancel()
		return h(ctx, c, sc, path(c, depth))
	}
}

// Mount registers list, create, get, update, delete and duplicate for svc.
// Actions missing from the config still get routes; the service answers 403.
func Mount[T any](r fiber.Router, reg *resource.Registry, svc *crud.Service[T]) {
	cfg := svc.Config()
	depth := len(reg.Ancestors(cfg.Name))
	g := r.Group(Route(reg, cfg))

	g.Get("", scoped(depth, func(ctx context.Context, c *fiber.Ctx, sc scope.Context, p crud.Path) error {
		lq := kit.ParseListQuery(c)
		page, err := svc.List(ctx, sc, p, lq)
		if err != nil {
			return err
		}
		return kit.List(c, page.Data, len(page.Data), page.Total, lq.Page, lq.Limit)
	}))

	g.Post("", scoped(depth, func(ctx context.Context, c *fiber.Ctx, sc scope.Context, p crud.Path) error {
		payload, err := body(c)
		if err != nil {
			return err
		}
		item, err := svc.Create(ctx, sc, p, payload)
		if err != nil {
			return err
		}
		return kit.Created(c, item)
	}))

	g.Get("/:id", scoped(depth, func(ctx context.Context, c *fiber.Ctx, sc scope.Context, p crud.Path) error {
		item, err := svc.Get(ctx, sc, p, c.Params("id"))
		if err != nil {
			return err
		}
		return kit.OK(c, item)
	}))

	update := scoped(depth, func(ctx context.Context, c *fiber.Ctx, sc scope.Context, p crud.Path) error {
		payload, err := body(c)
		if err != nil {
			return err
		}
		item, err := svc.Update(ctx, sc, p, c.Params("id"), payload)
		if err != nil {
			return err
		}
		return kit.OK(c, item)
	})
	g.Put("/:id", update)
	g.Patch("/:id", update)

	g.Delete("/:id", scoped(depth, func(ctx context.Context, c *fiber.Ctx, sc scope.Context, p crud.Path) error {
		if err := svc.Delete(ctx, sc, p, c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}))

	g.Post("/:id/duplicate", scoped(depth, func(ctx context.Context, c *fiber.Ctx, sc scope.Context, p crud.Path) error {
		item, err := svc.Duplicate(ctx, sc, p, c.Params("id"))
		if err != nil {
			return err
		}
		return kit.Created(c, item)
	}))
}

// MountToggle registers the aggregate read and the toggle verb of a toggle
// resource on its collection route.
func MountToggle(r fiber.Router, reg *resource.Registry, svc *crud.ToggleService) {
	cfg := svc.Config()
	depth := len(reg.Ancestors(cfg.Name))
	route := Route(reg, cfg)

	r.Get(route, scoped(depth, func(ctx context.Context, c *fiber.Ctx, sc scope.Context, p crud.Path) error {
		agg, err := svc.Get(ctx, sc, p)
		if err != nil {
			return err
		}
		return kit.OK(c, agg)
	}))

	r.Post(route, scoped(depth, func(ctx context.Context, c *fiber.Ctx, sc scope.Context, p crud.Path) error {
		payload, err := body(c)
		if err != nil {
			return err
		}
		res, err := svc.Toggle(ctx, sc, p, payload)
		if err != nil {
			return err
		}
		return kit.OK(c, res)
	}))
}
