// Package httpx assembles the fiber application: common middleware, auth,
// workspaces and one REST surface per registered resource.
package httpx

import (
	"github.com/gofiber/fiber/v2"
	fiberSwagger "github.com/swaggo/fiber-swagger"

	"tracker-api/internal/config"
	"tracker-api/internal/crud"
	"tracker-api/internal/esx"
	"tracker-api/internal/httpx/auth"
	"tracker-api/internal/httpx/kit"
	"tracker-api/internal/httpx/mw"
	"tracker-api/internal/httpx/resources"
	"tracker-api/internal/httpx/workspaces"
	"tracker-api/internal/metrics"
	"tracker-api/internal/redisx"
	"tracker-api/internal/scope"
	"tracker-api/internal/store"
	"tracker-api/internal/tracker"
)

// Deps are the collaborators of the HTTP layer. Redis and ES are optional.
type Deps struct {
	Cfg       *config.Config
	Store     *store.Store
	Resources *tracker.Resources
	Hooks     []crud.Hook
	Redis     *redisx.Client
	ES        *esx.Client
}

// NewApp builds the fiber app with every route registered.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "tracker-api",
		ErrorHandler: kit.ErrorHandler(),
	})
	RegisterCommonMiddlewares(app)
	Register(app, d)
	return app
}

// Register mounts the routes on app.
func Register(app *fiber.App, d Deps) {
	app.Get("/health", HealthHandler)
	app.Get("/ready", ReadyHandler(d))
	app.Get("/metrics", metrics.Handler())
	app.Get("/swagger/*", fiberSwagger.WrapHandler)

	api := app.Group("/api",
		mw.JWTMiddlewareDynamic(auth.Parser(d.Cfg)),
		mw.RateLimitDefault(d.Redis, d.Cfg.RateLimit.WindowSec, d.Cfg.RateLimit.Max),
	)
	auth.Mount(api, d.Cfg, d.Store)

	wsAPI := api.Group("/workspaces", mw.RequireUser())
	workspaces.Mount(wsAPI, d.Store)

	ws := wsAPI.Group("/:workspace", scope.Middleware(d.Store, mw.PrincipalID))
	mountResources(ws, d)
}

// mountResources instantiates the REST surface of every registered resource.
func mountResources(r fiber.Router, d Deps) {
	res := d.Resources
	reg := res.Registry
	eng := crud.NewEngine(d.Store, reg, d.Hooks...)

	issues := crud.NewService(eng, res.Issues)
	r.Get("/search/issues", SearchIssuesHandler(d.ES, d.Cfg.ES.IssuesIndex, issues))

	resources.Mount(r, reg, crud.NewService(eng, res.Teams))
	resources.Mount(r, reg, crud.NewService(eng, res.Projects))
	resources.Mount(r, reg, crud.NewService(eng, res.Labels))
	resources.Mount(r, reg, crud.NewService(eng, res.IssueTypes))
	resources.Mount(r, reg, crud.NewService(eng, res.StatusFlows))
	resources.Mount(r, reg, crud.NewService(eng, res.States))
	resources.Mount(r, reg, crud.NewService(eng, res.Members))
	resources.Mount(r, reg, issues)
	resources.Mount(r, reg, crud.NewService(eng, res.Comments))
	resources.MountToggle(r, reg, crud.NewToggleService(eng, res.Reactions.Config()))
}
