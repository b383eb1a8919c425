// Package auth issues and verifies access tokens for registered users.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/apperr"
	"tracker-api/internal/config"
	"tracker-api/internal/httpx/kit"
	"tracker-api/internal/httpx/mw"
	"tracker-api/internal/logx"
	"tracker-api/internal/store"
	"tracker-api/internal/validation"
)

var authLogger = logx.GetScope("auth")

// Users is the account storage the handlers need.
type Users interface {
	CreateUser(ctx context.Context, email, name, hash string) (store.User, error)
	UserByEmail(ctx context.Context, email string) (store.User, error)
	UserByID(ctx context.Context, id string) (store.User, error)
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperr.BadRequest("request body must be a JSON object")
	}
	return validation.Struct(v)
}

func issue(c *fiber.Ctx, cfg *config.Config, u store.User, status int) error {
	access, err := SignAccess(cfg, u.ID, mw.KindUser)
	if err != nil {
		return err
	}
	resp := TokenResponse{AccessToken: access, TokenType: "Bearer", ExpiresIn: cfg.JWT.AccessMin * 60, User: u}
	if status == fiber.StatusCreated {
		return kit.Created(c, resp)
	}
	return kit.OK(c, resp)
}

// RegisterHandler creates a user account and returns an access token.
//
//	@Summary      Register
//	@Description  Create a user account with email and password
//	@Tags         auth
//	@Accept       json
//	@Produce      json
//	@Param        body  body      auth.RegisterRequest  true  "registration"
//	@Success      201   {object}  auth.TokenResponse
//	@Failure      400   {object}  map[string]interface{}
//	@Failure      409   {object}  map[string]interface{}
//	@Router       /api/auth/register [post]
func RegisterHandler(cfg *config.Config, users Users) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		hash, err := HashPassword(req.Password)
		if err != nil {
			return goerr.Wrap(err, "hash password")
		}
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()
		u, err := users.CreateUser(ctx, req.Email, strings.TrimSpace(req.Name), hash)
		if err != nil {
			return err
		}
		authLogger.Sugar().Infof("user registered: %s", u.ID)
		return issue(c, cfg, u, fiber.StatusCreated)
	}
}

// LoginHandler performs password login and returns an access token.
//
//	@Summary      Password Login
//	@Description  Login with email and password
//	@Tags         auth
//	@Accept       json
//	@Produce      json
//	@Param        body  body      auth.LoginRequest  true  "login"
//	@Success      200   {object}  auth.TokenResponse
//	@Failure      401   {object}  map[string]interface{}
//	@Router       /api/auth/login [post]
func LoginHandler(cfg *config.Config, users Users) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()
		u, err := users.UserByEmail(ctx, req.Email)
		if err != nil && !store.IsNotFound(err) {
			return err
		}
		if !checkPassword(req.Password, u.PasswordHash, err == nil) {
			return goerr.Wrap(apperr.ErrUnauthenticated, "invalid credentials")
		}
		return issue(c, cfg, u, fiber.StatusOK)
	}
}

// MeHandler returns the authenticated user.
//
//	@Summary      Current User
//	@Tags         auth
//	@Produce      json
//	@Security     BearerAuth
//	@Success      200   {object}  store.User
//	@Failure      401   {object}  map[string]interface{}
//	@Router       /api/auth/me [get]
func MeHandler(users Users) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()
		u, err := users.UserByID(ctx, mw.PrincipalID(c))
		if store.IsNotFound(err) {
			// token outlived its account
			return goerr.Wrap(apperr.ErrUnauthenticated, "unknown principal")
		}
		if err != nil {
			return err
		}
		return kit.OK(c, u)
	}
}

// Mount registers the auth routes under r.
func Mount(r fiber.Router, cfg *config.Config, users Users) {
	g := r.Group("/auth")
	g.Post("/register", RegisterHandler(cfg, users))
	g.Post("/login", LoginHandler(cfg, users))
	g.Get("/me", mw.RequireUser(), MeHandler(users))
}
