package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker-api/internal/config"
	"tracker-api/internal/db"
	testutil "tracker-api/internal/httpx/kit/testutil"
	"tracker-api/internal/httpx/mw"
	"tracker-api/internal/store"
	"tracker-api/internal/tracker"
)

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	// Default minimal JWT config (HS256 fallback)
	cfg.JWT.Algo = "HS256"
	cfg.JWT.HSSecret = "test-secret"
	cfg.JWT.Issuer = "test"
	cfg.JWT.Audience = "test"
	cfg.JWT.AccessMin = 15
	return cfg
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	drv, closeFn, err := db.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(closeFn)
	res := tracker.MustBuild()
	require.NoError(t, db.Migrate(context.Background(), drv, res.Registry))
	return store.New(drv)
}

func newTestApp(t *testing.T, cfg *config.Config, users Users) *fiber.App {
	t.Helper()
	return testutil.NewApp(func(app *fiber.App) {
		app.Use(mw.JWTMiddlewareDynamic(Parser(cfg)))
		Mount(app, cfg, users)
	})
}

func post(t *testing.T, app *fiber.App, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func TestRegisterLoginMe(t *testing.T) {
	cfg := newTestConfig()
	app := newTestApp(t, cfg, newTestStore(t))

	res, body := post(t, app, "/auth/register", RegisterRequest{Email: "Alice@Example.com", Password: "Secretp@ssw0rd", Name: "Alice"})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	data := body["data"].(map[string]any)
	user := data["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotContains(t, user, "password_hash")

	res, body = post(t, app, "/auth/register", RegisterRequest{Email: "alice@example.com", Password: "Secretp@ssw0rd", Name: "Alice"})
	assert.Equal(t, http.StatusConflict, res.StatusCode, body)

	res, body = post(t, app, "/auth/login", LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode, body)

	res, body = post(t, app, "/auth/login", LoginRequest{Email: "alice@example.com", Password: "Secretp@ssw0rd"})
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	token := body["data"].(map[string]any)["access_token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = app.Test(httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRegister_ValidationFields(t *testing.T) {
	cfg := newTestConfig()
	app := newTestApp(t, cfg, newTestStore(t))

	res, body := post(t, app, "/auth/register", map[string]any{"email": "nope", "password": "short"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	fields := body["fields"].(map[string]any)
	assert.Equal(t, "must be an email address", fields["email"])
	assert.Equal(t, "must be at least 8 characters", fields["password"])
	assert.Equal(t, "required", fields["name"])
}

func TestParseAndValidate(t *testing.T) {
	cfg := newTestConfig()
	tok, err := SignAccess(cfg, "u-1", mw.KindUser)
	require.NoError(t, err)

	claims, err := ParseAndValidate(cfg, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, mw.KindUser, claims.Kind)

	other := newTestConfig()
	other.JWT.HSSecret = "another-secret"
	_, err = ParseAndValidate(other, tok)
	assert.Error(t, err)

	other = newTestConfig()
	other.JWT.Audience = "elsewhere"
	_, err = ParseAndValidate(other, tok)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("Secretp@ssw0rd")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("Secretp@ssw0rd", h))
	assert.False(t, VerifyPassword("secretp@ssw0rd", h))
	assert.False(t, VerifyPassword("Secretp@ssw0rd", "$bcrypt$garbage"))
}

func TestCheckPassword_UnknownAccountStillHashes(t *testing.T) {
	h, err := HashPassword("Secretp@ssw0rd")
	require.NoError(t, err)
	assert.True(t, checkPassword("Secretp@ssw0rd", h, true))
	assert.False(t, checkPassword("Secretp@ssw0rd", h, false))

	// the decoy is a real hash with the current parameters
	parts := strings.Split(decoyHash(), "$")
	require.Len(t, parts, 6)
	assert.Equal(t, "argon2id", parts[1])
	assert.Equal(t, fmt.Sprintf("m=%d,t=%d,p=%d", hashParams.memory, hashParams.time, hashParams.threads), parts[3])
	assert.Equal(t, decoyHash(), decoyHash())
}
