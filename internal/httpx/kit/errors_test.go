package kit

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker-api/internal/apperr"
)

func errorApp(err error) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/e", func(c *fiber.Ctx) error { return err })
	return app
}

func doError(t *testing.T, err error) (int, map[string]any) {
	t.Helper()
	res, rerr := errorApp(err).Test(httptest.NewRequest("GET", "/e", nil))
	require.NoError(t, rerr)
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return res.StatusCode, body
}

func TestErrorHandler_Taxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.ErrUnauthenticated, 401, "E_UNAUTHORIZED"},
		{apperr.NotFound("label not found"), 404, "E_NOT_FOUND"},
		{apperr.Disallowed("delete disabled"), 403, "E_FORBIDDEN"},
		{apperr.Conflict(assert.AnError, "duplicate"), 409, "E_CONFLICT"},
		{apperr.BadRequest("invalid sort"), 400, "E_INVALID_PARAM"},
		{fiber.ErrMethodNotAllowed, 405, "E_UNKNOWN"},
		{assert.AnError, 500, "E_INTERNAL"},
	}
	for _, tc := range cases {
		status, body := doError(t, tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, body["code"], tc.err.Error())
		assert.NotEmpty(t, body["error"])
	}
}

func TestErrorHandler_NotFoundHidesDetail(t *testing.T) {
	_, body := doError(t, apperr.NotFound("label abc in workspace xyz"))
	assert.Equal(t, "not found", body["message"])
}

func TestErrorHandler_BadRequestMessage(t *testing.T) {
	_, body := doError(t, apperr.BadRequest("invalid sort"))
	assert.Equal(t, "invalid sort", body["message"])
}

func TestErrorHandler_ConflictMessage(t *testing.T) {
	_, body := doError(t, apperr.Conflict(assert.AnError, "workspace must keep an owner"))
	assert.Equal(t, "workspace must keep an owner", body["message"])
}

func TestErrorHandler_ValidationFields(t *testing.T) {
	verr := &apperr.ValidationError{}
	verr.Add("name", "required")
	verr.Add("color", "must be a hex color")

	status, body := doError(t, verr)
	assert.Equal(t, 400, status)
	assert.Equal(t, "E_VALIDATION", body["code"])
	fields := body["fields"].(map[string]any)
	assert.Equal(t, "required", fields["name"])
	assert.Equal(t, "must be a hex color", fields["color"])
	details := body["details"].([]any)
	require.Len(t, details, 2)
	assert.Equal(t, "color", details[0].(map[string]any)["field"])
}
