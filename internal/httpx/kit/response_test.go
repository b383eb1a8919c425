package kit

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"tracker-api/internal/crud"
)

func TestOKEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/t", func(c *fiber.Ctx) error {
		return OK(c, fiber.Map{"x": 1})
	})
	req := httptest.NewRequest("GET", "/t", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request err: %v", err)
	}
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "OK" || body["message"] != "success" {
		t.Fatalf("unexpected envelope: %v", body)
	}
	data := body["data"].(map[string]any)
	if int(data["x"].(float64)) != 1 {
		t.Fatalf("unexpected data: %v", data)
	}
}

func TestListEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/t", func(c *fiber.Ctx) error {
		return List(c, []int{1, 2}, 2, 5, 1, 2)
	})
	res, err := app.Test(httptest.NewRequest("GET", "/t", nil))
	if err != nil {
		t.Fatalf("request err: %v", err)
	}
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if int(body["total"].(float64)) != 5 {
		t.Fatalf("unexpected total: %v", body["total"])
	}
	meta := body["meta"].(map[string]any)
	if meta["has_more"] != true {
		t.Fatalf("expected has_more: %v", meta)
	}
}

func TestParseListQuery(t *testing.T) {
	app := fiber.New()
	var got []int
	var search, sort string
	app.Get("/t", func(c *fiber.Ctx) error {
		q := ParseListQuery(c)
		got = []int{q.Page, q.Limit}
		search, sort = q.Search, q.Sort
		return c.SendStatus(204)
	})
	if _, err := app.Test(httptest.NewRequest("GET", "/t?page=0&limit=9999&q=bug&sort=-name", nil)); err != nil {
		t.Fatalf("request err: %v", err)
	}
	if got[0] != 1 || got[1] != 200 || search != "bug" || sort != "-name" {
		t.Fatalf("unexpected query: %v %q %q", got, search, sort)
	}
}

func TestParseListQuery_PageBound(t *testing.T) {
	app := fiber.New()
	var page int
	app.Get("/t", func(c *fiber.Ctx) error {
		page = ParseListQuery(c).Page
		return c.SendStatus(204)
	})
	if _, err := app.Test(httptest.NewRequest("GET", "/t?page=9223372036854775807&limit=200", nil)); err != nil {
		t.Fatalf("request err: %v", err)
	}
	if page != crud.MaxPage {
		t.Fatalf("page = %d, want %d", page, crud.MaxPage)
	}
}
