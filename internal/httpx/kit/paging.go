package kit

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"tracker-api/internal/crud"
)

// ParseListQuery reads page, limit, sort and search from the query string.
// limit defaults to 50 and is clamped to [1, 200]; page is clamped to
// [1, crud.MaxPage].
func ParseListQuery(c *fiber.Ctx) crud.ListQuery {
	search := c.Query("search")
	if search == "" {
		search = c.Query("q")
	}
	return crud.ListQuery{
		Search: search,
		Sort:   c.Query("sort"),
		Page:   lo.Clamp(c.QueryInt("page", 1), 1, crud.MaxPage),
		Limit:  lo.Clamp(c.QueryInt("limit", crud.DefaultLimit), 1, crud.MaxLimit),
	}
}
