package httpx

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"tracker-api/internal/apperr"
	"tracker-api/internal/crud"
	"tracker-api/internal/esx"
	"tracker-api/internal/httpx/kit"
	"tracker-api/internal/scope"
	"tracker-api/internal/tracker"
)

// SearchIssuesHandler runs a full-text issue search in the caller's workspace.
// Without Elasticsearch it falls back to the substring search of the issues
// list.
//
//	@Summary      Search Issues
//	@Tags         search
//	@Produce      json
//	@Security     BearerAuth
//	@Param        workspace  path   string  true   "workspace slug"
//	@Param        q          query  string  true   "query"
//	@Param        page       query  int     false  "page"
//	@Param        limit      query  int     false  "page size"
//	@Success      200   {array}   esx.Hit
//	@Failure      400   {object}  map[string]interface{}
//	@Router       /api/workspaces/{workspace}/search/issues [get]
func SearchIssuesHandler(es *esx.Client, index string, issues *crud.Service[tracker.Issue]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc, err := scope.From(c)
		if err != nil {
			return err
		}
		lq := kit.ParseListQuery(c)
		lq.Search = strings.TrimSpace(lq.Search)
		if lq.Search == "" {
			return apperr.BadRequest("q required")
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		if es != nil {
			res, err := esx.SearchIssues(ctx, es, index, sc.WorkspaceID, lq.Search, (lq.Page-1)*lq.Limit, lq.Limit)
			if err != nil {
				return err
			}
			return kit.List(c, res.Hits, len(res.Hits), res.Total, lq.Page, lq.Limit)
		}

		page, err := issues.List(ctx, sc, nil, crud.ListQuery{Search: lq.Search, Page: lq.Page, Limit: lq.Limit})
		if err != nil {
			return err
		}
		hits := lo.Map(page.Data, func(is tracker.Issue, _ int) esx.Hit {
			return esx.Hit{ID: is.ID, Doc: esx.IssueDoc{
				ID:          is.ID,
				WorkspaceID: is.WorkspaceID,
				Name:        is.Name,
				Description: lo.FromPtr(is.Description),
				Priority:    lo.FromPtr(is.Priority),
				StateID:     lo.FromPtr(is.StateID),
				ProjectID:   lo.FromPtr(is.ProjectID),
				UpdatedAt:   is.UpdatedAt.UTC().Format(time.RFC3339Nano),
			}}
		})
		return kit.List(c, hits, len(hits), page.Total, lq.Page, lq.Limit)
	}
}
