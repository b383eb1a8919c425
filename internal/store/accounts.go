package store

import (
	"context"
	"errors"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"tracker-api/internal/apperr"
	"tracker-api/internal/db"
	"tracker-api/internal/resource"
)

// User is an account. The password hash never leaves the auth package.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Workspace is a tenant. Role is the caller's role when listed for a member.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var (
	userCols      = []string{"id", "email", "name", "password_hash", resource.ColCreatedAt}
	workspaceCols = []string{"id", "name", "slug", resource.ColCreatedAt, resource.ColUpdatedAt}
)

// CreateUser stores a new account. A taken email is a conflict.
func (s *Store) CreateUser(ctx context.Context, email, name, hash string) (User, error) {
	u := User{ID: uuid.NewString(), Email: strings.ToLower(email), Name: name, PasswordHash: hash, CreatedAt: s.Now()}
	err := s.Q().Insert(ctx, db.TableUsers, resource.Record{
		"id": u.ID, "email": u.Email, "name": u.Name, "password_hash": hash,
		resource.ColCreatedAt: u.CreatedAt, resource.ColUpdatedAt: u.CreatedAt,
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// UserByEmail looks an account up by its normalized email.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	rec, err := s.Q().First(ctx, db.TableUsers, userCols, entsql.EQ("email", strings.ToLower(email)))
	if err != nil {
		return User{}, err
	}
	return userOf(rec), nil
}

// UserByID looks an account up by id.
func (s *Store) UserByID(ctx context.Context, id string) (User, error) {
	rec, err := s.Q().First(ctx, db.TableUsers, userCols, entsql.EQ("id", id))
	if err != nil {
		return User{}, err
	}
	return userOf(rec), nil
}

// CreateWorkspace creates a tenant and makes ownerID its owner.
func (s *Store) CreateWorkspace(ctx context.Context, name, slug, ownerID string) (Workspace, error) {
	now := s.Now()
	ws := Workspace{ID: uuid.NewString(), Name: name, Slug: strings.ToLower(slug), Role: RoleOwner, CreatedAt: now, UpdatedAt: now}
	err := s.InTx(ctx, func(q *Querier) error {
		if err := q.Insert(ctx, db.TableWorkspaces, resource.Record{
			"id": ws.ID, "name": ws.Name, "slug": ws.Slug,
			resource.ColCreatedAt: now, resource.ColUpdatedAt: now,
		}); err != nil {
			return err
		}
		return q.Insert(ctx, db.TableMembers, resource.Record{
			resource.ColID: uuid.NewString(), resource.ColWorkspaceID: ws.ID,
			"user_id": ownerID, "role": RoleOwner,
			resource.ColCreatedAt: now, resource.ColUpdatedAt: now,
		})
	})
	if err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

// WorkspaceBySlug resolves a slug.
func (s *Store) WorkspaceBySlug(ctx context.Context, slug string) (Workspace, error) {
	rec, err := s.Q().First(ctx, db.TableWorkspaces, workspaceCols, entsql.EQ("slug", strings.ToLower(slug)))
	if err != nil {
		return Workspace{}, err
	}
	return workspaceOf(rec), nil
}

// MemberRole returns the role of userID in a workspace, or not-found.
func (s *Store) MemberRole(ctx context.Context, workspaceID, userID string) (string, error) {
	rec, err := s.Q().First(ctx, db.TableMembers, []string{"role"}, entsql.And(
		entsql.EQ(resource.ColWorkspaceID, workspaceID),
		entsql.EQ("user_id", userID),
	))
	if err != nil {
		return "", err
	}
	return str(rec["role"]), nil
}

// WorkspacesFor lists the workspaces userID belongs to, by name.
func (s *Store) WorkspacesFor(ctx context.Context, userID string) ([]Workspace, error) {
	q := s.Q()
	members, err := q.Select(ctx, db.TableMembers, []string{resource.ColWorkspaceID, "role"}, func(sel *entsql.Selector) {
		sel.Where(entsql.EQ("user_id", userID))
	})
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []Workspace{}, nil
	}
	roles := make(map[string]string, len(members))
	ids := make([]any, 0, len(members))
	for _, m := range members {
		id := str(m[resource.ColWorkspaceID])
		roles[id] = str(m["role"])
		ids = append(ids, id)
	}
	recs, err := q.Select(ctx, db.TableWorkspaces, workspaceCols, func(sel *entsql.Selector) {
		sel.Where(entsql.In("id", ids...)).OrderBy(entsql.Asc("name"))
	})
	if err != nil {
		return nil, err
	}
	out := make([]Workspace, 0, len(recs))
	for _, rec := range recs {
		ws := workspaceOf(rec)
		ws.Role = roles[ws.ID]
		out = append(out, ws)
	}
	return out, nil
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

func userOf(rec resource.Record) User {
	return User{
		ID: str(rec["id"]), Email: str(rec["email"]), Name: str(rec["name"]),
		PasswordHash: str(rec["password_hash"]), CreatedAt: Time(rec[resource.ColCreatedAt]),
	}
}

func workspaceOf(rec resource.Record) Workspace {
	return Workspace{
		ID: str(rec["id"]), Name: str(rec["name"]), Slug: str(rec["slug"]),
		CreatedAt: Time(rec[resource.ColCreatedAt]), UpdatedAt: Time(rec[resource.ColUpdatedAt]),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Time converts a driver time value. Some sqlite builds hand back text.
func Time(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}
