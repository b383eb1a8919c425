package db

import (
	"context"
	"strings"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/resource"
)

// Static tables that are not described by a resource config.
const (
	TableUsers      = "users"
	TableWorkspaces = "workspaces"
)

// TableMembers backs workspace membership. Its layout comes from the members
// resource config, but membership checks read it directly.
const TableMembers = "workspace_members"

var timeType = map[string]string{dialect.Postgres: "timestamptz"}

func idColumn(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: 36}
}

func timeColumn(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeTime, SchemaType: timeType}
}

func stringColumn(name string, size int64, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: size, Nullable: nullable}
}

func index(table string, unique bool, cols ...*schema.Column) *schema.Index {
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	suffix := "idx"
	if unique {
		suffix = "key"
	}
	return &schema.Index{Name: table + "_" + strings.Join(names, "_") + "_" + suffix, Unique: unique, Columns: cols}
}

func usersTable() *schema.Table {
	id := idColumn("id")
	email := stringColumn("email", 255, false)
	t := &schema.Table{
		Name: TableUsers,
		Columns: []*schema.Column{
			id, email,
			stringColumn("name", 255, false),
			stringColumn("password_hash", 255, false),
			timeColumn(resource.ColCreatedAt), timeColumn(resource.ColUpdatedAt),
		},
		PrimaryKey: []*schema.Column{id},
	}
	t.Indexes = []*schema.Index{index(t.Name, true, email)}
	return t
}

func workspacesTable() *schema.Table {
	id := idColumn("id")
	slug := stringColumn("slug", 64, false)
	t := &schema.Table{
		Name: TableWorkspaces,
		Columns: []*schema.Column{
			id, stringColumn("name", 255, false), slug,
			timeColumn(resource.ColCreatedAt), timeColumn(resource.ColUpdatedAt),
		},
		PrimaryKey: []*schema.Column{id},
	}
	t.Indexes = []*schema.Index{index(t.Name, true, slug)}
	return t
}

func fieldColumn(f resource.Field) *schema.Column {
	nullable := !f.Required
	switch f.Type {
	case resource.Switch:
		return &schema.Column{Name: f.Key, Type: field.TypeBool, Default: false}
	case resource.Textarea:
		return stringColumn(f.Key, 10000, nullable)
	case resource.Date:
		return stringColumn(f.Key, 10, nullable)
	case resource.Color:
		return stringColumn(f.Key, 16, nullable)
	case resource.Select, resource.Icon:
		return stringColumn(f.Key, 64, nullable)
	default:
		if f.Ref != "" {
			return &schema.Column{Name: f.Key, Type: field.TypeString, Size: 36, Nullable: nullable}
		}
		return stringColumn(f.Key, 255, nullable)
	}
}

// ResourceTable derives the table of one resource from its config.
func ResourceTable(cfg *resource.Config) *schema.Table {
	t := &schema.Table{Name: cfg.TableName()}
	byName := map[string]*schema.Column{}
	add := func(c *schema.Column) {
		t.Columns = append(t.Columns, c)
		byName[c.Name] = c
	}
	id := idColumn(resource.ColID)
	ws := idColumn(resource.ColWorkspaceID)
	add(id)
	add(ws)
	t.PrimaryKey = []*schema.Column{id}
	t.Indexes = append(t.Indexes, index(t.Name, false, ws))

	if key := cfg.ParentKey(); key != "" {
		pk := idColumn(key)
		add(pk)
		t.Indexes = append(t.Indexes, index(t.Name, false, pk))
	}
	if cfg.PrincipalField != "" {
		add(idColumn(cfg.PrincipalField))
	}
	for _, f := range cfg.Fields {
		c := fieldColumn(f)
		add(c)
		if f.Unique {
			t.Indexes = append(t.Indexes, index(t.Name, true, ws, c))
		}
	}
	if cfg.Ordered {
		add(&schema.Column{Name: resource.ColPosition, Type: field.TypeInt, Default: 0})
	}
	add(timeColumn(resource.ColCreatedAt))
	add(timeColumn(resource.ColUpdatedAt))

	keys := cfg.UniqueTogether
	if tk := cfg.ToggleKey(); tk != nil {
		keys = append([][]string{tk}, keys...)
	}
	for _, uk := range keys {
		cols := make([]*schema.Column, 0, len(uk))
		for _, n := range uk {
			cols = append(cols, byName[n])
		}
		t.Indexes = append(t.Indexes, index(t.Name, true, cols...))
	}
	return t
}

// Tables returns every table of the service.
func Tables(reg *resource.Registry) []*schema.Table {
	tables := []*schema.Table{usersTable(), workspacesTable()}
	for _, cfg := range reg.Configs() {
		tables = append(tables, ResourceTable(cfg))
	}
	return tables
}

// Migrate creates or upgrades every table.
func Migrate(ctx context.Context, drv dialect.Driver, reg *resource.Registry) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return goerr.Wrap(err, "failed to prepare migration")
	}
	if err := m.Create(ctx, Tables(reg)...); err != nil {
		return goerr.Wrap(err, "failed to migrate schema")
	}
	dbLogger.Sugar().Infof("schema migrated (%d tables)", len(reg.Configs())+2)
	return nil
}
