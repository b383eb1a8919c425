// Package resource describes tenant-scoped entity types declaratively. A
// Config is pure data: the validation layer, the storage layer and the CRUD
// handlers all read it, none of them carry per-resource code.
package resource

import (
	"slices"
)

// FieldType is the editor type of a field. It drives value coercion.
type FieldType string

const (
	Text     FieldType = "text"
	Textarea FieldType = "textarea"
	Select   FieldType = "select"
	Color    FieldType = "color"
	Icon     FieldType = "icon"
	Switch   FieldType = "switch"
	Date     FieldType = "date"
)

// Action is an operation a resource may enable beyond list/get.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionDuplicate Action = "duplicate"
)

// System columns present on every resource table.
const (
	ColID          = "id"
	ColWorkspaceID = "workspace_id"
	ColCreatedAt   = "created_at"
	ColUpdatedAt   = "updated_at"
	ColPosition    = "position"
)

// Record is a row keyed by column name.
type Record map[string]any

// Field is one client-editable column.
type Field struct {
	Key      string
	Type     FieldType
	Required bool
	// Options lists the accepted values of a select field.
	Options []string
	// Rules is a go-playground/validator tag applied to the coerced value, e.g. "max=120".
	Rules string
	// Validate returns a message when the raw value is unacceptable.
	Validate func(v any) string
	// Ref names another resource; a non-empty value must be the id of a row of
	// that resource in the caller's workspace.
	Ref string
	// RefTable names a table outside any workspace (users); a non-empty value
	// must be the id of one of its rows.
	RefTable string
	// Unique marks the column unique within a workspace.
	Unique bool
	// Immutable fields are set on create only. Update payloads drop them.
	Immutable bool
	// Protected lists values a caller may assign or take away only while
	// holding the member role of the same name. Meant for role fields.
	Protected []string
	// Retain lists values that at least one row of the workspace must keep.
	Retain []string
}

// ParentRelation ties a nested resource to the resource that owns it.
type ParentRelation struct {
	Resource string
	KeyField string
}

// Config is the static description of one entity type.
type Config struct {
	// Name is the endpoint segment, e.g. "labels" or "status-flows".
	Name string
	// Table defaults to Name with dashes replaced by underscores.
	Table        string
	Fields       []Field
	SearchFields []string
	SortField    string
	Actions      []Action
	Parent       *ParentRelation
	// Ordered resources keep a contiguous position among siblings (requires Parent).
	Ordered bool
	// PrincipalField is stamped with the caller's principal id on create.
	PrincipalField string
	// Toggle names the discriminator field of a presence-toggle resource (requires
	// Parent and PrincipalField). Toggle resources expose no CRUD verbs.
	Toggle string
	// WriteRoles limits mutations to members holding one of these roles.
	WriteRoles []string
	// UniqueTogether lists extra composite unique keys (column names).
	UniqueTogether [][]string
}

// TableName returns the backing table.
func (c *Config) TableName() string {
	if c.Table != "" {
		return c.Table
	}
	b := []byte(c.Name)
	for i, ch := range b {
		if ch == '-' {
			b[i] = '_'
		}
	}
	return string(b)
}

// Field looks up a declared field.
func (c *Config) Field(key string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Allows reports whether an action is enabled.
func (c *Config) Allows(a Action) bool {
	return slices.Contains(c.Actions, a)
}

// CanWrite reports whether a member role may mutate this resource.
func (c *Config) CanWrite(role string) bool {
	return len(c.WriteRoles) == 0 || slices.Contains(c.WriteRoles, role)
}

// IsToggle reports whether the resource is a presence toggle.
func (c *Config) IsToggle() bool { return c.Toggle != "" }

// ToggleKey returns the columns that identify one toggle row.
func (c *Config) ToggleKey() []string {
	if !c.IsToggle() {
		return nil
	}
	return []string{c.Parent.KeyField, c.PrincipalField, c.Toggle}
}

// ParentKey returns the foreign key column of a nested resource, or "".
func (c *Config) ParentKey() string {
	if c.Parent == nil {
		return ""
	}
	return c.Parent.KeyField
}

// Columns returns every column of the backing table in a stable order.
func (c *Config) Columns() []string {
	cols := []string{ColID, ColWorkspaceID}
	if c.Parent != nil {
		cols = append(cols, c.Parent.KeyField)
	}
	if c.PrincipalField != "" {
		cols = append(cols, c.PrincipalField)
	}
	for _, f := range c.Fields {
		cols = append(cols, f.Key)
	}
	if c.Ordered {
		cols = append(cols, ColPosition)
	}
	return append(cols, ColCreatedAt, ColUpdatedAt)
}

// Reserved reports whether a key is server-controlled. Clients may send these
// keys but their values are always discarded.
func (c *Config) Reserved(key string) bool {
	switch key {
	case ColID, ColWorkspaceID, "workspaceId", ColCreatedAt, ColUpdatedAt:
		return true
	}
	if c.Parent != nil && key == c.Parent.KeyField {
		return true
	}
	return c.PrincipalField != "" && key == c.PrincipalField
}

// Sortable reports whether a column may be used in a sort clause.
func (c *Config) Sortable(col string) bool {
	switch col {
	case ColCreatedAt, ColUpdatedAt:
		return true
	case ColPosition:
		return c.Ordered
	}
	_, ok := c.Field(col)
	return ok
}
