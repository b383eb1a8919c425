// Package tracker declares the issue tracker's entity types.
package tracker

import (
	"unicode/utf8"

	"tracker-api/internal/db"
	"tracker-api/internal/resource"
	"tracker-api/internal/store"
)

// Resource names, also used as endpoint segments.
const (
	Teams       = "teams"
	Projects    = "projects"
	Labels      = "labels"
	IssueTypes  = "issue-types"
	StatusFlows = "status-flows"
	States      = "states"
	Members     = "members"
	Issues      = "issues"
	Comments    = "comments"
	Reactions   = "reactions"
)

var (
	crud          = []resource.Action{resource.ActionCreate, resource.ActionUpdate, resource.ActionDelete}
	crudDuplicate = append(crud[:len(crud):len(crud)], resource.ActionDuplicate)
)

// Resources holds the typed handle of every registered entity.
type Resources struct {
	Registry    *resource.Registry
	Teams       *resource.Resource[Team]
	Projects    *resource.Resource[Project]
	Labels      *resource.Resource[Label]
	IssueTypes  *resource.Resource[IssueType]
	StatusFlows *resource.Resource[StatusFlow]
	States      *resource.Resource[State]
	Members     *resource.Resource[Member]
	Issues      *resource.Resource[Issue]
	Comments    *resource.Resource[Comment]
	Reactions   *resource.Resource[Reaction]
}

func name(max string) resource.Field {
	return resource.Field{Key: "name", Type: resource.Text, Required: true, Rules: "max=" + max}
}

func description() resource.Field {
	return resource.Field{Key: "description", Type: resource.Textarea, Rules: "max=5000"}
}

func identifier() resource.Field {
	return resource.Field{Key: "identifier", Type: resource.Text, Required: true, Rules: "alphanum,uppercase,max=12", Unique: true}
}

func singleEmoji(v any) string {
	s, _ := v.(string)
	if utf8.RuneCountInString(s) > 8 {
		return "must be a single emoji"
	}
	return ""
}

// Build registers every entity type. Registration fails when a config does
// not match its model.
func Build() (*Resources, error) {
	reg := resource.NewRegistry()
	r := &Resources{Registry: reg}
	var err error

	if r.Teams, err = resource.Register[Team](reg, resource.Config{
		Name: Teams,
		Fields: []resource.Field{
			name("120"), identifier(), description(),
			{Key: "color", Type: resource.Color},
			{Key: "icon", Type: resource.Icon},
		},
		SearchFields: []string{"name", "identifier"},
		SortField:    "name",
		Actions:      crud,
	}); err != nil {
		return nil, err
	}

	if r.StatusFlows, err = resource.Register[StatusFlow](reg, resource.Config{
		Name:         StatusFlows,
		Fields:       []resource.Field{name("120"), description(), {Key: "is_default", Type: resource.Switch}},
		SearchFields: []string{"name"},
		SortField:    "name",
		Actions:      crudDuplicate,
	}); err != nil {
		return nil, err
	}

	if r.States, err = resource.Register[State](reg, resource.Config{
		Name: States,
		Fields: []resource.Field{
			name("64"),
			{Key: "color", Type: resource.Color},
			{Key: "category", Type: resource.Select, Required: true,
				Options: []string{"backlog", "unstarted", "started", "completed", "canceled"}},
		},
		SearchFields: []string{"name"},
		SortField:    resource.ColPosition,
		Actions:      crud,
		Parent:       &resource.ParentRelation{Resource: StatusFlows, KeyField: "status_flow_id"},
		Ordered:      true,
	}); err != nil {
		return nil, err
	}

	if r.Projects, err = resource.Register[Project](reg, resource.Config{
		Name: Projects,
		Fields: []resource.Field{
			name("120"), identifier(), description(),
			{Key: "team_id", Type: resource.Text, Ref: Teams},
			{Key: "status_flow_id", Type: resource.Text, Ref: StatusFlows},
			{Key: "color", Type: resource.Color},
			{Key: "icon", Type: resource.Icon},
			{Key: "start_date", Type: resource.Date},
			{Key: "target_date", Type: resource.Date},
			{Key: "archived", Type: resource.Switch},
		},
		SearchFields: []string{"name", "identifier", "description"},
		SortField:    "name",
		Actions:      crud,
	}); err != nil {
		return nil, err
	}

	if r.Labels, err = resource.Register[Label](reg, resource.Config{
		Name: Labels,
		Fields: []resource.Field{
			{Key: "name", Type: resource.Text, Required: true, Rules: "max=64", Unique: true},
			{Key: "color", Type: resource.Color, Required: true},
			description(),
		},
		SearchFields: []string{"name"},
		SortField:    "name",
		Actions:      crud,
	}); err != nil {
		return nil, err
	}

	if r.IssueTypes, err = resource.Register[IssueType](reg, resource.Config{
		Name: IssueTypes,
		Fields: []resource.Field{
			{Key: "name", Type: resource.Text, Required: true, Rules: "max=64", Unique: true},
			{Key: "icon", Type: resource.Icon},
			{Key: "color", Type: resource.Color},
			description(),
			{Key: "is_default", Type: resource.Switch},
		},
		SearchFields: []string{"name"},
		SortField:    "name",
		Actions:      crud,
	}); err != nil {
		return nil, err
	}

	if r.Members, err = resource.Register[Member](reg, resource.Config{
		Name:  Members,
		Table: db.TableMembers,
		Fields: []resource.Field{
			{Key: "user_id", Type: resource.Text, Required: true, Rules: "uuid", Unique: true,
				RefTable: db.TableUsers, Immutable: true},
			// only owners make or unmake owners, and a workspace always keeps one
			{Key: "role", Type: resource.Select, Required: true,
				Options:   []string{store.RoleOwner, store.RoleAdmin, store.RoleMember},
				Protected: []string{store.RoleOwner}, Retain: []string{store.RoleOwner}},
		},
		SearchFields: []string{"role"},
		SortField:    "role",
		Actions:      crud,
		WriteRoles:   []string{store.RoleOwner, store.RoleAdmin},
	}); err != nil {
		return nil, err
	}

	if r.Issues, err = resource.Register[Issue](reg, resource.Config{
		Name: Issues,
		Fields: []resource.Field{
			name("255"),
			{Key: "description", Type: resource.Textarea, Rules: "max=10000"},
			{Key: "project_id", Type: resource.Text, Ref: Projects},
			{Key: "issue_type_id", Type: resource.Text, Ref: IssueTypes},
			{Key: "state_id", Type: resource.Text, Ref: States},
			{Key: "label_id", Type: resource.Text, Ref: Labels},
			{Key: "assignee_id", Type: resource.Text, Rules: "uuid"},
			{Key: "priority", Type: resource.Select, Options: []string{"none", "urgent", "high", "medium", "low"}},
			{Key: "due_date", Type: resource.Date},
		},
		SearchFields: []string{"name", "description"},
		SortField:    "name",
		Actions:      crudDuplicate,
	}); err != nil {
		return nil, err
	}

	if r.Comments, err = resource.Register[Comment](reg, resource.Config{
		Name:           Comments,
		Fields:         []resource.Field{{Key: "body", Type: resource.Textarea, Required: true, Rules: "max=10000"}},
		SearchFields:   []string{"body"},
		Actions:        crud,
		Parent:         &resource.ParentRelation{Resource: Issues, KeyField: "issue_id"},
		PrincipalField: "author_id",
	}); err != nil {
		return nil, err
	}

	if r.Reactions, err = resource.Register[Reaction](reg, resource.Config{
		Name:           Reactions,
		Fields:         []resource.Field{{Key: "emoji", Type: resource.Text, Required: true, Validate: singleEmoji}},
		Parent:         &resource.ParentRelation{Resource: Comments, KeyField: "comment_id"},
		PrincipalField: "user_id",
		Toggle:         "emoji",
	}); err != nil {
		return nil, err
	}

	if err := reg.Check(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustBuild is Build for process start-up.
func MustBuild() *Resources {
	r, err := Build()
	if err != nil {
		panic(err)
	}
	return r
}
