package tracker

import "time"

// Base carries the columns every tenant-scoped row has.
type Base struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Team struct {
	Base
	Name        string  `json:"name"`
	Identifier  string  `json:"identifier"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
}

type Project struct {
	Base
	Name         string  `json:"name"`
	Identifier   string  `json:"identifier"`
	Description  *string `json:"description"`
	TeamID       *string `json:"team_id"`
	StatusFlowID *string `json:"status_flow_id"`
	Color        *string `json:"color"`
	Icon         *string `json:"icon"`
	StartDate    *string `json:"start_date"`
	TargetDate   *string `json:"target_date"`
	Archived     bool    `json:"archived"`
}

type Label struct {
	Base
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	Description *string `json:"description"`
}

type IssueType struct {
	Base
	Name        string  `json:"name"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
	Description *string `json:"description"`
	IsDefault   bool    `json:"is_default"`
}

type StatusFlow struct {
	Base
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsDefault   bool    `json:"is_default"`
}

// State is one ordered step of a status flow.
type State struct {
	Base
	StatusFlowID string  `json:"status_flow_id"`
	Position     int     `json:"position"`
	Name         string  `json:"name"`
	Color        *string `json:"color"`
	Category     string  `json:"category"`
}

type Member struct {
	Base
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type Issue struct {
	Base
	Name        string  `json:"name"`
	Description *string `json:"description"`
	ProjectID   *string `json:"project_id"`
	IssueTypeID *string `json:"issue_type_id"`
	StateID     *string `json:"state_id"`
	LabelID     *string `json:"label_id"`
	AssigneeID  *string `json:"assignee_id"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"due_date"`
}

type Comment struct {
	Base
	IssueID  string `json:"issue_id"`
	AuthorID string `json:"author_id"`
	Body     string `json:"body"`
}

// Reaction is one user's emoji on a comment. At most one row exists per
// (comment, user, emoji).
type Reaction struct {
	Base
	CommentID string `json:"comment_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}
