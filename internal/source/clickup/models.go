package clickup

import "encoding/json"

// tasksResponse is the paginated task listing envelope.
type tasksResponse struct {
	Tasks []RawTask `json:"tasks"`
}

// RawTask is a remote task as the API returns it. Timestamps are
// epoch-millisecond strings.
type RawTask struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Status       *TaskStatus     `json:"status"`
	Priority     *TaskPriority   `json:"priority"`
	DueDate      string          `json:"due_date"`
	DateCreated  string          `json:"date_created"`
	DateUpdated  string          `json:"date_updated"`
	CustomFields []CustomField   `json:"custom_fields"`
	Attachments  []RawAttachment `json:"attachments"`
}

type TaskStatus struct {
	Status string `json:"status"`
	Color  string `json:"color"`
}

type TaskPriority struct {
	Priority string `json:"priority"`
	Color    string `json:"color"`
}

// CustomField carries a value whose shape depends on Type: a scalar for text
// fields, an options index for drop_down, an object array for labels. The raw
// bytes are kept and resolved per type tag in fields.go.
type CustomField struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Value      json.RawMessage `json:"value"`
	TypeConfig *TypeConfig     `json:"type_config"`
}

type TypeConfig struct {
	Options []FieldOption `json:"options"`
}

type FieldOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

type RawAttachment struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	DateAdded string `json:"date_added"`
}

// rawComment is a remote task comment.
type rawComment struct {
	ID   string      `json:"id"`
	Text string      `json:"comment_text"`
	Date json.Number `json:"date"`
	User commentUser `json:"user"`
}

type commentUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type commentsResponse struct {
	Comments []rawComment `json:"comments"`
}
