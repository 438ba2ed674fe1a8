package domain

import "time"

// Ticket is the local mirror of a remote task. Rows are created and overwritten
// only by the sync engine; read paths never mutate them.
type Ticket struct {
	ID              string     `db:"id" json:"id"`
	TicketCode      *string    `db:"ticket_code" json:"ticketId"`
	Name            string     `db:"name" json:"name"`
	Description     *string    `db:"description" json:"description"`
	Status          string     `db:"status" json:"status"`
	Priority        string     `db:"priority" json:"priority"`
	UserEmail       string     `db:"user_email" json:"userEmail"`
	BusinessUnit    *string    `db:"business_unit" json:"businessUnit"`
	JiraStatus      *string    `db:"jira_status" json:"jiraStatus"`
	JiraAssignee    *string    `db:"jira_assignee" json:"jiraAssignee"`
	JiraURL         *string    `db:"jira_url" json:"jiraUrl"`
	ReleaseNotes    bool       `db:"release_notes" json:"releaseNotes"`
	DueDate         *time.Time `db:"due_date" json:"dueDate"`
	RemoteCreatedAt time.Time  `db:"remote_created_at" json:"dateCreated"`
	RemoteUpdatedAt time.Time  `db:"remote_updated_at" json:"dateUpdated"`
	SyncedAt        time.Time  `db:"synced_at" json:"syncedAt"`
}

// Attachment is a cached remote attachment, populated lazily on the first
// detail-view fetch rather than by the sync engine.
type Attachment struct {
	ID        string    `db:"id" json:"id"`
	TicketID  string    `db:"ticket_id" json:"ticketId"`
	Title     string    `db:"title" json:"title"`
	URL       string    `db:"url" json:"url"`
	Extension *string   `db:"extension" json:"extension,omitempty"`
	Size      *int64    `db:"size" json:"size,omitempty"`
	DateAdded time.Time `db:"date_added" json:"dateAdded"`
}

// Comment is a remote task comment. Comments are proxied, never persisted.
type Comment struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Author   string    `json:"author"`
	Email    string    `json:"email,omitempty"`
	PostedAt time.Time `json:"postedAt"`
}

// TaskDetail is a single remote task with its attachments.
type TaskDetail struct {
	Ticket      Ticket
	Attachments []Attachment
}
