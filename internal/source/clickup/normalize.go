package clickup

import (
	"strconv"
	"time"

	"ticketportal/internal/domain"
)

// Normalize flattens a remote task into a local ticket. Malformed optional
// values degrade to safe defaults; a single bad record never fails the page.
func (c *Client) Normalize(t *RawTask) domain.Ticket {
	status := "unknown"
	if t.Status != nil && t.Status.Status != "" {
		status = t.Status.Status
	}
	priority := "normal"
	if t.Priority != nil && t.Priority.Priority != "" {
		priority = t.Priority.Priority
	}

	email := extractEmail(t)
	if email == "" {
		c.logger.Debug("no owner email found, using placeholder", "task_id", t.ID)
		email = PlaceholderEmail
	}

	ticket := domain.Ticket{
		ID:           t.ID,
		TicketCode:   stringFieldByID(t.CustomFields, ticketCodeFieldID),
		Name:         t.Name,
		Status:       status,
		Priority:     priority,
		UserEmail:    email,
		BusinessUnit: stringFieldByName(t.CustomFields, "business unit"),
		JiraStatus:   stringFieldByName(t.CustomFields, "jira status"),
		JiraAssignee: stringFieldByName(t.CustomFields, "jira assignee"),
		JiraURL:      stringFieldByName(t.CustomFields, "jira url", "jira link"),
	}

	if t.Description != "" {
		desc := t.Description
		ticket.Description = &desc
	}

	if f := fieldByID(t.CustomFields, releaseNotesFieldID); f != nil {
		ticket.ReleaseNotes = f.resolveBool()
	}

	if due, err := parseEpochMillis(t.DueDate); err == nil {
		ticket.DueDate = &due
	}

	created, err := parseEpochMillis(t.DateCreated)
	if err != nil {
		c.logger.Warn("malformed creation timestamp", "task_id", t.ID, "value", t.DateCreated)
	}
	ticket.RemoteCreatedAt = created

	updated, err := parseEpochMillis(t.DateUpdated)
	if err != nil {
		updated = created
	}
	ticket.RemoteUpdatedAt = updated

	return ticket
}

// normalizeAttachments maps raw attachments onto the cache rows for a ticket.
func normalizeAttachments(ticketID string, raw []RawAttachment) []domain.Attachment {
	atts := make([]domain.Attachment, 0, len(raw))
	for _, a := range raw {
		att := domain.Attachment{
			ID:       a.ID,
			TicketID: ticketID,
			Title:    a.Title,
			URL:      a.URL,
		}
		if a.Extension != "" {
			ext := a.Extension
			att.Extension = &ext
		}
		if a.Size > 0 {
			size := a.Size
			att.Size = &size
		}
		if added, err := parseEpochMillis(a.DateAdded); err == nil {
			att.DateAdded = added
		}
		atts = append(atts, att)
	}
	return atts
}

// parseEpochMillis parses the remote API's epoch-millisecond string timestamps.
func parseEpochMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
