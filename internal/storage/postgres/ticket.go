package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"ticketportal/internal/domain"
)

type TicketStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewTicketStore(db *sqlx.DB, logger *slog.Logger) *TicketStore {
	return &TicketStore{db: db, logger: logger.With("store", "tickets")}
}

const ticketColumns = `id, ticket_code, name, description, status, priority, user_email,
	business_unit, jira_status, jira_assignee, jira_url, release_notes, due_date,
	remote_created_at, remote_updated_at, synced_at`

// Upsert writes one ticket keyed by its remote task ID. Updates replace every
// field and stamp synced_at; there is no partial merge.
func (s *TicketStore) Upsert(ctx context.Context, ticket *domain.Ticket) error {
	query := `
		INSERT INTO tickets (
			id, ticket_code, name, description, status, priority, user_email,
			business_unit, jira_status, jira_assignee, jira_url, release_notes,
			due_date, remote_created_at, remote_updated_at, synced_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now()
		)
		ON CONFLICT (id) DO UPDATE SET
			ticket_code = EXCLUDED.ticket_code,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			user_email = EXCLUDED.user_email,
			business_unit = EXCLUDED.business_unit,
			jira_status = EXCLUDED.jira_status,
			jira_assignee = EXCLUDED.jira_assignee,
			jira_url = EXCLUDED.jira_url,
			release_notes = EXCLUDED.release_notes,
			due_date = EXCLUDED.due_date,
			remote_created_at = EXCLUDED.remote_created_at,
			remote_updated_at = EXCLUDED.remote_updated_at,
			synced_at = now()`

	_, err := s.db.ExecContext(ctx, query,
		ticket.ID,
		ticket.TicketCode,
		ticket.Name,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.UserEmail,
		ticket.BusinessUnit,
		ticket.JiraStatus,
		ticket.JiraAssignee,
		ticket.JiraURL,
		ticket.ReleaseNotes,
		ticket.DueDate,
		ticket.RemoteCreatedAt,
		ticket.RemoteUpdatedAt,
	)
	return err
}

// UpsertBatch attempts each ticket independently and returns the success count.
// A failing record is logged and skipped, never aborting its siblings.
func (s *TicketStore) UpsertBatch(ctx context.Context, tickets []domain.Ticket) (int, error) {
	saved := 0
	for i := range tickets {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		if err := s.Upsert(ctx, &tickets[i]); err != nil {
			s.logger.Error("failed to save ticket",
				"ticket_id", tickets[i].ID,
				"error", err,
			)
			continue
		}
		saved++
	}
	return saved, nil
}

// ListByEmail returns the user's tickets, newest first by remote creation time.
func (s *TicketStore) ListByEmail(ctx context.Context, email string) ([]domain.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE lower(user_email) = lower($1)
		ORDER BY remote_created_at DESC`

	tickets := []domain.Ticket{}
	if err := s.db.SelectContext(ctx, &tickets, query, email); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *TicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	var ticket domain.Ticket
	err := s.db.GetContext(ctx, &ticket, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *TicketStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM tickets")
	return count, err
}
