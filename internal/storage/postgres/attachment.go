package postgres

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"ticketportal/internal/domain"
)

// AttachmentStore caches remote attachments keyed by their remote ID. Rows are
// filled lazily by detail-view fetches, not by the sync engine.
type AttachmentStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewAttachmentStore(db *sqlx.DB, logger *slog.Logger) *AttachmentStore {
	return &AttachmentStore{db: db, logger: logger.With("store", "attachments")}
}

func (s *AttachmentStore) Upsert(ctx context.Context, att *domain.Attachment) error {
	query := `
		INSERT INTO attachments (id, ticket_id, title, url, extension, size, date_added)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			extension = EXCLUDED.extension,
			size = EXCLUDED.size,
			date_added = EXCLUDED.date_added`

	_, err := s.db.ExecContext(ctx, query,
		att.ID,
		att.TicketID,
		att.Title,
		att.URL,
		att.Extension,
		att.Size,
		att.DateAdded,
	)
	return err
}

// UpsertBatch attempts each attachment independently and returns the success
// count; a failing row is logged and skipped.
func (s *AttachmentStore) UpsertBatch(ctx context.Context, atts []domain.Attachment) (int, error) {
	saved := 0
	for i := range atts {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		if err := s.Upsert(ctx, &atts[i]); err != nil {
			s.logger.Error("failed to cache attachment",
				"attachment_id", atts[i].ID,
				"ticket_id", atts[i].TicketID,
				"error", err,
			)
			continue
		}
		saved++
	}
	return saved, nil
}

func (s *AttachmentStore) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	query := `
		SELECT id, ticket_id, title, url, extension, size, date_added
		FROM attachments
		WHERE ticket_id = $1
		ORDER BY date_added DESC`

	atts := []domain.Attachment{}
	if err := s.db.SelectContext(ctx, &atts, query, ticketID); err != nil {
		return nil, err
	}
	return atts, nil
}
