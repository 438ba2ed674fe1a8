package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ticketportal/internal/domain"
)

// TicketService serves the read paths. It only reads the local mirror; the
// remote tracker is touched just for detail-view extras (attachments, comments)
// that the sync engine does not carry.
type TicketService struct {
	source      TaskSource
	tickets     TicketStore
	attachments AttachmentStore
	sync        *SyncService
	logger      *slog.Logger
}

func NewTicketService(
	source TaskSource,
	tickets TicketStore,
	attachments AttachmentStore,
	sync *SyncService,
	logger *slog.Logger,
) *TicketService {
	return &TicketService{
		source:      source,
		tickets:     tickets,
		attachments: attachments,
		sync:        sync,
		logger:      logger.With("component", "tickets"),
	}
}

// TicketListing is a user's mirrored tickets plus sync metadata so staleness is
// visible without ever blocking the read.
type TicketListing struct {
	Tickets      []domain.Ticket `json:"tickets"`
	TotalTickets int             `json:"totalTickets"`
	LastSync     *domain.SyncLog `json:"lastSync"`
}

// ListForUser returns the user's tickets from the mirror, newest first. When
// the mirror has gone stale a background refresh is kicked off; the possibly
// stale data is returned immediately either way.
func (t *TicketService) ListForUser(ctx context.Context, email string) (*TicketListing, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	tickets, err := t.tickets.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	total, err := t.tickets.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}
	last, err := t.sync.syncLogs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest sync: %w", err)
	}

	go t.sync.MaybeAutoSync(context.WithoutCancel(ctx))

	return &TicketListing{
		Tickets:      tickets,
		TotalTickets: total,
		LastSync:     last,
	}, nil
}

// TicketDetail is one mirrored ticket with its cached attachments.
type TicketDetail struct {
	Ticket      domain.Ticket       `json:"ticket"`
	Attachments []domain.Attachment `json:"attachments"`
}

// Get returns one ticket from the mirror. Attachments are cached on first
// access: an empty cache triggers a remote fetch, and a remote failure degrades
// to an empty list rather than failing the read.
func (t *TicketService) Get(ctx context.Context, id string) (*TicketDetail, error) {
	ticket, err := t.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	atts, err := t.attachments.ListByTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	if len(atts) == 0 {
		detail, err := t.source.GetTask(ctx, id)
		if err != nil {
			t.logger.Warn("failed to fetch task attachments", "ticket_id", id, "error", err)
		} else if len(detail.Attachments) > 0 {
			if _, err := t.attachments.UpsertBatch(ctx, detail.Attachments); err != nil {
				t.logger.Warn("failed to cache attachments", "ticket_id", id, "error", err)
			}
			atts = detail.Attachments
		}
	}

	return &TicketDetail{Ticket: *ticket, Attachments: atts}, nil
}

// Comments proxies the remote comment thread for a mirrored ticket.
func (t *TicketService) Comments(ctx context.Context, id string) ([]domain.Comment, error) {
	if _, err := t.tickets.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return t.source.ListComments(ctx, id)
}

// AddComment posts a comment to the remote ticket.
func (t *TicketService) AddComment(ctx context.Context, id, text string) (*domain.Comment, error) {
	if _, err := t.tickets.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return t.source.CreateComment(ctx, id, text)
}

// AddAttachment uploads a file to the remote ticket and caches the result.
func (t *TicketService) AddAttachment(ctx context.Context, id, filename string, r io.Reader) (*domain.Attachment, error) {
	if _, err := t.tickets.GetByID(ctx, id); err != nil {
		return nil, err
	}
	att, err := t.source.UploadAttachment(ctx, id, filename, r)
	if err != nil {
		return nil, err
	}
	if _, err := t.attachments.UpsertBatch(ctx, []domain.Attachment{*att}); err != nil {
		t.logger.Warn("failed to cache uploaded attachment", "ticket_id", id, "error", err)
	}
	return att, nil
}
