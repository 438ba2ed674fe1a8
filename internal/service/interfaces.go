package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"
	"time"

	"ticketportal/internal/domain"
)

// TaskSource pulls tasks from the remote tracker, one page of one list at a
// time, already normalized to the local ticket schema.
type TaskSource interface {
	FetchPage(ctx context.Context, listID string, page int) (domain.TaskPage, error)
	GetTask(ctx context.Context, taskID string) (*domain.TaskDetail, error)
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
	CreateComment(ctx context.Context, taskID, text string) (*domain.Comment, error)
	UploadAttachment(ctx context.Context, taskID, filename string, r io.Reader) (*domain.Attachment, error)
}

type TicketStore interface {
	UpsertBatch(ctx context.Context, tickets []domain.Ticket) (int, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Count(ctx context.Context) (int, error)
}

type AttachmentStore interface {
	UpsertBatch(ctx context.Context, atts []domain.Attachment) (int, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
}

type SyncLogStore interface {
	Start(ctx context.Context) (*domain.SyncLog, error)
	Progress(ctx context.Context, id int64, synced, total int) error
	Complete(ctx context.Context, id int64, synced, total int) error
	Fail(ctx context.Context, id int64, message string, synced, total int) error
	ReapStale(ctx context.Context, olderThan time.Duration) (int64, error)
	ResetStuck(ctx context.Context) (int64, error)
	Latest(ctx context.Context) (*domain.SyncLog, error)
	Running(ctx context.Context) (*domain.SyncLog, error)
}

type Publisher interface {
	Publish(ctx context.Context, ticket *domain.Ticket) error
	Close() error
}
