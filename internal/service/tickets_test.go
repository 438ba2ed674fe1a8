package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ticketportal/internal/config"
	"ticketportal/internal/domain"
	"ticketportal/internal/service/mocks"
)

type TicketServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source      *mocks.MockTaskSource
	tickets     *mocks.MockTicketStore
	attachments *mocks.MockAttachmentStore
	syncLogs    *mocks.MockSyncLogStore

	service *TicketService
	logger  *slog.Logger
}

func (s *TicketServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockTaskSource(s.ctrl)
	s.tickets = mocks.NewMockTicketStore(s.ctrl)
	s.attachments = mocks.NewMockAttachmentStore(s.ctrl)
	s.syncLogs = mocks.NewMockSyncLogStore(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	syncService := NewSyncService(
		s.source,
		s.tickets,
		s.syncLogs,
		nil,
		s.logger,
		[]string{"list1"},
		config.SyncConfig{StalenessWindow: time.Minute, FreshnessWindow: time.Hour, MaxPageErrors: 3},
	)

	s.service = NewTicketService(s.source, s.tickets, s.attachments, syncService, s.logger)
}

func (s *TicketServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestTicketServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TicketServiceTestSuite))
}

func (s *TicketServiceTestSuite) TestListForUser() {
	ctx := context.Background()
	completedAt := time.Now().Add(-time.Minute)
	last := &domain.SyncLog{ID: 9, Status: domain.SyncCompleted, CompletedAt: &completedAt}
	tickets := []domain.Ticket{mirrorTicket("t1", time.Now())}
	checked := make(chan struct{})

	s.tickets.EXPECT().ListByEmail(ctx, "ops@example.com").Return(tickets, nil)
	s.tickets.EXPECT().Count(ctx).Return(42, nil)
	s.syncLogs.EXPECT().Latest(ctx).Return(last, nil)
	// The background freshness check runs on a detached context. The mirror is
	// fresh here, so it stops after one staleness lookup.
	s.syncLogs.EXPECT().Latest(gomock.Any()).DoAndReturn(
		func(context.Context) (*domain.SyncLog, error) {
			close(checked)
			return last, nil
		},
	)

	listing, err := s.service.ListForUser(ctx, "  Ops@Example.COM ")

	s.NoError(err)
	s.Equal(tickets, listing.Tickets)
	s.Equal(42, listing.TotalTickets)
	s.Equal(int64(9), listing.LastSync.ID)

	select {
	case <-checked:
	case <-time.After(2 * time.Second):
		s.FailNow("freshness check never ran")
	}
}

func (s *TicketServiceTestSuite) TestGet_ServesCachedAttachments() {
	ctx := context.Background()
	ticket := mirrorTicket("t1", time.Now())
	cached := []domain.Attachment{{ID: "a1", TicketID: "t1", Title: "log.txt", URL: "https://files/a1"}}

	s.tickets.EXPECT().GetByID(ctx, "t1").Return(&ticket, nil)
	s.attachments.EXPECT().ListByTicket(ctx, "t1").Return(cached, nil)

	detail, err := s.service.Get(ctx, "t1")

	s.NoError(err)
	s.Equal("t1", detail.Ticket.ID)
	s.Equal(cached, detail.Attachments)
}

func (s *TicketServiceTestSuite) TestGet_FetchesAndCachesAttachmentsOnMiss() {
	ctx := context.Background()
	ticket := mirrorTicket("t1", time.Now())
	remote := []domain.Attachment{{ID: "a1", TicketID: "t1", Title: "log.txt", URL: "https://files/a1"}}

	s.tickets.EXPECT().GetByID(ctx, "t1").Return(&ticket, nil)
	s.attachments.EXPECT().ListByTicket(ctx, "t1").Return(nil, nil)
	s.source.EXPECT().GetTask(ctx, "t1").Return(&domain.TaskDetail{Ticket: ticket, Attachments: remote}, nil)
	s.attachments.EXPECT().UpsertBatch(ctx, remote).Return(1, nil)

	detail, err := s.service.Get(ctx, "t1")

	s.NoError(err)
	s.Equal(remote, detail.Attachments)
}

func (s *TicketServiceTestSuite) TestGet_RemoteFailureDegradesToEmpty() {
	ctx := context.Background()
	ticket := mirrorTicket("t1", time.Now())

	s.tickets.EXPECT().GetByID(ctx, "t1").Return(&ticket, nil)
	s.attachments.EXPECT().ListByTicket(ctx, "t1").Return(nil, nil)
	s.source.EXPECT().GetTask(ctx, "t1").Return(nil, errors.New("upstream down"))

	detail, err := s.service.Get(ctx, "t1")

	s.NoError(err)
	s.Empty(detail.Attachments)
}

func (s *TicketServiceTestSuite) TestGet_NotFound() {
	ctx := context.Background()

	s.tickets.EXPECT().GetByID(ctx, "missing").Return(nil, domain.ErrNotFound)

	_, err := s.service.Get(ctx, "missing")

	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *TicketServiceTestSuite) TestComments() {
	ctx := context.Background()
	ticket := mirrorTicket("t1", time.Now())
	comments := []domain.Comment{{ID: "c1", Text: "on it", Author: "alex"}}

	s.tickets.EXPECT().GetByID(ctx, "t1").Return(&ticket, nil)
	s.source.EXPECT().ListComments(ctx, "t1").Return(comments, nil)

	got, err := s.service.Comments(ctx, "t1")

	s.NoError(err)
	s.Equal(comments, got)
}

func (s *TicketServiceTestSuite) TestComments_UnknownTicket() {
	ctx := context.Background()

	s.tickets.EXPECT().GetByID(ctx, "missing").Return(nil, domain.ErrNotFound)

	_, err := s.service.Comments(ctx, "missing")

	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *TicketServiceTestSuite) TestAddComment() {
	ctx := context.Background()
	ticket := mirrorTicket("t1", time.Now())
	comment := &domain.Comment{ID: "c2", Text: "restarted the service"}

	s.tickets.EXPECT().GetByID(ctx, "t1").Return(&ticket, nil)
	s.source.EXPECT().CreateComment(ctx, "t1", "restarted the service").Return(comment, nil)

	got, err := s.service.AddComment(ctx, "t1", "restarted the service")

	s.NoError(err)
	s.Equal(comment, got)
}

func (s *TicketServiceTestSuite) TestAddAttachment() {
	ctx := context.Background()
	ticket := mirrorTicket("t1", time.Now())
	att := &domain.Attachment{ID: "a9", TicketID: "t1", Title: "report.txt", URL: "https://files/a9"}

	s.tickets.EXPECT().GetByID(ctx, "t1").Return(&ticket, nil)
	s.source.EXPECT().UploadAttachment(ctx, "t1", "report.txt", gomock.Any()).Return(att, nil)
	s.attachments.EXPECT().UpsertBatch(ctx, []domain.Attachment{*att}).Return(1, nil)

	got, err := s.service.AddAttachment(ctx, "t1", "report.txt", strings.NewReader("contents"))

	s.NoError(err)
	s.Equal(att, got)
}
