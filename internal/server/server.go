// Package server exposes the sync control surface and ticket read paths over
// HTTP. Authentication happens upstream; the authenticated user's email arrives
// in the X-User-Email header.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ticketportal/internal/monitor/zabbix"
	"ticketportal/internal/service"
)

type Server struct {
	sync    *service.SyncService
	tickets *service.TicketService
	monitor *zabbix.Client // nil when monitoring is not configured
	logger  *slog.Logger
}

func New(sync *service.SyncService, tickets *service.TicketService, monitor *zabbix.Client, logger *slog.Logger) *Server {
	return &Server{
		sync:    sync,
		tickets: tickets,
		monitor: monitor,
		logger:  logger.With("component", "http"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Post("/", s.handleTriggerSync)
			r.Get("/", s.handleSyncStatus)
			r.Post("/reset", s.handleResetStuck)
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", s.handleListTickets)
			r.Route("/{ticketID}", func(r chi.Router) {
				r.Get("/", s.handleGetTicket)
				r.Get("/comments", s.handleListComments)
				r.Post("/comments", s.handleCreateComment)
				r.Post("/attachments", s.handleUploadAttachment)
			})
		})

		r.Get("/status", s.handleMonitorStatus)
	})

	return r
}
