package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ticketportal/internal/domain"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/sync — start a background sync. The handler returns as soon as the
// job record exists; progress is observable via GET /api/sync.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	job, err := s.sync.TriggerSync(r.Context(), force)
	if errors.Is(err, domain.ErrSyncRunning) {
		s.respond(w, http.StatusConflict, map[string]any{
			"status":  "running",
			"message": "sync is already in progress",
		})
		return
	}
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.respond(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"jobId":  job.ID,
	})
}

// GET /api/sync — last job plus whether one is in flight.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.sync.Status(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, state)
}

// POST /api/sync/reset — force-fail every running job.
func (s *Server) handleResetStuck(w http.ResponseWriter, r *http.Request) {
	count, err := s.sync.ResetStuck(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]int64{"count": count})
}

// GET /api/tickets — the caller's mirrored tickets, newest first.
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r)
	if email == "" {
		s.respond(w, http.StatusBadRequest, map[string]string{"message": "missing user email"})
		return
	}

	listing, err := s.tickets.ListForUser(r.Context(), email)
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, listing)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	detail, err := s.tickets.Get(r.Context(), chi.URLParam(r, "ticketID"))
	if errors.Is(err, domain.ErrNotFound) {
		s.respond(w, http.StatusNotFound, map[string]string{"message": "ticket not found"})
		return
	}
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, detail)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.tickets.Comments(r.Context(), chi.URLParam(r, "ticketID"))
	if errors.Is(err, domain.ErrNotFound) {
		s.respond(w, http.StatusNotFound, map[string]string{"message": "ticket not found"})
		return
	}
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		s.respond(w, http.StatusBadRequest, map[string]string{"message": "missing comment text"})
		return
	}

	comment, err := s.tickets.AddComment(r.Context(), chi.URLParam(r, "ticketID"), body.Text)
	if errors.Is(err, domain.ErrNotFound) {
		s.respond(w, http.StatusNotFound, map[string]string{"message": "ticket not found"})
		return
	}
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, comment)
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("attachment")
	if err != nil {
		s.respond(w, http.StatusBadRequest, map[string]string{"message": "missing attachment file"})
		return
	}
	defer file.Close()

	att, err := s.tickets.AddAttachment(r.Context(), chi.URLParam(r, "ticketID"), header.Filename, file)
	if errors.Is(err, domain.ErrNotFound) {
		s.respond(w, http.StatusNotFound, map[string]string{"message": "ticket not found"})
		return
	}
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, att)
}

// GET /api/status — monitored host statuses.
func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.respond(w, http.StatusServiceUnavailable, map[string]string{"message": "monitoring not configured"})
		return
	}
	statuses, err := s.monitor.Statuses(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"services": statuses})
}

func userEmail(r *http.Request) string {
	if email := r.Header.Get("X-User-Email"); email != "" {
		return email
	}
	return r.URL.Query().Get("email")
}

func (s *Server) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	s.respond(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
}
