package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ticketportal/internal/domain"
)

// SyncLogStore persists sync job records. A partial unique index on
// status='running' makes the one-running-job invariant hold regardless of how
// many request contexts race on Start.
type SyncLogStore struct {
	db *sqlx.DB
}

func NewSyncLogStore(db *sqlx.DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

const syncLogColumns = `id, status, started_at, completed_at, tickets_synced, tickets_total, error_message`

const uniqueViolation = "23505"

// Start creates a new running job. Returns domain.ErrSyncRunning when another
// job already holds the running slot.
func (s *SyncLogStore) Start(ctx context.Context) (*domain.SyncLog, error) {
	query := `
		INSERT INTO sync_logs (status, started_at)
		VALUES ('running', now())
		RETURNING ` + syncLogColumns

	var job domain.SyncLog
	err := s.db.GetContext(ctx, &job, query)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, domain.ErrSyncRunning
		}
		return nil, err
	}
	return &job, nil
}

// Progress updates the running counters. Safe to call repeatedly mid-run; a
// no-op once the job has reached a terminal state.
func (s *SyncLogStore) Progress(ctx context.Context, id int64, synced, total int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs
		SET tickets_synced = $2, tickets_total = $3
		WHERE id = $1 AND status = 'running'`,
		id, synced, total,
	)
	return err
}

// Complete transitions the job to its terminal success state. Only a running
// job transitions, so a second call is a no-op.
func (s *SyncLogStore) Complete(ctx context.Context, id int64, synced, total int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs
		SET status = 'completed', completed_at = now(), tickets_synced = $2, tickets_total = $3
		WHERE id = $1 AND status = 'running'`,
		id, synced, total,
	)
	return err
}

// Fail transitions the job to its terminal failure state.
func (s *SyncLogStore) Fail(ctx context.Context, id int64, message string, synced, total int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs
		SET status = 'failed', completed_at = now(), error_message = $2,
			tickets_synced = $3, tickets_total = $4
		WHERE id = $1 AND status = 'running'`,
		id, message, synced, total,
	)
	return err
}

// ReapStale fails any running job older than the staleness window. A row that
// old belongs to a crashed process; callers must never stay blocked behind it.
func (s *SyncLogStore) ReapStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs
		SET status = 'failed', completed_at = now(),
			error_message = 'sync timed out: presumed dead after exceeding the staleness window'
		WHERE status = 'running' AND started_at < now() - make_interval(secs => $1)`,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetStuck force-fails every running job regardless of age. Manual recovery
// for when an operator knows the process is dead before the window concludes.
func (s *SyncLogStore) ResetStuck(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs
		SET status = 'failed', completed_at = now(), error_message = 'manually reset'
		WHERE status = 'running'`,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Latest returns the most recent job, or nil when none exist.
func (s *SyncLogStore) Latest(ctx context.Context) (*domain.SyncLog, error) {
	query := `SELECT ` + syncLogColumns + ` FROM sync_logs ORDER BY started_at DESC, id DESC LIMIT 1`

	var job domain.SyncLog
	err := s.db.GetContext(ctx, &job, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Running returns the currently running job, or nil.
func (s *SyncLogStore) Running(ctx context.Context) (*domain.SyncLog, error) {
	query := `SELECT ` + syncLogColumns + ` FROM sync_logs WHERE status = 'running' ORDER BY started_at DESC LIMIT 1`

	var job domain.SyncLog
	err := s.db.GetContext(ctx, &job, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}
