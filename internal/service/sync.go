package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ticketportal/internal/config"
	"ticketportal/internal/domain"
)

// SyncService owns the ticket mirror: it decides when a sync may start, drives
// the remote source across every configured list, and keeps the job record
// honest even when the run dies mid-flight.
type SyncService struct {
	source    TaskSource
	tickets   TicketStore
	syncLogs  SyncLogStore
	publisher Publisher // optional
	logger    *slog.Logger
	listIDs   []string
	cfg       config.SyncConfig
}

func NewSyncService(
	source TaskSource,
	tickets TicketStore,
	syncLogs SyncLogStore,
	publisher Publisher,
	logger *slog.Logger,
	listIDs []string,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		source:    source,
		tickets:   tickets,
		syncLogs:  syncLogs,
		publisher: publisher,
		logger:    logger.With("component", "sync"),
		listIDs:   listIDs,
		cfg:       cfg,
	}
}

// TriggerSync starts a background sync and returns its job record immediately;
// the caller never waits for completion. Returns domain.ErrSyncRunning when a
// live job already holds the running slot. With force, every running job is
// failed first so a new run can always begin.
func (s *SyncService) TriggerSync(ctx context.Context, force bool) (*domain.SyncLog, error) {
	if force {
		reset, err := s.syncLogs.ResetStuck(ctx)
		if err != nil {
			return nil, fmt.Errorf("reset stuck syncs: %w", err)
		}
		if reset > 0 {
			s.logger.Warn("force trigger reset running syncs", "count", reset)
		}
	} else if _, err := s.syncLogs.ReapStale(ctx, s.cfg.StalenessWindow); err != nil {
		return nil, fmt.Errorf("reap stale syncs: %w", err)
	}

	job, err := s.syncLogs.Start(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sync started", "job_id", job.ID, "lists", len(s.listIDs))
	go s.run(context.WithoutCancel(ctx), job.ID)

	return job, nil
}

// Status reports the most recent job and whether one is in flight, reaping any
// stale running row first so a dead job never blocks the caller.
func (s *SyncService) Status(ctx context.Context) (*domain.SyncState, error) {
	if _, err := s.syncLogs.ReapStale(ctx, s.cfg.StalenessWindow); err != nil {
		return nil, fmt.Errorf("reap stale syncs: %w", err)
	}
	last, err := s.syncLogs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest sync: %w", err)
	}
	running, err := s.syncLogs.Running(ctx)
	if err != nil {
		return nil, fmt.Errorf("running sync: %w", err)
	}
	return &domain.SyncState{LastSync: last, IsRunning: running != nil}, nil
}

// IsRunning is the conflict check from TriggerSync exposed for pollers.
func (s *SyncService) IsRunning(ctx context.Context) (bool, error) {
	state, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	return state.IsRunning, nil
}

// ResetStuck force-fails every running job and returns how many were reset.
func (s *SyncService) ResetStuck(ctx context.Context) (int64, error) {
	count, err := s.syncLogs.ResetStuck(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Warn("reset stuck syncs", "count", count)
	}
	return count, nil
}

// MaybeAutoSync opportunistically starts a background sync when the last
// completed run is older than the freshness window. Best effort: errors and
// conflicts are logged, never returned, because the triggering read must not
// care.
func (s *SyncService) MaybeAutoSync(ctx context.Context) {
	last, err := s.syncLogs.Latest(ctx)
	if err != nil {
		s.logger.Error("auto-sync staleness check failed", "error", err)
		return
	}

	if last != nil {
		if last.Status != domain.SyncCompleted {
			return
		}
		if last.CompletedAt == nil || time.Since(*last.CompletedAt) < s.cfg.FreshnessWindow {
			return
		}
	}

	if _, err := s.TriggerSync(ctx, false); err != nil {
		if !errors.Is(err, domain.ErrSyncRunning) {
			s.logger.Error("auto-sync trigger failed", "error", err)
		}
		return
	}
	s.logger.Info("auto-sync triggered", "freshness_window", s.cfg.FreshnessWindow)
}

// run executes one sync job to its terminal state. The deferred transition is
// the try/finally guarantee: no exit path, panic included, leaves the row
// running. The run carries its own deadline equal to the staleness window, so a
// job the state machine would presume dead stops doing work at the same moment.
func (s *SyncService) run(ctx context.Context, jobID int64) {
	start := time.Now()
	logger := s.logger.With("job_id", jobID)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.StalenessWindow)
	defer cancel()

	agg := &domain.AggregateResult{PerList: make(map[string]int)}
	var runErr error

	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
		}
		// The terminal write must survive the run deadline.
		finishCtx, finishCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer finishCancel()

		if runErr != nil {
			logger.Error("sync failed",
				"error", runErr,
				"synced", agg.Synced,
				"total", agg.Total,
				"duration", time.Since(start),
			)
			if err := s.syncLogs.Fail(finishCtx, jobID, runErr.Error(), agg.Synced, agg.Total); err != nil {
				logger.Error("failed to record sync failure", "error", err)
			}
			return
		}

		if err := s.syncLogs.Complete(finishCtx, jobID, agg.Synced, agg.Total); err != nil {
			logger.Error("failed to record sync completion", "error", err)
		}
		logger.Info("sync completed",
			"synced", agg.Synced,
			"total", agg.Total,
			"lists", len(agg.PerList),
			"duration", time.Since(start),
		)
	}()

	runErr = s.syncLists(runCtx, jobID, agg)
}

// syncLists drains every configured list into the aggregate, then sorts it
// newest-first so consumers never depend on fetch order.
func (s *SyncService) syncLists(ctx context.Context, jobID int64, agg *domain.AggregateResult) error {
	for i, listID := range s.listIDs {
		if i > 0 {
			if err := sleep(ctx, s.cfg.ListDelay); err != nil {
				return err
			}
		}
		if err := s.syncList(ctx, jobID, listID, agg); err != nil {
			return err
		}
	}

	sort.SliceStable(agg.Tickets, func(i, j int) bool {
		return agg.Tickets[i].RemoteCreatedAt.After(agg.Tickets[j].RemoteCreatedAt)
	})
	return nil
}

// syncList pages through one list, persisting each page as it lands. Failed
// pages count toward a consecutive-error threshold; hitting it abandons the
// rest of this list but keeps everything already fetched and never touches the
// other lists.
func (s *SyncService) syncList(ctx context.Context, jobID int64, listID string, agg *domain.AggregateResult) error {
	logger := s.logger.With("job_id", jobID, "list", listID)
	consecutiveErrors := 0

	for page := 0; ; page++ {
		if page > 0 {
			if err := sleep(ctx, s.cfg.PageDelay); err != nil {
				return err
			}
		}

		result, err := s.source.FetchPage(ctx, listID, page)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			consecutiveErrors++
			logger.Warn("page fetch failed",
				"page", page,
				"consecutive_errors", consecutiveErrors,
				"error", err,
			)
			if consecutiveErrors >= s.cfg.MaxPageErrors {
				logger.Warn("abandoning list after repeated page failures", "pages_fetched", page)
				return nil
			}
			continue
		}
		consecutiveErrors = 0

		if len(result.Tickets) > 0 {
			saved, err := s.tickets.UpsertBatch(ctx, result.Tickets)
			if err != nil {
				return fmt.Errorf("persist page %d of list %s: %w", page, listID, err)
			}

			agg.Tickets = append(agg.Tickets, result.Tickets...)
			agg.PerList[listID] += len(result.Tickets)
			agg.Total += len(result.Tickets)
			agg.Synced += saved

			if err := s.syncLogs.Progress(ctx, jobID, agg.Synced, agg.Total); err != nil {
				logger.Warn("failed to record progress", "error", err)
			}

			s.publishBatch(ctx, result.Tickets)

			logger.Debug("page persisted",
				"page", page,
				"saved", saved,
				"fetched", len(result.Tickets),
				"list_total", agg.PerList[listID],
			)
		}

		if !result.HasMore {
			logger.Info("list drained", "pages", page+1, "tickets", agg.PerList[listID])
			return nil
		}
	}
}

// publishBatch emits a sync event per ticket. Event delivery is best effort;
// the mirror is already durable by the time these fire.
func (s *SyncService) publishBatch(ctx context.Context, tickets []domain.Ticket) {
	if s.publisher == nil {
		return
	}
	for i := range tickets {
		if err := s.publisher.Publish(ctx, &tickets[i]); err != nil {
			s.logger.Warn("failed to publish ticket event",
				"ticket_id", tickets[i].ID,
				"error", err,
			)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
