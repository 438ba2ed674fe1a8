package domain

import (
	"errors"
	"time"
)

// SyncStatus is the state of a sync job. running is the sole non-terminal state.
type SyncStatus string

const (
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// ErrSyncRunning signals that a sync job is already in flight.
var ErrSyncRunning = errors.New("sync already running")

// ErrNotFound signals a missing row.
var ErrNotFound = errors.New("not found")

// SyncLog is the durable record of one sync run. The row in running state is the
// system's only mutex: all cross-request coordination goes through it.
type SyncLog struct {
	ID            int64      `db:"id" json:"id"`
	Status        SyncStatus `db:"status" json:"status"`
	StartedAt     time.Time  `db:"started_at" json:"startedAt"`
	CompletedAt   *time.Time `db:"completed_at" json:"completedAt"`
	TicketsSynced int        `db:"tickets_synced" json:"ticketsSynced"`
	TicketsTotal  int        `db:"tickets_total" json:"ticketsTotal"`
	ErrorMessage  *string    `db:"error_message" json:"errorMessage"`
}

// SyncState is the control-surface view of the job table.
type SyncState struct {
	LastSync  *SyncLog `json:"lastSync"`
	IsRunning bool     `json:"isRunning"`
}

// TaskPage is one page of normalized tickets from a remote list. HasMore is true
// iff the remote returned a full page; a short page means the list is drained.
type TaskPage struct {
	Tickets []Ticket
	HasMore bool
}

// AggregateResult collects everything one sync run fetched across all lists,
// sorted newest-first after the final list is drained.
type AggregateResult struct {
	Tickets []Ticket
	PerList map[string]int
	Synced  int
	Total   int
}
