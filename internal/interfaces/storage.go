package interfaces

import (
	"context"

	"github.com/ternarybob/gradus/internal/models"
)

// JobStorage is the persistence contract for tracking jobs, tickets
// and results. Any key-value, relational or in-memory store satisfying
// this contract is sufficient; the tracker never performs storage I/O
// beyond these calls.
//
// Updates are scoped by job ID and require no cross-job locking.
// DeleteJob cascades to the job's tickets and results atomically.
type JobStorage interface {
	InsertJob(ctx context.Context, job *models.TrackingJob) error
	GetJob(ctx context.Context, jobID string) (*models.TrackingJob, error)
	ListJobs(ctx context.Context, limit int) ([]*models.TrackingJob, error)
	DeleteJob(ctx context.Context, jobID string) error

	// UpdateJobStatus applies a status/progress update. Progress is
	// clamped monotonically non-decreasing; a terminal status sets the
	// completion timestamp once and refuses terminal -> non-terminal
	// transitions.
	UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, progress int, errMsg string) error

	InsertTicket(ctx context.Context, ticket *models.Ticket) error

	// UpdateTicket persists ticket mutations. Writing a terminal state
	// over an already-terminal ticket is a no-op, not an error.
	UpdateTicket(ctx context.Context, ticket *models.Ticket) error
	ListTickets(ctx context.Context, jobID string) ([]*models.Ticket, error)
	ListPendingTickets(ctx context.Context, jobID string) ([]*models.Ticket, error)

	AppendResult(ctx context.Context, result *models.KeywordResult) error
	UpdateResult(ctx context.Context, result *models.KeywordResult) error
	ListResults(ctx context.Context, jobID string) ([]*models.KeywordResult, error)
}
