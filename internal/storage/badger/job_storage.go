package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gradus/internal/interfaces"
	"github.com/ternarybob/gradus/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ErrNotFound is returned when a requested job does not exist
var ErrNotFound = errors.New("job not found")

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) InsertJob(ctx context.Context, job *models.TrackingJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if err := s.db.Store().Insert(job.ID, job); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.TrackingJob, error) {
	var job models.TrackingJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, limit int) ([]*models.TrackingJob, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.TrackingJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.TrackingJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// DeleteJob removes a job and cascades to its tickets and results in a
// single Badger transaction, so a deleted job never leaves orphans.
func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	var job models.TrackingJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load job for delete: %w", err)
	}

	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		if err := s.db.Store().TxDeleteMatching(tx, &models.Ticket{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
			return fmt.Errorf("failed to delete tickets: %w", err)
		}
		if err := s.db.Store().TxDeleteMatching(tx, &models.KeywordResult{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
			return fmt.Errorf("failed to delete results: %w", err)
		}
		if err := s.db.Store().TxDelete(tx, jobID, &models.TrackingJob{}); err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cascade delete job %s: %w", jobID, err)
	}

	s.logger.Debug().Str("job_id", jobID).Msg("Job deleted with tickets and results")
	return nil
}

// UpdateJobStatus applies a status and progress update under the job
// lifecycle invariants: progress never decreases, terminal statuses
// are written once, and a terminal job never returns to a non-terminal
// status.
func (s *JobStorage) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, progress int, errMsg string) error {
	var job models.TrackingJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load job for status update: %w", err)
	}

	if job.Status.IsTerminal() {
		// Terminal -> anything is refused; repeated terminal writes are no-ops
		s.logger.Debug().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Str("requested", string(status)).
			Msg("Ignoring status update on terminal job")
		return nil
	}

	job.Status = status
	if progress > job.Progress {
		job.Progress = progress
	}
	if job.Progress > 100 {
		job.Progress = 100
	}
	if errMsg != "" {
		job.Error = errMsg
	}
	if status.IsTerminal() && job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}

	if err := s.db.Store().Update(jobID, &job); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// InsertTicket persists a new ticket, enforcing one ticket per
// (job, keyword) pair.
func (s *JobStorage) InsertTicket(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == "" {
		return fmt.Errorf("ticket ID is required")
	}
	if ticket.JobID == "" {
		return fmt.Errorf("ticket job ID is required")
	}

	count, err := s.db.Store().Count(&models.Ticket{},
		badgerhold.Where("JobID").Eq(ticket.JobID).And("Keyword").Eq(ticket.Keyword))
	if err != nil {
		return fmt.Errorf("failed to check for existing ticket: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("ticket already exists for job %s keyword %q", ticket.JobID, ticket.Keyword)
	}

	if err := s.db.Store().Insert(ticket.ID, ticket); err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}
	return nil
}

// UpdateTicket persists ticket mutations. A ticket already in a
// terminal state is never modified again; repeated terminal writes
// from overlapping poll rounds are silently absorbed.
func (s *JobStorage) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	var current models.Ticket
	if err := s.db.Store().Get(ticket.ID, &current); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("ticket not found: %s", ticket.ID)
		}
		return fmt.Errorf("failed to load ticket: %w", err)
	}

	if current.State.IsTerminal() {
		s.logger.Debug().
			Str("ticket_id", ticket.ID).
			Str("state", string(current.State)).
			Msg("Ignoring update on resolved ticket")
		return nil
	}

	if ticket.State.IsTerminal() && ticket.ResolvedAt == nil {
		now := time.Now()
		ticket.ResolvedAt = &now
	}

	if err := s.db.Store().Update(ticket.ID, ticket); err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	return nil
}

func (s *JobStorage) ListTickets(ctx context.Context, jobID string) ([]*models.Ticket, error) {
	var tickets []models.Ticket
	if err := s.db.Store().Find(&tickets, badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	result := make([]*models.Ticket, len(tickets))
	for i := range tickets {
		result[i] = &tickets[i]
	}
	return result, nil
}

func (s *JobStorage) ListPendingTickets(ctx context.Context, jobID string) ([]*models.Ticket, error) {
	var tickets []models.Ticket
	query := badgerhold.Where("JobID").Eq(jobID).And("State").Eq(models.TicketPending).SortBy("CreatedAt")
	if err := s.db.Store().Find(&tickets, query); err != nil {
		return nil, fmt.Errorf("failed to list pending tickets: %w", err)
	}

	result := make([]*models.Ticket, len(tickets))
	for i := range tickets {
		result[i] = &tickets[i]
	}
	return result, nil
}

func (s *JobStorage) AppendResult(ctx context.Context, result *models.KeywordResult) error {
	if result.ID == "" {
		return fmt.Errorf("result ID is required")
	}
	if err := s.db.Store().Insert(result.ID, result); err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}
	return nil
}

func (s *JobStorage) UpdateResult(ctx context.Context, result *models.KeywordResult) error {
	if err := s.db.Store().Update(result.ID, result); err != nil {
		return fmt.Errorf("failed to update result: %w", err)
	}
	return nil
}

func (s *JobStorage) ListResults(ctx context.Context, jobID string) ([]*models.KeywordResult, error) {
	var results []models.KeywordResult
	if err := s.db.Store().Find(&results, badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	out := make([]*models.KeywordResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}
