package tracker

import (
	"context"
	"time"

	"github.com/ternarybob/gradus/internal/common"
	"github.com/ternarybob/gradus/internal/interfaces"
	"github.com/ternarybob/gradus/internal/models"
	"github.com/ternarybob/gradus/internal/services/serp"
)

// runJob drives one job through the poll scheduler state machine:
//
//	STARTING -> POLLING -> {DONE, TIMED_OUT}
//
// STARTING dispatches a start call per keyword in small batches,
// creating one ticket each; keywords whose start fails become failed
// tickets immediately and never enter polling. POLLING drains pending
// tickets in fixed-size rounds separated by the poll interval, under a
// wall-clock ceiling that force-fails stragglers. The job therefore
// always reaches a terminal status, even if the provider never
// finishes some keywords.
func (s *Service) runJob(job *models.TrackingJob) {
	started := s.startTickets(job)

	if started == 0 {
		// Could not even begin: every start call failed
		s.finishJob(job, "all keyword searches failed to start")
		return
	}

	if err := s.storage.UpdateJobStatus(s.ctx, job.ID, models.JobStatusProcessing, 0, ""); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job processing")
	}
	s.publishProgress(job.ID, models.JobStatusProcessing, 0)

	s.pollTickets(job)
	s.finishJob(job, "")
}

// startTickets dispatches the provider's asynchronous start call for
// every keyword, batch by batch, and records one ticket per keyword.
// Returns the number of searches that started successfully.
func (s *Service) startTickets(job *models.TrackingJob) int {
	batchSize := s.trackerConfig.BatchSize
	if batchSize <= 0 {
		batchSize = 3
	}

	started := 0
	for batchStart := 0; batchStart < len(job.Keywords); batchStart += batchSize {
		batchEnd := batchStart + batchSize
		if batchEnd > len(job.Keywords) {
			batchEnd = len(job.Keywords)
		}

		for _, keyword := range job.Keywords[batchStart:batchEnd] {
			ticket := &models.Ticket{
				ID:        common.NewTicketID(),
				JobID:     job.ID,
				Keyword:   keyword,
				State:     models.TicketPending,
				CreatedAt: time.Now(),
			}

			handle, err := s.provider.StartSearch(s.ctx, &interfaces.SearchRequest{
				Keyword:  keyword,
				Location: job.Location,
				Device:   job.Device,
				Mode:     job.Mode,
			})
			if err != nil {
				// Distinguish "could not even begin" from "began but
				// never finished": the ticket is failed before it
				// enters polling.
				s.logger.Warn().
					Err(err).
					Str("job_id", job.ID).
					Str("keyword", keyword).
					Msg("Search start failed")
				ticket.State = models.TicketFailed
				ticket.Error = err.Error()
				now := time.Now()
				ticket.ResolvedAt = &now
			} else {
				ticket.Handle = handle
				started++
			}

			if err := s.storage.InsertTicket(s.ctx, ticket); err != nil {
				s.logger.Error().Err(err).Str("job_id", job.ID).Str("keyword", keyword).Msg("Failed to persist ticket")
			}
		}
	}

	return started
}

// pollTickets drains pending tickets in rounds until none remain or
// the wall-clock ceiling expires. Each round checks a bounded batch of
// tickets, which also bounds how much rate-limit budget one round can
// consume.
func (s *Service) pollTickets(job *models.TrackingJob) {
	ceiling := s.trackerConfig.PollCeilingDuration()
	interval := s.trackerConfig.PollIntervalDuration()

	pollCtx, cancel := context.WithDeadline(s.ctx, time.Now().Add(ceiling))
	defer cancel()

	batchSize := s.trackerConfig.BatchSize
	if batchSize <= 0 {
		batchSize = 3
	}

	offset := 0
	for {
		pending, err := s.storage.ListPendingTickets(s.ctx, job.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to list pending tickets")
			return
		}
		if len(pending) == 0 {
			return // DONE: every ticket resolved within the ceiling
		}

		if pollCtx.Err() != nil {
			// TIMED_OUT: ceiling reached with tickets still pending
			s.forceFailPending(job, pending)
			return
		}

		// Rotate the window across rounds so a slow first batch
		// cannot starve the tickets behind it of checks.
		round := pending
		if len(pending) > batchSize {
			start := offset % len(pending)
			round = make([]*models.Ticket, 0, batchSize)
			for i := 0; i < batchSize; i++ {
				round = append(round, pending[(start+i)%len(pending)])
			}
		}
		offset += len(round)

		for _, ticket := range round {
			s.checkTicket(pollCtx, job, ticket)
		}

		s.updateProgress(job)

		select {
		case <-pollCtx.Done():
			// Re-enter the loop to force-fail whatever is still pending
		case <-time.After(interval):
		}
	}
}

// checkTicket performs one check of a pending ticket, retrying
// transient provider errors with bounded exponential backoff.
// Permanent errors and exhausted retries fail the ticket; a completed
// payload becomes the keyword's canonical result.
func (s *Service) checkTicket(ctx context.Context, job *models.TrackingJob, ticket *models.Ticket) {
	maxRetries := s.trackerConfig.CheckRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var outcome *interfaces.CheckOutcome
	var err error

	for attempt := 0; ; attempt++ {
		outcome, err = s.provider.CheckSearch(ctx, ticket.Handle, job.TargetSite, job.Mode)
		if err == nil {
			break
		}

		if !serp.IsTransient(err) {
			// Client-side cause: no retry
			s.resolveTicketFailed(ticket, err.Error())
			return
		}

		ticket.Attempts++
		if ticket.Attempts > maxRetries {
			s.resolveTicketFailed(ticket, err.Error())
			return
		}

		s.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("keyword", ticket.Keyword).
			Int("attempt", ticket.Attempts).
			Msg("Transient check failure, backing off")

		if backoffErr := s.backoff.Sleep(ctx, attempt); backoffErr != nil {
			// Ceiling or shutdown hit mid-backoff; ticket stays
			// pending and the poll loop decides its fate.
			if updateErr := s.storage.UpdateTicket(s.ctx, ticket); updateErr != nil {
				s.logger.Error().Err(updateErr).Str("ticket_id", ticket.ID).Msg("Failed to persist ticket attempts")
			}
			return
		}
	}

	switch outcome.Status {
	case interfaces.CheckPending:
		// Provider still computing; persist consumed attempts only
		if err := s.storage.UpdateTicket(s.ctx, ticket); err != nil {
			s.logger.Error().Err(err).Str("ticket_id", ticket.ID).Msg("Failed to persist ticket")
		}
	case interfaces.CheckFailed:
		s.resolveTicketFailed(ticket, outcome.Reason)
	case interfaces.CheckComplete:
		s.resolveTicketComplete(job, ticket, outcome.Result)
	}
}

// resolveTicketComplete appends the canonical result (with optional
// insight annotation) and marks the ticket complete.
func (s *Service) resolveTicketComplete(job *models.TrackingJob, ticket *models.Ticket, result *models.KeywordResult) {
	result.ID = common.NewResultID()
	result.JobID = job.ID
	result.Keyword = ticket.Keyword
	result.CreatedAt = time.Now()

	// Enrichment is isolated: on any failure the insight service
	// returns its sentinel and the ranking data is kept untouched.
	result.Insight = s.insight.Generate(s.ctx, job, result)

	if err := s.storage.AppendResult(s.ctx, result); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Str("keyword", ticket.Keyword).Msg("Failed to append result")
		s.resolveTicketFailed(ticket, "failed to persist result: "+err.Error())
		return
	}

	ticket.State = models.TicketComplete
	if err := s.storage.UpdateTicket(s.ctx, ticket); err != nil {
		s.logger.Error().Err(err).Str("ticket_id", ticket.ID).Msg("Failed to resolve ticket")
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("keyword", ticket.Keyword).
		Bool("ranked", result.Ranked()).
		Msg("Keyword resolved")
}

func (s *Service) resolveTicketFailed(ticket *models.Ticket, reason string) {
	ticket.State = models.TicketFailed
	ticket.Error = reason
	if err := s.storage.UpdateTicket(s.ctx, ticket); err != nil {
		s.logger.Error().Err(err).Str("ticket_id", ticket.ID).Msg("Failed to fail ticket")
	}
}

// forceFailPending marks every remaining pending ticket failed when
// the ceiling expires. Forced failures count as resolved, so the job
// still reports progress 100 at its terminal point.
func (s *Service) forceFailPending(job *models.TrackingJob, pending []*models.Ticket) {
	s.logger.Warn().
		Str("job_id", job.ID).
		Int("pending", len(pending)).
		Msg("Poll ceiling reached, failing remaining tickets")

	for _, ticket := range pending {
		s.resolveTicketFailed(ticket, "polling ceiling exceeded before the provider finished")
	}
}

// updateProgress recomputes progress as resolved/total and persists
// it. The storage layer clamps progress monotonically, so overlapping
// updates can never move it backwards.
func (s *Service) updateProgress(job *models.TrackingJob) {
	tickets, err := s.storage.ListTickets(s.ctx, job.ID)
	if err != nil || len(tickets) == 0 {
		return
	}

	resolved := 0
	for _, ticket := range tickets {
		if ticket.State.IsTerminal() {
			resolved++
		}
	}

	progress := resolved * 100 / len(tickets)
	if err := s.storage.UpdateJobStatus(s.ctx, job.ID, models.JobStatusProcessing, progress, ""); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to update progress")
	}
	s.publishProgress(job.ID, models.JobStatusProcessing, progress)
}

// finishJob determines the terminal status from the final ticket
// states: completed when every ticket succeeded, failed when none did,
// partial for a mix. Collapsing partial into either neighbor would
// hide provider failures or discard useful data, so the three-way
// distinction is preserved all the way to the API.
func (s *Service) finishJob(job *models.TrackingJob, errMsg string) {
	tickets, err := s.storage.ListTickets(s.ctx, job.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to load tickets for terminal status")
		return
	}

	completed := 0
	failed := 0
	for _, ticket := range tickets {
		switch ticket.State {
		case models.TicketComplete:
			completed++
		case models.TicketFailed:
			failed++
		default:
			// Still pending here means polling aborted early; the
			// keyword can no longer resolve, so it fails now rather
			// than letting the job finish with work outstanding.
			s.resolveTicketFailed(ticket, "polling aborted before the keyword resolved")
			failed++
		}
	}

	var status models.JobStatus
	switch {
	case completed > 0 && failed == 0:
		status = models.JobStatusCompleted
	case completed == 0:
		status = models.JobStatusFailed
	default:
		status = models.JobStatusPartial
	}

	if errMsg == "" && status == models.JobStatusFailed {
		errMsg = "no keyword search completed successfully"
	}

	if err := s.storage.UpdateJobStatus(s.ctx, job.ID, status, 100, errMsg); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to set terminal status")
		return
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(status)).
		Int("completed", completed).
		Int("failed", failed).
		Msg("Tracking job finished")

	s.events.Publish(s.ctx, interfaces.Event{
		Type:  interfaces.EventJobCompleted,
		JobID: job.ID,
		Payload: map[string]interface{}{
			"status":    string(status),
			"completed": completed,
			"failed":    failed,
		},
	})
}

func (s *Service) publishProgress(jobID string, status models.JobStatus, progress int) {
	s.events.Publish(s.ctx, interfaces.Event{
		Type:  interfaces.EventJobProgress,
		JobID: jobID,
		Payload: map[string]interface{}{
			"status":   string(status),
			"progress": progress,
		},
	})
}
