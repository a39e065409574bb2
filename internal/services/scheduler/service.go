package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gradus/internal/common"
	"github.com/ternarybob/gradus/internal/services/tracker"
)

// recentJobWindow bounds how many recent jobs the refresh pass scans
// when collecting distinct target sites.
const recentJobWindow = 200

// Service re-runs tracking for known target sites on a cron schedule,
// so rankings stay current without user action. Disabled by default;
// refresh failures are logged and never fatal.
type Service struct {
	config  *common.RefreshConfig
	tracker *tracker.Service
	logger  arbor.ILogger
	cron    *cron.Cron
}

// NewService creates a new refresh scheduler.
func NewService(config *common.RefreshConfig, trackerService *tracker.Service, logger arbor.ILogger) *Service {
	return &Service{
		config:  config,
		tracker: trackerService,
		logger:  logger,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Start registers the refresh schedule and starts the cron runner.
// A nil return with no registration means refresh is disabled.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Debug().Msg("Scheduled refresh disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.refreshAll); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.config.Schedule).Msg("Scheduled refresh enabled")
	return nil
}

// Stop halts the cron runner and waits for a running refresh to end.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// refreshAll re-submits the most recent job per distinct target site.
func (s *Service) refreshAll() {
	ctx := context.Background()

	jobs, err := s.tracker.ListJobs(ctx, recentJobWindow)
	if err != nil {
		s.logger.Error().Err(err).Msg("Refresh pass failed to list jobs")
		return
	}

	// Jobs arrive newest-first: the first job seen per site is the
	// latest tracking request for it.
	seen := make(map[string]bool)
	refreshed := 0
	for _, job := range jobs {
		if seen[job.TargetSite] {
			continue
		}
		seen[job.TargetSite] = true

		if !job.Status.IsTerminal() {
			// Still running; re-submitting would double the load
			continue
		}

		_, err := s.tracker.SubmitJob(ctx, &tracker.SubmitRequest{
			TargetSite: job.TargetSite,
			Keywords:   job.Keywords,
			Location:   job.Location,
			Device:     job.Device,
			Mode:       job.Mode,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("target_site", job.TargetSite).Msg("Refresh submission failed")
			continue
		}
		refreshed++
	}

	s.logger.Info().Int("sites", refreshed).Msg("Refresh pass completed")
}
