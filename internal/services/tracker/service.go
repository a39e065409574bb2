package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gradus/internal/common"
	"github.com/ternarybob/gradus/internal/interfaces"
	"github.com/ternarybob/gradus/internal/models"
)

// ErrMissingCredentials indicates the provider API key is not
// configured. Surfaced synchronously at submission, before any
// tickets exist, never discovered mid-poll.
var ErrMissingCredentials = errors.New("tracker: search provider credentials are not configured")

// ValidationError wraps a request validation failure so handlers can
// map it to a client error instead of a server error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "tracker: " + e.Message
}

// SubmitRequest is the inbound job submission shape.
type SubmitRequest struct {
	TargetSite string             `json:"target_site" validate:"required"`
	Keywords   []string           `json:"keywords" validate:"required,min=1,dive,required"`
	Location   string             `json:"location"`
	Device     models.DeviceClass `json:"device" validate:"omitempty,oneof=desktop mobile"`
	Mode       models.SearchMode  `json:"mode" validate:"omitempty,oneof=standard ai_panel conversational"`
}

// Service owns the tracking job lifecycle: synchronous creation with
// status queued, then a background workflow that dispatches keyword
// searches, polls them to resolution and folds results back into the
// job until a terminal status is reached. Jobs are mutated only here;
// display collaborators read.
type Service struct {
	providerConfig *common.ProviderConfig
	trackerConfig  *common.TrackerConfig
	storage        interfaces.JobStorage
	provider       interfaces.SearchProvider
	insight        interfaces.InsightService
	events         interfaces.EventService
	logger         arbor.ILogger
	backoff        *common.BackoffConfig
	validate       *validator.Validate

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new tracker service.
func NewService(
	providerConfig *common.ProviderConfig,
	trackerConfig *common.TrackerConfig,
	storage interfaces.JobStorage,
	provider interfaces.SearchProvider,
	insightService interfaces.InsightService,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		providerConfig: providerConfig,
		trackerConfig:  trackerConfig,
		storage:        storage,
		provider:       provider,
		insight:        insightService,
		events:         eventService,
		logger:         logger,
		backoff:        common.NewDefaultBackoffConfig(),
		validate:       validator.New(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// SubmitJob validates the request and creates a tracking job with
// status queued, returning synchronously before any provider
// interaction. The background workflow then drives the job to a
// terminal status. Configuration errors (missing credentials) fail
// here, with zero tickets created.
func (s *Service) SubmitJob(ctx context.Context, req *SubmitRequest) (*models.TrackingJob, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	if s.providerConfig.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	if req.Device == "" {
		req.Device = models.DeviceDesktop
	}
	if req.Mode == "" {
		req.Mode = models.SearchModeStandard
	}

	job := &models.TrackingJob{
		ID:         common.NewJobID(),
		TargetSite: strings.TrimSpace(req.TargetSite),
		Keywords:   req.Keywords,
		Location:   req.Location,
		Device:     req.Device,
		Mode:       req.Mode,
		Status:     models.JobStatusQueued,
		Progress:   0,
		CreatedAt:  time.Now(),
	}

	if err := s.storage.InsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("target_site", job.TargetSite).
		Int("keywords", len(job.Keywords)).
		Str("mode", string(job.Mode)).
		Msg("Tracking job submitted")

	s.events.Publish(ctx, interfaces.Event{
		Type:  interfaces.EventJobCreated,
		JobID: job.ID,
		Payload: map[string]interface{}{
			"target_site": job.TargetSite,
			"keywords":    len(job.Keywords),
		},
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(job)
	}()

	return job, nil
}

// GetJob returns a job by ID.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.TrackingJob, error) {
	return s.storage.GetJob(ctx, jobID)
}

// ListJobs returns the most recent jobs.
func (s *Service) ListJobs(ctx context.Context, limit int) ([]*models.TrackingJob, error) {
	return s.storage.ListJobs(ctx, limit)
}

// DeleteJob removes a job with its tickets and results.
func (s *Service) DeleteJob(ctx context.Context, jobID string) error {
	if err := s.storage.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	s.events.Publish(ctx, interfaces.Event{
		Type:  interfaces.EventJobDeleted,
		JobID: jobID,
	})
	return nil
}

// Stop cancels all background job workflows and waits for them to
// exit. In-flight jobs are force-failed by the poll ceiling on next
// startup if the process dies before they finish.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) validateRequest(req *SubmitRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	maxKeywords := s.trackerConfig.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = 5
	}
	if len(req.Keywords) > maxKeywords {
		return &ValidationError{Message: fmt.Sprintf("at most %d keywords per job, got %d", maxKeywords, len(req.Keywords))}
	}

	seen := make(map[string]bool, len(req.Keywords))
	for _, keyword := range req.Keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			return &ValidationError{Message: "keywords must not be blank"}
		}
		if seen[normalized] {
			return &ValidationError{Message: fmt.Sprintf("duplicate keyword %q", keyword)}
		}
		seen[normalized] = true
	}

	return nil
}
