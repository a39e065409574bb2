package interfaces

import (
	"context"

	"github.com/ternarybob/gradus/internal/models"
)

// InsightService produces a one-sentence strategy suggestion for a
// completed keyword result. Implementations must degrade gracefully:
// any failure returns the sentinel text, never an error that could
// fail the owning job.
type InsightService interface {
	Generate(ctx context.Context, job *models.TrackingJob, result *models.KeywordResult) string
}
