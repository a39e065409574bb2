package interfaces

import (
	"context"

	"github.com/ternarybob/gradus/internal/models"
)

// CheckStatus is the point-in-time state of an in-flight provider search
type CheckStatus string

const (
	CheckPending  CheckStatus = "pending"
	CheckComplete CheckStatus = "complete"
	CheckFailed   CheckStatus = "failed"
)

// SearchRequest describes a single keyword lookup against the provider.
type SearchRequest struct {
	Keyword  string
	Location string
	Device   models.DeviceClass
	Mode     models.SearchMode
}

// CheckOutcome is the result of checking a tracking handle. Exactly one
// of the three states applies: still computing, payload parsed into a
// canonical result, or failed with the reason captured for diagnostics.
type CheckOutcome struct {
	Status CheckStatus
	Result *models.KeywordResult // Populated when Status == CheckComplete
	Reason string                // Populated when Status == CheckFailed
}

// SearchProvider abstracts the external search API. StartSearch issues
// the provider's asynchronous variant and returns an opaque tracking
// handle immediately; CheckSearch reads that handle. Both calls pass
// through the provider's process-wide rate limiter before touching the
// network.
type SearchProvider interface {
	StartSearch(ctx context.Context, req *SearchRequest) (string, error)
	CheckSearch(ctx context.Context, handle, targetSite string, mode models.SearchMode) (*CheckOutcome, error)
}
