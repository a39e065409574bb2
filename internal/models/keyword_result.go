package models

import "time"

// KeywordResult is the canonical, provider-agnostic outcome for one
// keyword lookup. Produced once by the serp parser per resolved
// ticket, appended to the owning job's result collection and never
// mutated in place, except for the optional insight annotation which
// is written after the ranking data is final.
type KeywordResult struct {
	ID      string `json:"id" badgerhold:"key"`
	JobID   string `json:"job_id" badgerhold:"index"`
	Keyword string `json:"keyword"`

	// Rank is the 1-based position of the first matching entry, nil
	// when the target was not found within the searched depth. Absence
	// is a valid outcome, not an error.
	Rank       *int   `json:"rank,omitempty"`
	MatchedURL string `json:"matched_url,omitempty"`

	AIPanel     AIPanel      `json:"ai_panel"`
	Competitors []Competitor `json:"competitors,omitempty"`
	Features    []string     `json:"features,omitempty"` // SERP feature tags, e.g. "featured_snippet"

	Insight string `json:"insight,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Ranked reports whether the target site was found in the results.
func (r *KeywordResult) Ranked() bool {
	return r.Rank != nil
}

// AIPanel describes the provider's generated-answer block for a query.
// Present is content-gated: it is false unless the payload actually
// contained panel text or citations for the requested mode.
type AIPanel struct {
	Present   bool       `json:"present"`
	Content   string     `json:"content,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
}

// Citation is a source referenced inside an AI panel. Citations are
// the ranking basis in AI-panel mode.
type Citation struct {
	Position int    `json:"position"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url"`
}

// Competitor is one of the top entries on the results page, recorded
// independent of whether the target site matched.
type Competitor struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet,omitempty"`
}
