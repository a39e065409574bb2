package serp

import (
	"strings"

	"github.com/ternarybob/gradus/internal/models"
)

// defaultCompetitorCount is how many top entries are recorded per
// result when no override is configured.
const defaultCompetitorCount = 5

// NormalizeHost reduces a raw URL or hostname to a bare, lowercase
// host: scheme, "www." prefix, path, query and port are stripped.
// "https://www.Example.com/page" and "example.com" normalize to the
// same string.
func NormalizeHost(raw string) string {
	host := strings.TrimSpace(strings.ToLower(raw))

	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	host = strings.TrimPrefix(host, "www.")

	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}

	return host
}

// hostMatches reports whether an entry URL belongs to the target site.
// Matching is substring containment in either direction on normalized
// hosts, which covers subdomains (blog.example.com vs example.com).
// Known imprecision: very short hostnames can false-positive; this
// mirrors long-standing matching behavior and is deliberately kept.
func hostMatches(entryURL, target string) bool {
	entryHost := NormalizeHost(entryURL)
	targetHost := NormalizeHost(target)

	if entryHost == "" || targetHost == "" {
		return false
	}

	return strings.Contains(entryHost, targetHost) || strings.Contains(targetHost, entryHost)
}

// parsePayload maps a completed provider payload into the canonical
// result shape for the given search mode. Each mode has its own
// explicit parse path; absent fields mean absent data, never assumed
// presence.
func parsePayload(payload *searchPayload, targetSite string, mode models.SearchMode, competitorCount int) *models.KeywordResult {
	if competitorCount <= 0 {
		competitorCount = defaultCompetitorCount
	}

	result := &models.KeywordResult{
		Features: payload.SERPFeatures,
	}

	switch mode {
	case models.SearchModeAIPanel:
		parseAIPanelMode(payload, targetSite, competitorCount, result)
	case models.SearchModeConversational:
		parseConversationalMode(payload, targetSite, competitorCount, result)
	default:
		parseStandardMode(payload, targetSite, competitorCount, result)
	}

	return result
}

// parseStandardMode ranks the target against the organic results list.
// The AI panel is reported as present only when the payload carried an
// answer block with non-empty text.
func parseStandardMode(payload *searchPayload, targetSite string, competitorCount int, result *models.KeywordResult) {
	rankOrganic(payload.OrganicResults, targetSite, result)
	result.Competitors = organicCompetitors(payload.OrganicResults, competitorCount)
	result.AIPanel = panelFromOverview(payload.AIOverview)
}

// parseAIPanelMode ranks the target against the panel's citation list.
// Presence is content-gated: when the provider returned neither panel
// text nor citations, present stays false even though AI mode was
// requested.
func parseAIPanelMode(payload *searchPayload, targetSite string, competitorCount int, result *models.KeywordResult) {
	panel := panelFromOverview(payload.AIOverview)
	result.AIPanel = panel

	for _, citation := range panel.Citations {
		if hostMatches(citation.URL, targetSite) {
			rank := citation.Position
			result.Rank = &rank
			result.MatchedURL = citation.URL
			break
		}
	}

	result.Competitors = citationCompetitors(panel.Citations, competitorCount)
}

// parseConversationalMode derives rank from any organic entries that
// arrived alongside the conversational answer. The answer text itself
// has no rank, only presence.
func parseConversationalMode(payload *searchPayload, targetSite string, competitorCount int, result *models.KeywordResult) {
	rankOrganic(payload.OrganicResults, targetSite, result)
	result.Competitors = organicCompetitors(payload.OrganicResults, competitorCount)

	if payload.AnswerText != "" {
		result.AIPanel = models.AIPanel{
			Present: true,
			Content: payload.AnswerText,
		}
		if payload.AIOverview != nil {
			result.AIPanel.Citations = citationsFromReferences(payload.AIOverview.References)
		}
	} else {
		result.AIPanel = panelFromOverview(payload.AIOverview)
	}
}

// rankOrganic finds the first organic entry matching the target and
// records its 1-based position. No match leaves the rank nil: not
// found within the searched depth is a valid outcome, not an error.
func rankOrganic(entries []organicResult, targetSite string, result *models.KeywordResult) {
	for _, entry := range entries {
		if hostMatches(entry.Link, targetSite) {
			rank := entry.Position
			if rank <= 0 {
				continue
			}
			result.Rank = &rank
			result.MatchedURL = entry.Link
			return
		}
	}
}

// panelFromOverview builds the canonical AI panel from the provider's
// answer block. Present is true only when actual content exists:
// non-empty text, at least one sub-block snippet, or citations.
func panelFromOverview(overview *aiOverview) models.AIPanel {
	if overview == nil {
		return models.AIPanel{Present: false}
	}

	content := overview.Text
	if content == "" && len(overview.TextBlocks) > 0 {
		var parts []string
		for _, block := range overview.TextBlocks {
			if block.Snippet != "" {
				parts = append(parts, block.Snippet)
			}
		}
		content = strings.Join(parts, "\n")
	}

	citations := citationsFromReferences(overview.References)

	if content == "" && len(citations) == 0 {
		return models.AIPanel{Present: false}
	}

	return models.AIPanel{
		Present:   true,
		Content:   content,
		Citations: citations,
	}
}

// citationsFromReferences converts provider reference entries into
// 1-based positioned citations, preserving provider order. Providers
// index references from zero or one inconsistently; positions are
// reassigned sequentially so rank detection never depends on which
// convention the payload used.
func citationsFromReferences(refs []aiReference) []models.Citation {
	if len(refs) == 0 {
		return nil
	}

	citations := make([]models.Citation, 0, len(refs))
	for _, ref := range refs {
		if ref.Link == "" {
			continue
		}
		citations = append(citations, models.Citation{
			Position: len(citations) + 1,
			Title:    ref.Title,
			URL:      ref.Link,
		})
	}
	return citations
}

// organicCompetitors records the top organic entries with their
// 1-based position, independent of whether the target matched.
func organicCompetitors(entries []organicResult, count int) []models.Competitor {
	if len(entries) == 0 {
		return nil
	}
	if count > len(entries) {
		count = len(entries)
	}

	competitors := make([]models.Competitor, 0, count)
	for _, entry := range entries[:count] {
		competitors = append(competitors, models.Competitor{
			Position: entry.Position,
			Title:    entry.Title,
			URL:      entry.Link,
			Snippet:  entry.Snippet,
		})
	}
	return competitors
}

// citationCompetitors records the top citations as competitors in
// AI-panel mode, where citations are the ranking basis.
func citationCompetitors(citations []models.Citation, count int) []models.Competitor {
	if len(citations) == 0 {
		return nil
	}
	if count > len(citations) {
		count = len(citations)
	}

	competitors := make([]models.Competitor, 0, count)
	for _, citation := range citations[:count] {
		competitors = append(competitors, models.Competitor{
			Position: citation.Position,
			Title:    citation.Title,
			URL:      citation.URL,
		})
	}
	return competitors
}
