package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gradus/internal/common"
	"github.com/ternarybob/gradus/internal/interfaces"
	"github.com/ternarybob/gradus/internal/models"
)

// Sentinel is the insight text recorded when generation is disabled or
// fails. Enrichment is isolated by design: a text-generation outage
// must never degrade the ranking data.
const Sentinel = "insight unavailable"

const systemPrompt = "You are an SEO analyst. Reply with exactly one short, actionable sentence. No preamble."

// Service implements the InsightService interface against the
// Anthropic Messages API.
type Service struct {
	config *common.InsightConfig
	client anthropic.Client
	logger arbor.ILogger
}

// NewService creates a new insight service. A missing API key does not
// fail construction; Generate simply degrades to the sentinel.
func NewService(config *common.InsightConfig, logger arbor.ILogger) interfaces.InsightService {
	s := &Service{
		config: config,
		logger: logger,
	}

	if config.APIKey != "" {
		s.client = anthropic.NewClient(option.WithAPIKey(config.APIKey))
	}

	return s
}

// Generate produces a one-sentence strategy suggestion for a completed
// result. Any error path returns the sentinel; errors are logged, not
// propagated, so the owning job is never affected.
func (s *Service) Generate(ctx context.Context, job *models.TrackingJob, result *models.KeywordResult) string {
	if !s.config.Enabled || s.config.APIKey == "" {
		return Sentinel
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.TimeoutDuration())
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.config.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(job, result))),
		},
	}

	resp, err := s.client.Messages.New(callCtx, params)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("keyword", result.Keyword).
			Msg("Insight generation failed, using sentinel")
		return Sentinel
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	insight := strings.TrimSpace(text.String())
	if insight == "" {
		return Sentinel
	}

	return insight
}

// BuildPrompt assembles the generation prompt from the result's
// keyword, rank, AI-panel presence and top competitor titles. This is
// the only coupling between ranking data and the text generator.
func BuildPrompt(job *models.TrackingJob, result *models.KeywordResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Site %s is tracked for the keyword %q.\n", job.TargetSite, result.Keyword)

	if result.Rank != nil {
		fmt.Fprintf(&b, "Current organic rank: %d.\n", *result.Rank)
	} else {
		b.WriteString("The site was not found in the searched result depth.\n")
	}

	if result.AIPanel.Present {
		b.WriteString("An AI answer panel is shown for this query.\n")
	} else {
		b.WriteString("No AI answer panel is shown for this query.\n")
	}

	titles := make([]string, 0, 3)
	for i, competitor := range result.Competitors {
		if i >= 3 {
			break
		}
		if competitor.Title != "" {
			titles = append(titles, competitor.Title)
		}
	}
	if len(titles) > 0 {
		fmt.Fprintf(&b, "Top competing results: %s.\n", strings.Join(titles, "; "))
	}

	b.WriteString("Suggest one concrete action to improve this keyword's visibility.")

	return b.String()
}
