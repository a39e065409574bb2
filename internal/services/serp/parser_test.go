package serp

import (
	"testing"

	"github.com/ternarybob/gradus/internal/models"
)

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare host", "example.com", "example.com"},
		{"https scheme", "https://example.com", "example.com"},
		{"www prefix", "www.example.com", "example.com"},
		{"scheme and www", "https://www.example.com", "example.com"},
		{"mixed case", "HTTPS://WWW.Example.COM", "example.com"},
		{"path stripped", "https://example.com/some/page", "example.com"},
		{"query stripped", "https://example.com?q=1", "example.com"},
		{"fragment stripped", "https://example.com#section", "example.com"},
		{"port stripped", "example.com:8080", "example.com"},
		{"subdomain kept", "https://blog.example.com/post", "blog.example.com"},
		{"whitespace trimmed", "  example.com  ", "example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeHost(tt.input); got != tt.expected {
				t.Errorf("NormalizeHost(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHostMatches(t *testing.T) {
	tests := []struct {
		name   string
		entry  string
		target string
		want   bool
	}{
		{"exact", "https://example.com/page", "example.com", true},
		{"www vs bare", "https://www.example.com", "example.com", true},
		{"subdomain contains target", "https://blog.example.com/post", "example.com", true},
		{"target contains entry", "example.com", "blog.example.com", true},
		{"unrelated", "https://other.com", "example.com", false},
		{"empty entry", "", "example.com", false},
		{"empty target", "https://example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hostMatches(tt.entry, tt.target); got != tt.want {
				t.Errorf("hostMatches(%q, %q) = %v, want %v", tt.entry, tt.target, got, tt.want)
			}
		})
	}
}

func TestParseStandardMode(t *testing.T) {
	payload := &searchPayload{
		OrganicResults: []organicResult{
			{Position: 1, Title: "First", Link: "https://first.com/a"},
			{Position: 2, Title: "Target", Link: "https://www.example.com/landing"},
			{Position: 3, Title: "Third", Link: "https://third.com"},
		},
		SERPFeatures: []string{"featured_snippet"},
	}

	result := parsePayload(payload, "example.com", models.SearchModeStandard, 5)

	if result.Rank == nil || *result.Rank != 2 {
		t.Fatalf("expected rank 2, got %v", result.Rank)
	}
	if result.MatchedURL != "https://www.example.com/landing" {
		t.Errorf("unexpected matched URL %q", result.MatchedURL)
	}
	if len(result.Competitors) != 3 {
		t.Errorf("expected 3 competitors, got %d", len(result.Competitors))
	}
	if result.AIPanel.Present {
		t.Error("AI panel should be absent when payload has no overview")
	}
	if len(result.Features) != 1 || result.Features[0] != "featured_snippet" {
		t.Errorf("unexpected features %v", result.Features)
	}
}

func TestParseStandardModeNotFound(t *testing.T) {
	payload := &searchPayload{
		OrganicResults: []organicResult{
			{Position: 1, Title: "First", Link: "https://first.com"},
		},
	}

	result := parsePayload(payload, "example.com", models.SearchModeStandard, 5)

	if result.Rank != nil {
		t.Errorf("expected nil rank for unranked target, got %d", *result.Rank)
	}
	if result.Ranked() {
		t.Error("Ranked() should be false when target not found")
	}
}

func TestParseAIPanelModeRanksCitations(t *testing.T) {
	payload := &searchPayload{
		// Organic entries must not leak into AI-panel ranking
		OrganicResults: []organicResult{
			{Position: 1, Title: "Organic", Link: "https://example.com/organic"},
		},
		AIOverview: &aiOverview{
			Text: "Generated answer about the topic.",
			References: []aiReference{
				{Index: 0, Title: "Other", Link: "https://other.com/source"},
				{Index: 1, Title: "Target", Link: "https://example.com/cited"},
			},
		},
	}

	result := parsePayload(payload, "example.com", models.SearchModeAIPanel, 5)

	if result.Rank == nil || *result.Rank != 2 {
		t.Fatalf("expected citation rank 2, got %v", result.Rank)
	}
	if result.MatchedURL != "https://example.com/cited" {
		t.Errorf("rank must come from citations, matched %q", result.MatchedURL)
	}
	if !result.AIPanel.Present {
		t.Error("panel with text and citations should be present")
	}
	if len(result.Competitors) != 2 {
		t.Errorf("expected citation competitors, got %d", len(result.Competitors))
	}
	if result.Competitors[0].URL != "https://other.com/source" {
		t.Errorf("competitors must come from citations, got %q", result.Competitors[0].URL)
	}
}

func TestParseAIPanelModeEmptyLinkReferenceKeepsRankTight(t *testing.T) {
	payload := &searchPayload{
		AIOverview: &aiOverview{
			Text: "Generated answer about the topic.",
			References: []aiReference{
				{Index: 0, Title: "Other", Link: "https://other.com/source"},
				{Index: 1, Title: "Broken", Link: ""},
				{Index: 2, Title: "Target", Link: "https://example.com/cited"},
			},
		},
	}

	result := parsePayload(payload, "example.com", models.SearchModeAIPanel, 5)

	if result.Rank == nil || *result.Rank != 2 {
		t.Fatalf("linkless reference must not inflate rank, got %v", result.Rank)
	}
	if len(result.AIPanel.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(result.AIPanel.Citations))
	}
}

func TestParseAIPanelModeContentGated(t *testing.T) {
	tests := []struct {
		name     string
		overview *aiOverview
		present  bool
	}{
		{"nil overview", nil, false},
		{"empty overview", &aiOverview{}, false},
		{"text only", &aiOverview{Text: "answer"}, true},
		{"citations only", &aiOverview{References: []aiReference{{Link: "https://a.com"}}}, true},
		{"blocks only", &aiOverview{TextBlocks: []aiTextBlock{{Snippet: "part"}}}, true},
		{"empty blocks", &aiOverview{TextBlocks: []aiTextBlock{{Snippet: ""}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := &searchPayload{AIOverview: tt.overview}
			result := parsePayload(payload, "example.com", models.SearchModeAIPanel, 5)
			if result.AIPanel.Present != tt.present {
				t.Errorf("present = %v, want %v", result.AIPanel.Present, tt.present)
			}
		})
	}
}

func TestParseConversationalMode(t *testing.T) {
	payload := &searchPayload{
		AnswerText: "Conversational answer body.",
		OrganicResults: []organicResult{
			{Position: 1, Title: "Target", Link: "https://example.com/page"},
		},
		AIOverview: &aiOverview{
			References: []aiReference{
				{Index: 3, Title: "Source", Link: "https://source.com"},
			},
		},
	}

	result := parsePayload(payload, "example.com", models.SearchModeConversational, 5)

	if result.Rank == nil || *result.Rank != 1 {
		t.Fatalf("expected organic rank 1, got %v", result.Rank)
	}
	if !result.AIPanel.Present {
		t.Error("answer text should mark panel present")
	}
	if result.AIPanel.Content != "Conversational answer body." {
		t.Errorf("unexpected panel content %q", result.AIPanel.Content)
	}
	if len(result.AIPanel.Citations) != 1 || result.AIPanel.Citations[0].Position != 1 {
		t.Errorf("citation positions must be reassigned 1-based, got %+v", result.AIPanel.Citations)
	}
}

func TestCitationsFromReferencesReassignsPositions(t *testing.T) {
	refs := []aiReference{
		{Index: 0, Link: "https://a.com"},
		{Index: 5, Link: "https://b.com"},
		{Index: 9, Link: ""}, // skipped, no URL
		{Index: 2, Link: "https://c.com"},
	}

	citations := citationsFromReferences(refs)

	if len(citations) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(citations))
	}
	for i, c := range citations {
		if c.Position != i+1 {
			t.Errorf("citation %d has position %d, want %d", i, c.Position, i+1)
		}
	}
}

func TestOrganicCompetitorsTruncates(t *testing.T) {
	entries := []organicResult{
		{Position: 1, Title: "A", Link: "https://a.com"},
		{Position: 2, Title: "B", Link: "https://b.com"},
		{Position: 3, Title: "C", Link: "https://c.com"},
	}

	competitors := organicCompetitors(entries, 2)
	if len(competitors) != 2 {
		t.Fatalf("expected 2 competitors, got %d", len(competitors))
	}

	all := organicCompetitors(entries, 10)
	if len(all) != 3 {
		t.Errorf("count above list length should return all, got %d", len(all))
	}

	if organicCompetitors(nil, 5) != nil {
		t.Error("no entries should produce nil competitors")
	}
}

func TestRankBoundedByPayloadDepth(t *testing.T) {
	// Rank can never exceed what the provider returned
	payload := &searchPayload{
		OrganicResults: []organicResult{
			{Position: 97, Title: "Deep", Link: "https://example.com/deep"},
		},
	}

	result := parsePayload(payload, "example.com", models.SearchModeStandard, 5)
	if result.Rank == nil || *result.Rank != 97 {
		t.Fatalf("expected rank 97, got %v", result.Rank)
	}
}
