package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Server.Port != 8085 {
		t.Errorf("default port = %d, want 8085", config.Server.Port)
	}
	if config.Tracker.MaxKeywords != 5 {
		t.Errorf("default keyword cap = %d, want 5", config.Tracker.MaxKeywords)
	}
	if config.Tracker.BatchSize != 3 {
		t.Errorf("default batch size = %d, want 3", config.Tracker.BatchSize)
	}
	if config.Provider.RequestsPerMinute != 60 {
		t.Errorf("default request budget = %d, want 60", config.Provider.RequestsPerMinute)
	}
	if config.Provider.SearchDepth != 100 {
		t.Errorf("default search depth = %d, want 100", config.Provider.SearchDepth)
	}
	if config.Insight.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("default insight model = %q, want claude-3-5-haiku-20241022", config.Insight.Model)
	}
}

func TestLoadFromFilesOverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "gradus.toml")

	content := `
[server]
port = 9090

[tracker]
max_keywords = 10
poll_interval = "1s"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if config.Server.Port != 9090 {
		t.Errorf("file port not applied, got %d", config.Server.Port)
	}
	if config.Tracker.MaxKeywords != 10 {
		t.Errorf("file keyword cap not applied, got %d", config.Tracker.MaxKeywords)
	}
	// Untouched values keep defaults
	if config.Tracker.BatchSize != 3 {
		t.Errorf("unrelated default lost, batch size = %d", config.Tracker.BatchSize)
	}
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	tmpDir := t.TempDir()

	first := filepath.Join(tmpDir, "first.toml")
	if err := os.WriteFile(first, []byte("[server]\nport = 1111\nhost = \"first\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	second := filepath.Join(tmpDir, "second.toml")
	if err := os.WriteFile(second, []byte("[server]\nport = 2222\n"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFiles(first, second)
	if err != nil {
		t.Fatal(err)
	}

	if config.Server.Port != 2222 {
		t.Errorf("later file should win, port = %d", config.Server.Port)
	}
	if config.Server.Host != "first" {
		t.Errorf("values absent from later files must survive, host = %q", config.Server.Host)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRADUS_SERVER_PORT", "7777")
	t.Setenv("GRADUS_PROVIDER_API_KEY", "env-key")
	t.Setenv("GRADUS_TRACKER_POLL_CEILING", "90s")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatal(err)
	}

	if config.Server.Port != 7777 {
		t.Errorf("env port not applied, got %d", config.Server.Port)
	}
	if config.Provider.APIKey != "env-key" {
		t.Errorf("env API key not applied, got %q", config.Provider.APIKey)
	}
	if config.Tracker.PollCeilingDuration() != 90*time.Second {
		t.Errorf("env poll ceiling not applied, got %v", config.Tracker.PollCeilingDuration())
	}
}

func TestAnthropicKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatal(err)
	}
	if config.Insight.APIKey != "anthropic-key" {
		t.Errorf("ANTHROPIC_API_KEY fallback not applied, got %q", config.Insight.APIKey)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 4444, "0.0.0.0")
	if config.Server.Port != 4444 || config.Server.Host != "0.0.0.0" {
		t.Errorf("flag overrides not applied: %s:%d", config.Server.Host, config.Server.Port)
	}

	// Zero values leave config untouched
	ApplyFlagOverrides(config, 0, "")
	if config.Server.Port != 4444 || config.Server.Host != "0.0.0.0" {
		t.Error("zero flags must not reset config")
	}
}

func TestDurationHelpersFallBack(t *testing.T) {
	tracker := &TrackerConfig{PollInterval: "garbage", PollCeiling: ""}

	if tracker.PollIntervalDuration() != 3*time.Second {
		t.Errorf("malformed interval should fall back, got %v", tracker.PollIntervalDuration())
	}
	if tracker.PollCeilingDuration() != 5*time.Minute {
		t.Errorf("empty ceiling should fall back, got %v", tracker.PollCeilingDuration())
	}

	tracker.PollInterval = "250ms"
	if tracker.PollIntervalDuration() != 250*time.Millisecond {
		t.Errorf("valid interval not parsed, got %v", tracker.PollIntervalDuration())
	}

	insight := &InsightConfig{Timeout: "2s"}
	if insight.TimeoutDuration() != 2*time.Second {
		t.Errorf("insight timeout not parsed, got %v", insight.TimeoutDuration())
	}
}
