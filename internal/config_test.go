package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/dreamvault/internal/callout"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/reconcile"
	"github.com/starford/dreamvault/internal/scrape"
	pkgconfig "github.com/starford/dreamvault/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Scrape.BatchSize != 5 {
		t.Errorf("batch size = %d, want 5", cfg.Scrape.BatchSize)
	}
	if cfg.Frontmatter.Strategy() != reconcile.StrategyFrontmatter {
		t.Errorf("strategy = %q", cfg.Frontmatter.Strategy())
	}
}

func TestScrapeConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ScrapeConfig
		wantErr bool
	}{
		{"folder", ScrapeConfig{Selection: scrape.Selection{Mode: scrape.ModeFolder}}, false},
		{"notes", ScrapeConfig{Selection: scrape.Selection{Mode: scrape.ModeNotes, Notes: []string{"a.md"}}}, false},
		{"missing mode", ScrapeConfig{}, true},
		{"unknown mode", ScrapeConfig{Selection: scrape.Selection{Mode: "vault"}}, true},
		{"negative cap", ScrapeConfig{Selection: scrape.Selection{Mode: scrape.ModeFolder, MaxDocuments: -1}}, true},
		{"huge batch", ScrapeConfig{Selection: scrape.Selection{Mode: scrape.ModeFolder}, BatchSize: 1000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScrapeConfig_DefaultBatchSize(t *testing.T) {
	cfg := ScrapeConfig{Selection: scrape.Selection{Mode: scrape.ModeFolder}}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.BatchSize != scrape.DefaultBatchSize {
		t.Errorf("batch size = %d, want %d", cfg.BatchSize, scrape.DefaultBatchSize)
	}
}

func TestCallouts_BlankNamesDefault(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Callouts = callout.Vocabulary{Diary: "  dream  "}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	want := callout.Vocabulary{Journal: "journal-entry", Diary: "dream", Metrics: "dream-metrics"}
	if cfg.Callouts != want {
		t.Errorf("callouts = %+v, want %+v", cfg.Callouts, want)
	}

	cfg.Callouts = callout.Vocabulary{Journal: "dream", Diary: "Dream"}
	if err := cfg.Validate(); err == nil {
		t.Error("duplicate callout names should fail")
	}
}

func TestMetricsConfig_Validation(t *testing.T) {
	ok := MetricsConfig{
		{Name: "Clarity", FrontmatterProperty: "clarity", Enabled: true},
		{Name: "Themes", Enabled: true, Kind: models.MetricList},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid metrics: %v", err)
	}
	if ok[0].Kind != models.MetricNumber {
		t.Errorf("kind = %q, want number default", ok[0].Kind)
	}

	bad := map[string]MetricsConfig{
		"missing name":   {{Enabled: true}},
		"unknown kind":   {{Name: "X", Kind: "color"}},
		"duplicate name": {{Name: "Clarity"}, {Name: "clarity "}},
		"duplicate prop": {{Name: "A", FrontmatterProperty: "p"}, {Name: "B", FrontmatterProperty: "P"}},
	}
	for name, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFrontmatterConfig_Strategy(t *testing.T) {
	cfg := FrontmatterConfig{ConflictStrategy: " Callout "}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Strategy() != reconcile.StrategyCallout {
		t.Errorf("strategy = %q", cfg.Strategy())
	}

	cfg = FrontmatterConfig{ConflictStrategy: "vote"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown strategy should fail")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("DREAMVAULT_TEST_TOKEN", "s3cret")
	yml := `
app:
  http:
    port: 9090
vault:
  path: ./journal
sqlite:
  path: ./journal.db
auth:
  mode: token
  token: ${DREAMVAULT_TEST_TOKEN}
scrape:
  selection_mode: notes
  notes: [Dreams/2025.md]
  batch_size: 3
metrics:
  - name: Clarity
    frontmatter_property: clarity
    enabled: true
frontmatter:
  conflict_strategy: newest
  write_back: true
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Token != "s3cret" || cfg.App.HTTP.Port != 9090 {
		t.Errorf("auth = %+v, http = %+v", cfg.Auth, cfg.App.HTTP)
	}
	if cfg.Scrape.Mode != scrape.ModeNotes || cfg.Scrape.BatchSize != 3 || len(cfg.Scrape.Notes) != 1 {
		t.Errorf("scrape = %+v", cfg.Scrape)
	}
	if len(cfg.Metrics) != 1 || cfg.Metrics[0].Kind != models.MetricNumber {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if cfg.Callouts != callout.DefaultVocabulary() {
		t.Errorf("callouts = %+v", cfg.Callouts)
	}
	if cfg.Frontmatter.Strategy() != reconcile.StrategyNewest || !cfg.Frontmatter.WriteBack {
		t.Errorf("frontmatter = %+v", cfg.Frontmatter)
	}
}
