package internal

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dreamvault/internal/callout"
	"github.com/starford/dreamvault/internal/metrics"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/reconcile"
	"github.com/starford/dreamvault/internal/scrape"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig  `yaml:"app"`
	Vault       VaultConfig        `yaml:"vault"`
	SQLite      SQLiteConfig       `yaml:"sqlite"`
	Auth        AuthConfig         `yaml:"auth"`
	Scrape      ScrapeConfig       `yaml:"scrape"`
	Callouts    callout.Vocabulary `yaml:"callouts"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Frontmatter FrontmatterConfig  `yaml:"frontmatter"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Scrape.Validate(); err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	if err := validateCallouts(&c.Callouts); err != nil {
		return fmt.Errorf("callouts: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return c.Frontmatter.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ScrapeConfig holds the default document selection and batch size.
type ScrapeConfig struct {
	scrape.Selection `yaml:",inline"`
	BatchSize        int `yaml:"batch_size"`
}

// Validate validates the scrape configuration.
func (c *ScrapeConfig) Validate() error {
	if c.BatchSize == 0 {
		c.BatchSize = scrape.DefaultBatchSize
	}
	if err := c.Selection.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BatchSize, validation.Min(1), validation.Max(64)),
	)
}

// validateCallouts fills blank callout names with the defaults and rejects
// vocabularies that use one name for two block kinds.
func validateCallouts(v *callout.Vocabulary) error {
	def := callout.DefaultVocabulary()
	for _, f := range []struct {
		name *string
		def  string
	}{{&v.Journal, def.Journal}, {&v.Diary, def.Diary}, {&v.Metrics, def.Metrics}} {
		*f.name = strings.TrimSpace(*f.name)
		if *f.name == "" {
			*f.name = f.def
		}
	}
	if strings.EqualFold(v.Journal, v.Diary) || strings.EqualFold(v.Journal, v.Metrics) || strings.EqualFold(v.Diary, v.Metrics) {
		return fmt.Errorf("journal, diary and metrics callouts must have distinct names")
	}
	return nil
}

// MetricsConfig is the ordered metric vocabulary.
type MetricsConfig []models.MetricConfig

// Validate validates every metric and rejects duplicate names or
// front-matter properties.
func (c MetricsConfig) Validate() error {
	names := make(map[string]bool, len(c))
	props := make(map[string]bool, len(c))
	for i := range c {
		if err := c[i].Validate(); err != nil {
			return fmt.Errorf("metric %d: %w", i, err)
		}
		name := strings.ToLower(strings.TrimSpace(c[i].Name))
		if names[name] {
			return fmt.Errorf("duplicate metric %q", c[i].Name)
		}
		names[name] = true
		if !c[i].HasFrontmatter() {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(c[i].FrontmatterProperty))
		if props[prop] {
			return fmt.Errorf("duplicate front-matter property %q", c[i].FrontmatterProperty)
		}
		props[prop] = true
	}
	return nil
}

// FrontmatterConfig holds front-matter handling options.
type FrontmatterConfig struct {
	AutoDetectArrays bool   `yaml:"auto_detect_arrays"`
	ConflictStrategy string `yaml:"conflict_strategy"`
	WriteBack        bool   `yaml:"write_back"`
}

// Validate validates the front-matter configuration.
func (c *FrontmatterConfig) Validate() error {
	st, err := reconcile.ParseStrategy(c.ConflictStrategy)
	if err != nil {
		return fmt.Errorf("frontmatter: %w", err)
	}
	c.ConflictStrategy = string(st)
	return nil
}

// Strategy returns the parsed conflict strategy.
func (c *FrontmatterConfig) Strategy() reconcile.Strategy {
	st, _ := reconcile.ParseStrategy(c.ConflictStrategy)
	return st
}

// Options returns the metric-level front-matter options.
func (c *FrontmatterConfig) Options() metrics.FrontmatterOptions {
	return metrics.FrontmatterOptions{AutoDetectArrays: c.AutoDetectArrays}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./dreamvault.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Scrape: ScrapeConfig{
			Selection: scrape.Selection{
				Mode:      scrape.ModeFolder,
				Recursive: true,
			},
			BatchSize: scrape.DefaultBatchSize,
		},
		Callouts: callout.DefaultVocabulary(),
		Metrics: MetricsConfig{
			{Name: "Sensory Detail", FrontmatterProperty: "dream-sensory-detail", Enabled: true, Kind: models.MetricNumber, Category: "recall"},
			{Name: "Emotional Recall", FrontmatterProperty: "dream-emotional-recall", Enabled: true, Kind: models.MetricNumber, Category: "recall"},
			{Name: "Lost Segments", FrontmatterProperty: "dream-lost-segments", Enabled: true, Kind: models.MetricNumber, Category: "recall"},
			{Name: "Descriptiveness", Enabled: true, Kind: models.MetricNumber, Category: "writing"},
			{Name: "Confidence Score", FrontmatterProperty: "dream-confidence", Enabled: true, Kind: models.MetricNumber, Category: "recall"},
			{Name: "Dream Themes", FrontmatterProperty: "dream-themes", Enabled: true, Kind: models.MetricList, Category: "content"},
		},
		Frontmatter: FrontmatterConfig{
			ConflictStrategy: string(reconcile.StrategyFrontmatter),
		},
	}
}
