package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Names of the settings files the loader looks for. The local file is
// uncommitted and wins over the base file on key collision.
const (
	BaseSettingsFile  = "settings.yaml"
	LocalSettingsFile = "settings.local.yaml"
)

// envPrefix is the prefix of every environment variable the harness reads.
const envPrefix = "AM"

// Config is the complete harness configuration. It is built once by Load
// and passed by pointer to the client, the fixture coordinator, and the
// test suites; nothing mutates it afterwards.
type Config struct {
	// BaseURL is the remote API root, including any version prefix.
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	// CustomerCode identifies the organization on every call.
	CustomerCode string `yaml:"customer_code" envconfig:"CUSTOMER_CODE" validate:"required"`
	// SourceTeamID is the team whose licenses tests assign and revoke.
	SourceTeamID int `yaml:"source_team_id" envconfig:"SOURCE_TEAM_ID" validate:"required,gt=0"`
	// TargetTeamID is the team cross-team-transfer tests move licenses to.
	TargetTeamID int `yaml:"target_team_id" envconfig:"TARGET_TEAM_ID" validate:"required,gt=0,nefield=SourceTeamID"`
	// ProductCode is the product used by assign-from-pool scenarios.
	ProductCode string `yaml:"product_code" envconfig:"PRODUCT_CODE" validate:"required"`

	TestUser TestUser      `yaml:"test_user" envconfig:"TEST_USER"`
	HTTP     HTTPConfig    `yaml:"http" envconfig:"HTTP"`
	Logging  LoggingConfig `yaml:"logging" envconfig:"LOGGING"`

	// CustomerAPIKey is the organization-scoped credential. Environment
	// only; required for every test.
	CustomerAPIKey string `yaml:"-" envconfig:"CUSTOMER_API_KEY" validate:"required"`
	// TeamAPIKey is the optional team-scoped credential used by the
	// cross-team-access negative tests; when absent those tests skip.
	TeamAPIKey string `yaml:"-" envconfig:"TEAM_API_KEY"`
}

// TestUser is the contact licenses are assigned to during tests.
type TestUser struct {
	Email     string `yaml:"email" envconfig:"EMAIL" validate:"required,email"`
	FirstName string `yaml:"first_name" envconfig:"FIRST_NAME"`
	LastName  string `yaml:"last_name" envconfig:"LAST_NAME"`
}

// HTTPConfig tunes the typed client.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	// RateLimitRPS caps the request rate so suites stay under the
	// vendor's rate limit.
	RateLimitRPS float64 `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateBurst    int     `yaml:"rate_burst" envconfig:"RATE_BURST"`
	MaxRetries   uint64  `yaml:"max_retries" envconfig:"MAX_RETRIES"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Default returns the built-in defaults the settings files and environment
// are layered over.
func Default() Config {
	return Config{
		TestUser: TestUser{
			FirstName: "Integration",
			LastName:  "Test",
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			RateLimitRPS: 5,
			RateBurst:    5,
			MaxRetries:   3,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/harness.log",
		},
	}
}

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	dirs []string
}

// WithDir restricts the settings-file search to a single directory. Tests
// use it to point Load at a temp dir.
func WithDir(dir string) Option {
	return func(o *loadOptions) {
		o.dirs = []string{dir}
	}
}

// Load builds the configuration: defaults, then settings.yaml, then
// settings.local.yaml, then AM_* environment variables, then validation.
// The base file is required; the local file is optional.
func Load(opts ...Option) (*Config, error) {
	lo := loadOptions{dirs: defaultSearchDirs()}
	for _, opt := range opts {
		opt(&lo)
	}

	dir, err := findSettingsDir(lo.dirs)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := loadFile(filepath.Join(dir, BaseSettingsFile), &cfg); err != nil {
		return nil, fmt.Errorf("load %s: %w", BaseSettingsFile, err)
	}

	localPath := filepath.Join(dir, LocalSettingsFile)
	if _, err := os.Stat(localPath); err == nil {
		// Override file wins on key collision: unmarshaling into the
		// already-populated struct only touches keys the file sets.
		if err := loadFile(localPath, &cfg); err != nil {
			return nil, fmt.Errorf("load %s: %w", LocalSettingsFile, err)
		}
	}

	// Environment last: secrets live here, and any AM_* variable beats
	// both files.
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFile unmarshals a YAML settings file over the current struct state.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// defaultSearchDirs mirrors where test binaries actually run from: the repo
// root for cmd binaries, two or three levels down for package tests.
func defaultSearchDirs() []string {
	return []string{".", "..", "../..", "../../.."}
}

func findSettingsDir(dirs []string) (string, error) {
	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, BaseSettingsFile)); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%s not found in any of %v", BaseSettingsFile, dirs)
}

func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit must be positive, got %v", c.HTTP.RateLimitRPS)
	}
	return nil
}

// HasTeamKey reports whether the optional team-scoped credential is
// configured. Cross-team-scope negative tests skip when it is not.
func (c *Config) HasTeamKey() bool {
	return c.TeamAPIKey != ""
}
