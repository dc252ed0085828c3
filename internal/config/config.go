// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	custom_errors "commit-ingester/internal/errors"
)

// MaxPageSize is the largest per_page value the GitHub API accepts.
const MaxPageSize = 100

// Config holds all configuration for the application.
type Config struct {
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DBURL             string        `mapstructure:"DB_URL"`
	GithubToken       string        `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL      string        `mapstructure:"GITHUB_API_URL"`
	Repository        string        `mapstructure:"REPOSITORY"`
	ProjectID         string        `mapstructure:"PROJECT_ID"`
	SinceDate         string        `mapstructure:"SINCE_DATE"`
	PageSize          int           `mapstructure:"PAGE_SIZE"`
	QuotaSafetyMargin time.Duration `mapstructure:"QUOTA_SAFETY_MARGIN"`
	RequestsPerSecond float64       `mapstructure:"REQUESTS_PER_SECOND"`
	DetailConcurrency int           `mapstructure:"DETAIL_CONCURRENCY"`
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`

	Owner     string    `mapstructure:"-"`
	Repo      string    `mapstructure:"-"`
	SinceTime time.Time `mapstructure:"-"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REPOSITORY", "microsoft/vscode")
	v.SetDefault("SINCE_DATE", "2018-01-01T00:00:00Z")
	v.SetDefault("PAGE_SIZE", MaxPageSize)
	v.SetDefault("QUOTA_SAFETY_MARGIN", "5s")
	v.SetDefault("REQUESTS_PER_SECOND", 0)
	v.SetDefault("DETAIL_CONCURRENCY", 1)

	// Unmarshal only sees keys viper knows about; register the optional ones so AutomaticEnv picks them up.
	for _, key := range []string{"DB_URL", "GITHUB_TOKEN", "GITHUB_API_URL", "PROJECT_ID", "HTTP_ADDR"} {
		v.SetDefault(key, "")
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	parsedTime, err := time.Parse(time.RFC3339, cfg.SinceDate)
	if err != nil {
		return nil, errors.New("SINCE_DATE must be in RFC3339 format (e.g. 2018-01-01T00:00:00Z)")
	}
	cfg.SinceTime = parsedTime

	owner, repo, err := ParseRepository(cfg.Repository)
	if err != nil {
		return nil, err
	}
	cfg.Owner, cfg.Repo = owner, repo
	if cfg.ProjectID == "" {
		cfg.ProjectID = repo
	}

	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}
	if cfg.DetailConcurrency < 1 {
		cfg.DetailConcurrency = 1
	}
	if cfg.QuotaSafetyMargin < 0 {
		cfg.QuotaSafetyMargin = 0
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}

	return &cfg, nil
}

// ParseRepository splits an "owner/name" string.
func ParseRepository(r string) (owner, name string, err error) {
	parts := strings.Split(r, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &custom_errors.ErrInvalidRepoFormat{Repo: r}
	}
	return parts[0], parts[1], nil
}
