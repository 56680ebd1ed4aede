package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	GitHubToken string `env:"GITHUB_ACCESS_TOKEN" env-required:"true"`
	Repo        string `env:"REPO" env-default:"apache/lucene"`
	Limit       int    `env:"PR_LIMIT" env-default:"500"`
	OutputPath  string `env:"OUTPUT_PATH" env-default:"pr_metrics.csv"`
	DatabaseURL string `env:"DATABASE_URL"`
	APIURL      string `env:"GITHUB_API_URL"`
	GraphQLURL  string `env:"GITHUB_GRAPHQL_URL"`
}

// Load reads envFile into the process environment when it exists and then
// decodes the environment into a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that may have been overridden after Load.
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return errors.New("GITHUB_ACCESS_TOKEN is not set")
	}
	if _, _, err := c.OwnerRepo(); err != nil {
		return err
	}
	if c.Limit < 1 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.OutputPath == "" {
		return errors.New("output path is empty")
	}
	return nil
}

// OwnerRepo splits Repo ("owner/name").
func (c *Config) OwnerRepo() (string, string, error) {
	owner, name, ok := strings.Cut(c.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repo must be owner/name, got %q", c.Repo)
	}
	return owner, name, nil
}
