package config

import (
	"errors"
	"fmt"
)

// Config stores the simulation runtime configuration. It is built once in
// cmd and passed into constructors; nothing reads the environment after
// startup.
type Config struct {
	Production bool

	Provider       string
	TweetsPerYear  int
	DigestInterval int

	GitHubToken string
	GitHubOwner string
	GitHubRepo  string

	TwitterBearerToken string

	// PostToTwitter gates the external publish call; disabled outside
	// production so dev cycles only touch the store.
	PostToTwitter bool
}

// Load reads the simulation configuration from environment variables.
// Flag values override the corresponding fields afterwards.
func Load(production bool) Config {
	return Config{
		Production:         production,
		Provider:           GetEnv("AI_PROVIDER", "xai"),
		TweetsPerYear:      GetEnvInt("TWEETS_PER_YEAR", 96),
		DigestInterval:     GetEnvInt("DIGEST_INTERVAL", 16),
		GitHubToken:        GetEnv("GITHUB_TOKEN", ""),
		GitHubOwner:        GetEnv("GITHUB_OWNER", ""),
		GitHubRepo:         GetEnv("GITHUB_REPO", ""),
		TwitterBearerToken: GetEnv("TWITTER_BEARER_TOKEN", ""),
		PostToTwitter:      production,
	}
}

// Env returns the store namespace segment for this configuration.
func (c Config) Env() string {
	if c.Production {
		return "prod"
	}
	return "dev"
}

// Validate reports fatal configuration problems. These abort the invocation
// immediately; there is no point retrying a cycle without credentials.
func (c Config) Validate() error {
	if c.GitHubToken == "" {
		return errors.New("GITHUB_TOKEN is required")
	}
	if c.GitHubOwner == "" || c.GitHubRepo == "" {
		return errors.New("GITHUB_OWNER and GITHUB_REPO are required")
	}
	if c.TweetsPerYear <= 0 {
		return fmt.Errorf("tweets per year must be positive, got %d", c.TweetsPerYear)
	}
	if c.DigestInterval <= 0 {
		return fmt.Errorf("digest interval must be positive, got %d", c.DigestInterval)
	}
	if c.PostToTwitter && c.TwitterBearerToken == "" {
		return errors.New("TWITTER_BEARER_TOKEN is required when posting is enabled")
	}
	return nil
}
