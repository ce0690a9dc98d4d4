// Package config loads all runtime configuration for mendeley-cli from
// environment variables (optionally seeded from a .env file).
package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for mendeley-cli.
//
// A persisted token (MENDELEY_OAUTH2_TOKEN_BASE64) is the only state the
// CLI carries between invocations; everything else is supplied fresh on
// every run.
type Config struct {
	// OAuth2 client credentials. ClientSecret is only required for the
	// authorization-code flow used by 'get token'.
	ClientID     string `env:"MENDELEY_CLIENT_ID"`
	ClientSecret string `env:"MENDELEY_CLIENT_SECRET"`

	// Registered redirect URI. The interactive login listens on its
	// host:port for the browser callback.
	RedirectURI string `env:"MENDELEY_REDIRECT_URI"`

	// Resource-owner credentials for the implicit grant flow. When
	// Username is set but Password is empty, the CLI prompts on the
	// terminal.
	Username string `env:"MENDELEY_USERNAME"`
	Password string `env:"MENDELEY_PASSWORD"`

	// Base64-encoded JSON token printed by 'get token'.
	TokenBase64 string `env:"MENDELEY_OAUTH2_TOKEN_BASE64"`

	// Optional path to a bbolt database. When set, 'get token' saves the
	// issued token there, session restore falls back to it, and tokens
	// rotated by an in-process refresh are written back.
	TokenStorePath string `env:"MENDELEY_TOKEN_STORE"`

	// Endpoint overrides, used by tests.
	APIURL   string `env:"MENDELEY_API_URL" envDefault:"https://api.mendeley.com"`
	AuthURL  string `env:"MENDELEY_AUTH_URL" envDefault:"https://api.mendeley.com/oauth/authorize"`
	TokenURL string `env:"MENDELEY_TOKEN_URL" envDefault:"https://api.mendeley.com/oauth/token"`

	// Bound on the interactive login's wait for the browser callback.
	LoginTimeout time.Duration `env:"MENDELEY_LOGIN_TIMEOUT" envDefault:"3m"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.LoginTimeout <= 0 {
		return nil, fmt.Errorf("MENDELEY_LOGIN_TIMEOUT must be positive, got %s", cfg.LoginTimeout)
	}

	return cfg, nil
}

// ValidateSession checks the variables every API-calling command needs.
// The token itself is resolved later; a missing token surfaces as a
// "login required" error at session construction.
func (c *Config) ValidateSession() error {
	if c.ClientID == "" {
		return fmt.Errorf("MENDELEY_CLIENT_ID is required")
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("MENDELEY_REDIRECT_URI is required")
	}

	return nil
}

// ValidateLogin checks the variables the authorization-code login flow
// ('get token') needs on top of ValidateSession.
func (c *Config) ValidateLogin() error {
	if err := c.ValidateSession(); err != nil {
		return err
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("MENDELEY_CLIENT_SECRET is required for the authorization-code flow")
	}

	return nil
}
