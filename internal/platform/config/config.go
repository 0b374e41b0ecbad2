// Copyright (c) 2026 Atrium. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, chain client) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Atrium API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Cryptographic keys for session and identity signing
	SessionSecret  string `env:"SESSION_SECRET,required"`
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// Admin wallet authentication
	//
	// AdminWallets is the comma-separated allow-list of wallet addresses
	// permitted to hold admin sessions (compared case-insensitively).
	AdminWallets string `env:"ADMIN_WALLETS"`

	// DisableSignatureCheck skips cryptographic signature verification during
	// admin login and issues sessions from allow-list membership alone.
	// Insecure escape hatch for local development. Never enable in production.
	DisableSignatureCheck bool `env:"ADMIN_AUTH_DISABLE_SIGNATURE" envDefault:"false"`

	// On-chain shop integration
	RPCURL              string `env:"RPC_URL"`
	ShopContractAddress string `env:"SHOP_CONTRACT_ADDRESS"`

	// OAuth identity providers
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GithubClientID     string `env:"GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	OAuthRedirectBase  string `env:"OAUTH_REDIRECT_BASE" envDefault:"http://localhost:8080"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// AdminWalletList splits the configured allow-list into lowercased addresses.
func (c *Config) AdminWalletList() []string {
	if c.AdminWallets == "" {
		return nil
	}

	var wallets []string
	for _, entry := range strings.Split(c.AdminWallets, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" {
			wallets = append(wallets, entry)
		}
	}
	return wallets
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
