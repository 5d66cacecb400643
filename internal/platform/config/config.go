// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

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
  - DI-Friendly: Passed to core components (stores, mailer, token service) via constructors.
  - Fail Fast: A missing JWT_SECRET aborts startup instead of failing per request.
*/
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
)

// Mail channels accepted by RESET_EMAIL_CHANNEL.
const (
	MailChannelPrimary   = "primary"
	MailChannelSecondary = "secondary"
)

// # Configuration Schema

// SMTP describes one outbound mail account.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT"   envDefault:"587"`
	Secure   bool   `env:"SECURE" envDefault:"false"`
	User     string `env:"USER"`
	Password string `env:"PASS"`
	From     string `env:"FROM"`
}

// Configured reports whether the account has enough settings to authenticate.
func (s SMTP) Configured() bool {
	return s.Host != "" && s.User != "" && s.Password != ""
}

// Config holds all runtime configuration for the StorageUp API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// StoreDriver selects the credential store backend.
	StoreDriver  string        `env:"STORE_DRIVER"  envDefault:"mongo"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// Document Database (MongoDB)
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"storageup"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL"`

	// Key-Value Cache (Redis). Optional: forgot-password limits fall back to
	// per-process counters without it.
	RedisURL string `env:"REDIS_URL"`

	// Session signing
	JWTSecret  string        `env:"JWT_SECRET,required"`
	JWTExpire  time.Duration `env:"JWT_EXPIRE"  envDefault:"168h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`

	// Password recovery
	ResetTokenExpireMinutes int           `env:"PASSWORD_RESET_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	ForgotPasswordLimit     int           `env:"FORGOT_PASSWORD_LIMIT"               envDefault:"5"`
	ForgotPasswordWindow    time.Duration `env:"FORGOT_PASSWORD_WINDOW"              envDefault:"15m"`
	ClientURL               string        `env:"CLIENT_URL"                          envDefault:"http://localhost:3000"`

	// Outbound email
	EmailFrom         string `env:"EMAIL_FROM"          envDefault:"StorageUp Dev <no-reply@storageup.dev>"`
	PrimarySMTP       SMTP   `envPrefix:"SMTP_"`
	SecondarySMTP     SMTP   `envPrefix:"SECONDARY_SMTP_"`
	ResetEmailChannel string `env:"RESET_EMAIL_CHANNEL" envDefault:"primary"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreDriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE_DRIVER=mongo"))
		}
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver))
	}

	if c.ResetEmailChannel != MailChannelPrimary && c.ResetEmailChannel != MailChannelSecondary {
		errs = append(errs, fmt.Errorf("unsupported RESET_EMAIL_CHANNEL %q", c.ResetEmailChannel))
	}

	if c.ResetTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("PASSWORD_RESET_TOKEN_EXPIRE_MINUTES must be positive"))
	}

	if c.JWTExpire <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRE must be positive"))
	}

	if c.ForgotPasswordLimit <= 0 || c.ForgotPasswordWindow <= 0 {
		errs = append(errs, errors.New("FORGOT_PASSWORD_LIMIT and FORGOT_PASSWORD_WINDOW must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ResetTokenTTL returns the lifetime of a password reset ticket.
func (c *Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenExpireMinutes) * time.Minute
}

// ResetSMTP returns the mail account selected for password reset emails.
func (c *Config) ResetSMTP() SMTP {
	account := c.PrimarySMTP
	if c.ResetEmailChannel == MailChannelSecondary {
		account = c.SecondarySMTP
	}
	if account.From == "" {
		account.From = c.EmailFrom
	}
	return account
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
