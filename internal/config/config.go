// Package config loads PCG Arena's runtime configuration from the
// environment with sane defaults, the way the teacher's pkg/config does.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Rating        RatingConfig
	Matchmaking   MatchmakingConfig
	Auth          AuthConfig
	Email         EmailConfig
	Identity      IdentityConfig
	Admin         AdminConfig
	Debug         bool
}

// DatabaseConfig holds SQLite connection and migration settings.
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
	SeedPath        string
}

// ServerConfig holds HTTP server and cross-cutting middleware settings.
type ServerConfig struct {
	Host                  string
	Port                  int
	PublicURL             string
	CORSAllowOrigins      string
	RateLimitBattlesNext  int
	RateLimitVotes        int
	RateLimitWindow       time.Duration
}

// RatingConfig holds Glicko-2 initial values and the volatility-change constant.
type RatingConfig struct {
	InitialRating     float64
	InitialRD         float64
	InitialVolatility float64
	Tau               float64
}

// MatchmakingConfig holds AGIS policy parameters.
type MatchmakingConfig struct {
	Policy               string // "uniform_v0" | "agis_v1"
	TargetBattlesPerPair int
	RatingSigma          float64
	QualityBias          float64
	MinGamesSignificance int
	SuggestedTimeLimit   time.Duration
	SweepInterval        time.Duration
}

// AuthConfig holds session and token lifetime settings.
type AuthConfig struct {
	SessionTTL          time.Duration
	EmailVerifyTokenTTL time.Duration
	PasswordResetTTL    time.Duration
	BcryptCost          int
}

// EmailConfig holds outbound email provider settings.
type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	From     string
	Timeout  time.Duration
}

// IdentityConfig holds external identity provider settings (e.g. Google Sign-In).
type IdentityConfig struct {
	Issuer   string
	ClientID string
	JWKSURL  string
}

// AdminConfig holds admin-gated endpoint credentials.
type AdminConfig struct {
	BearerKey string
	Emails    []string
}

// LoadConfig loads configuration from environment variables and defaults,
// using viper for automatic env binding (SERVER_PORT, DB_PATH, ...).
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)
	bindEnv(v)
	v.AutomaticEnv()

	if err := validateRequired(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Path:            v.GetString("db_path"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("db_conn_max_idle_time"),
			MigrationsPath:  v.GetString("db_migrations_path"),
			SeedPath:        v.GetString("db_seed_path"),
		},
		Server: ServerConfig{
			Host:                 v.GetString("server_host"),
			Port:                 v.GetInt("server_port"),
			PublicURL:            v.GetString("public_url"),
			CORSAllowOrigins:     v.GetString("cors_allow_origins"),
			RateLimitBattlesNext: v.GetInt("rate_limit_battles_next"),
			RateLimitVotes:       v.GetInt("rate_limit_votes"),
			RateLimitWindow:      v.GetDuration("rate_limit_window"),
		},
		Rating: RatingConfig{
			InitialRating:     v.GetFloat64("rating_initial_rating"),
			InitialRD:         v.GetFloat64("rating_initial_rd"),
			InitialVolatility: v.GetFloat64("rating_initial_volatility"),
			Tau:               v.GetFloat64("rating_tau"),
		},
		Matchmaking: MatchmakingConfig{
			Policy:               v.GetString("matchmaking_policy"),
			TargetBattlesPerPair: v.GetInt("matchmaking_target_battles_per_pair"),
			RatingSigma:          v.GetFloat64("matchmaking_rating_sigma"),
			QualityBias:          v.GetFloat64("matchmaking_quality_bias"),
			MinGamesSignificance: v.GetInt("matchmaking_min_games_significance"),
			SuggestedTimeLimit:   v.GetDuration("matchmaking_suggested_time_limit"),
			SweepInterval:        v.GetDuration("matchmaking_sweep_interval"),
		},
		Auth: AuthConfig{
			SessionTTL:          v.GetDuration("auth_session_ttl"),
			EmailVerifyTokenTTL: v.GetDuration("auth_email_verify_ttl"),
			PasswordResetTTL:    v.GetDuration("auth_password_reset_ttl"),
			BcryptCost:          v.GetInt("auth_bcrypt_cost"),
		},
		Email: EmailConfig{
			SMTPHost: v.GetString("email_smtp_host"),
			SMTPPort: v.GetInt("email_smtp_port"),
			SMTPUser: v.GetString("email_smtp_user"),
			SMTPPass: v.GetString("email_smtp_pass"),
			From:     v.GetString("email_from"),
			Timeout:  v.GetDuration("email_timeout"),
		},
		Identity: IdentityConfig{
			Issuer:   v.GetString("identity_issuer"),
			ClientID: v.GetString("identity_client_id"),
			JWKSURL:  v.GetString("identity_jwks_url"),
		},
		Admin: AdminConfig{
			BearerKey: v.GetString("admin_bearer_key"),
			Emails:    splitAndTrim(v.GetString("admin_emails")),
		},
		Debug: v.GetBool("debug"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "./data.db")
	v.SetDefault("db_max_open_conns", 5)
	v.SetDefault("db_max_idle_conns", 2)
	v.SetDefault("db_conn_max_lifetime", 5*time.Minute)
	v.SetDefault("db_conn_max_idle_time", 2*time.Minute)
	v.SetDefault("db_migrations_path", "./db/migrations")
	v.SetDefault("db_seed_path", "./seed")

	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("cors_allow_origins", "*")
	v.SetDefault("rate_limit_battles_next", 10)
	v.SetDefault("rate_limit_votes", 20)
	v.SetDefault("rate_limit_window", time.Minute)

	v.SetDefault("rating_initial_rating", 1000.0)
	v.SetDefault("rating_initial_rd", 350.0)
	v.SetDefault("rating_initial_volatility", 0.06)
	v.SetDefault("rating_tau", 0.5)

	v.SetDefault("matchmaking_policy", "agis_v1")
	v.SetDefault("matchmaking_target_battles_per_pair", 10)
	v.SetDefault("matchmaking_rating_sigma", 150.0)
	v.SetDefault("matchmaking_quality_bias", 0.2)
	v.SetDefault("matchmaking_min_games_significance", 30)
	v.SetDefault("matchmaking_suggested_time_limit", 180*time.Second)
	v.SetDefault("matchmaking_sweep_interval", 30*time.Second)

	v.SetDefault("auth_session_ttl", 30*24*time.Hour)
	v.SetDefault("auth_email_verify_ttl", 24*time.Hour)
	v.SetDefault("auth_password_reset_ttl", time.Hour)
	v.SetDefault("auth_bcrypt_cost", 12)

	v.SetDefault("email_smtp_port", 587)
	v.SetDefault("email_timeout", 10*time.Second)
	v.SetDefault("email_from", "noreply@pcgarena.dev")

	v.SetDefault("debug", false)
}

func bindEnv(v *viper.Viper) {
	keys := []string{
		"db_path", "db_max_open_conns", "db_max_idle_conns", "db_conn_max_lifetime",
		"db_conn_max_idle_time", "db_migrations_path", "db_seed_path",
		"server_host", "server_port", "public_url", "cors_allow_origins",
		"rate_limit_battles_next", "rate_limit_votes", "rate_limit_window",
		"rating_initial_rating", "rating_initial_rd", "rating_initial_volatility", "rating_tau",
		"matchmaking_policy", "matchmaking_target_battles_per_pair", "matchmaking_rating_sigma",
		"matchmaking_quality_bias", "matchmaking_min_games_significance",
		"matchmaking_suggested_time_limit", "matchmaking_sweep_interval",
		"auth_session_ttl", "auth_email_verify_ttl", "auth_password_reset_ttl", "auth_bcrypt_cost",
		"email_smtp_host", "email_smtp_port", "email_smtp_user", "email_smtp_pass", "email_from", "email_timeout",
		"identity_issuer", "identity_client_id", "identity_jwks_url",
		"admin_bearer_key", "admin_emails",
		"debug",
	}
	for _, k := range keys {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}
}

func validateRequired(v *viper.Viper) error {
	if v.GetString("admin_bearer_key") == "" && !v.GetBool("debug") {
		// A missing bearer key is not an error here in any mode; Config.Validate
		// checks admin credentials outside debug mode.
		return nil
	}
	return nil
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks cross-field requirements that LoadConfig's defaults can't
// express: outside debug mode, an admin bearer key or at least one admin
// email must be configured. Admin.Emails is only checked for presence here;
// RequireAdmin recognises admin sessions by the users.is_admin flag and
// does not read this list.
func (c *Config) Validate() error {
	if c.Debug {
		return nil
	}
	if len(c.Admin.Emails) == 0 && c.Admin.BearerKey == "" {
		return fmt.Errorf("at least one of ADMIN_BEARER_KEY or ADMIN_EMAILS must be set outside debug mode")
	}
	return nil
}
