package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/api/service"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/transportx"
	"github.com/spf13/viper"
)

// Viper keys. Environment variables are the upper-cased key with "." as "_",
// so jwt.secret is read from JWT_SECRET.
const (
	KeyJWTSecret            = "jwt.secret"
	KeyJWTIssuer            = "jwt.issuer"
	KeyJWTAudience          = "jwt.audience"
	KeyJWTTokenExpiration   = "jwt.token_expiration_minutes"
	KeyJWTRefreshExpiration = "jwt.refresh_token_expiration_days"
	KeyJWTLeeway            = "jwt.leeway"

	KeyHTTPRetryCount      = "http.retry_count"
	KeyHTTPRetryTimeout    = "http.retry_timeout"
	KeyHTTPRetryDelay      = "http.retry_delay_seconds"
	KeyHTTPBackoff         = "http.backoff"
	KeyHTTPRetryOnNotFound = "http.retry_on_not_found"

	KeyEnv                 = "env"
	KeyLogLevel            = "log_level"
	KeyLogFormat           = "log_format"
	KeyPort                = "port"
	KeyDatabaseFile        = "database_file"
	KeyPepperFile          = "pepper_file"
	KeyShutdownGracePeriod = "shutdown_grace_period"
	KeyVersionSyncInterval = "version_sync_interval"
	KeyCatFactsURL         = "misc_cat_facts_url"
	KeyMetricsEnabled      = "metrics_enabled"
	KeyRateLimitEnabled    = "rate_limit.enabled"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// MinSecretBytes is the shortest accepted HS256 secret.
const MinSecretBytes = 32

type Config struct {
	JWT        JWTConfig
	HTTP       OutboundConfig
	RateLimits httpx.RateLimitProfiles

	DatabaseFile        string        // SQLite database path (default: gatekeep.db)
	PepperFile          string        // Password pepper, created on first run (default: pepper)
	Env                 string        // dev, staging, prod (default: dev)
	LogLevel            string        // debug, info, warn, error (default: info)
	LogFormat           string        // json, text (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	VersionSyncInterval time.Duration // Revocation registry flush interval (default: 30s)
	CatFactsURL         string        // Upstream for GET /misc/cat-facts
	MetricsEnabled      bool          // Serve GET /metrics (default: true)
}

// JWTConfig carries the token authority settings.
type JWTConfig struct {
	Secret                     string
	Issuer                     string
	Audience                   string
	TokenExpirationMinutes     int
	RefreshTokenExpirationDays int
	Leeway                     time.Duration
}

func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.TokenExpirationMinutes) * time.Minute
}

func (c JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpirationDays) * 24 * time.Hour
}

// OutboundConfig drives the retrying transport used for third-party calls.
type OutboundConfig struct {
	RetryCount      int           // Total attempts, the first included
	RetryTimeout    time.Duration // Overall budget for one call
	RetryDelay      time.Duration // Fixed delay, or the exponential unit
	Backoff         string        // fixed or exponential
	RetryOnNotFound bool          // Treat 404 as transient
}

// Transport converts c into a transportx.Config.
func (c OutboundConfig) Transport() transportx.Config {
	backoff := transportx.Fixed(c.RetryDelay)
	if c.Backoff == BackoffExponential {
		backoff = transportx.Exponential(c.RetryDelay, c.RetryTimeout)
	}

	policy := transportx.DefaultPolicy()
	if c.RetryOnNotFound {
		policy = policy.WithNotFound()
	}

	return transportx.Config{
		MaxAttempts: c.RetryCount,
		Timeout:     c.RetryTimeout,
		Backoff:     backoff,
		Policy:      policy,
	}
}

// NewViper returns a viper instance with every default registered and the
// environment overlay enabled.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyJWTSecret, "")
	v.SetDefault(KeyJWTIssuer, "gatekeep")
	v.SetDefault(KeyJWTAudience, "gatekeep-clients")
	v.SetDefault(KeyJWTTokenExpiration, int(jwtx.DefaultAccessTokenTTL/time.Minute))
	v.SetDefault(KeyJWTRefreshExpiration, int(jwtx.DefaultRefreshTokenTTL/(24*time.Hour)))
	v.SetDefault(KeyJWTLeeway, "0s")

	v.SetDefault(KeyHTTPRetryCount, transportx.DefaultMaxAttempts)
	v.SetDefault(KeyHTTPRetryTimeout, int(transportx.DefaultTimeout/time.Second))
	v.SetDefault(KeyHTTPRetryDelay, int(transportx.DefaultRetryDelay/time.Second))
	v.SetDefault(KeyHTTPBackoff, BackoffFixed)
	v.SetDefault(KeyHTTPRetryOnNotFound, false)

	v.SetDefault(KeyEnv, "dev")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDatabaseFile, "gatekeep.db")
	v.SetDefault(KeyPepperFile, "pepper")
	v.SetDefault(KeyShutdownGracePeriod, "10s")
	v.SetDefault(KeyVersionSyncInterval, service.DefaultVersionSyncInterval.String())
	v.SetDefault(KeyCatFactsURL, service.DefaultCatFactsURL)
	v.SetDefault(KeyMetricsEnabled, true)

	v.SetDefault(KeyRateLimitEnabled, true)
	defaults := httpx.DefaultRateLimitProfiles()
	for name, rl := range map[string]httpx.RateLimitConfig{
		"strict":   defaults.Strict,
		"moderate": defaults.Moderate,
		"lenient":  defaults.Lenient,
		"public":   defaults.Public,
	} {
		v.SetDefault("rate_limit."+name+".requests", rl.RequestsPerWindow)
		v.SetDefault("rate_limit."+name+".window", rl.Window.String())
		v.SetDefault("rate_limit."+name+".burst", rl.Burst)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig reads the optional YAML file at path, overlays the environment
// and returns the typed configuration. It does not validate.
func LoadConfig(path string) (Config, error) {
	v := NewViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return FromViper(v), nil
}

// FromViper extracts a Config from v.
func FromViper(v *viper.Viper) Config {
	cfg := Config{
		JWT: JWTConfig{
			Secret:                     v.GetString(KeyJWTSecret),
			Issuer:                     v.GetString(KeyJWTIssuer),
			Audience:                   v.GetString(KeyJWTAudience),
			TokenExpirationMinutes:     v.GetInt(KeyJWTTokenExpiration),
			RefreshTokenExpirationDays: v.GetInt(KeyJWTRefreshExpiration),
			Leeway:                     v.GetDuration(KeyJWTLeeway),
		},
		HTTP: OutboundConfig{
			RetryCount:      v.GetInt(KeyHTTPRetryCount),
			RetryTimeout:    time.Duration(v.GetInt(KeyHTTPRetryTimeout)) * time.Second,
			RetryDelay:      time.Duration(v.GetFloat64(KeyHTTPRetryDelay) * float64(time.Second)),
			Backoff:         strings.ToLower(v.GetString(KeyHTTPBackoff)),
			RetryOnNotFound: v.GetBool(KeyHTTPRetryOnNotFound),
		},
		DatabaseFile:        v.GetString(KeyDatabaseFile),
		PepperFile:          v.GetString(KeyPepperFile),
		Env:                 v.GetString(KeyEnv),
		LogLevel:            v.GetString(KeyLogLevel),
		LogFormat:           v.GetString(KeyLogFormat),
		Port:                v.GetInt(KeyPort),
		ShutdownGracePeriod: v.GetDuration(KeyShutdownGracePeriod),
		VersionSyncInterval: v.GetDuration(KeyVersionSyncInterval),
		CatFactsURL:         v.GetString(KeyCatFactsURL),
		MetricsEnabled:      v.GetBool(KeyMetricsEnabled),
	}

	// A zero profile disables limiting for its routes.
	if v.GetBool(KeyRateLimitEnabled) {
		cfg.RateLimits = httpx.RateLimitProfiles{
			Strict:   rateLimit(v, "strict"),
			Moderate: rateLimit(v, "moderate"),
			Lenient:  rateLimit(v, "lenient"),
			Public:   rateLimit(v, "public"),
		}
	}

	return cfg
}

func rateLimit(v *viper.Viper, name string) httpx.RateLimitConfig {
	return httpx.RateLimitConfig{
		RequestsPerWindow: v.GetInt("rate_limit." + name + ".requests"),
		Window:            v.GetDuration("rate_limit." + name + ".window"),
		Burst:             v.GetInt("rate_limit." + name + ".burst"),
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	switch {
	case c.JWT.Secret == "":
		errs = append(errs, errors.New("jwt.secret is required"))
	case len(c.JWT.Secret) < MinSecretBytes:
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d bytes", MinSecretBytes))
	}
	if c.JWT.Issuer == "" {
		errs = append(errs, errors.New("jwt.issuer is required"))
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		errs = append(errs, errors.New("jwt.audience is required"))
	}
	if c.JWT.TokenExpirationMinutes <= 0 {
		errs = append(errs, errors.New("jwt.token_expiration_minutes must be positive"))
	}
	if c.JWT.RefreshTokenExpirationDays <= 0 {
		errs = append(errs, errors.New("jwt.refresh_token_expiration_days must be positive"))
	}
	if c.JWT.Leeway < 0 {
		errs = append(errs, errors.New("jwt.leeway must not be negative"))
	}

	if c.HTTP.RetryCount < 1 {
		errs = append(errs, errors.New("http.retry_count must be at least 1"))
	}
	if c.HTTP.RetryTimeout <= 0 {
		errs = append(errs, errors.New("http.retry_timeout must be positive"))
	}
	if c.HTTP.RetryDelay < 0 {
		errs = append(errs, errors.New("http.retry_delay_seconds must not be negative"))
	}
	if c.HTTP.Backoff != BackoffFixed && c.HTTP.Backoff != BackoffExponential {
		errs = append(errs, fmt.Errorf("http.backoff must be %q or %q, got %q", BackoffFixed, BackoffExponential, c.HTTP.Backoff))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DatabaseFile == "" {
		errs = append(errs, errors.New("database_file is required"))
	}
	if c.PepperFile == "" {
		errs = append(errs, errors.New("pepper_file is required"))
	}
	if c.ShutdownGracePeriod <= 0 {
		errs = append(errs, errors.New("shutdown_grace_period must be positive"))
	}
	if c.VersionSyncInterval <= 0 {
		errs = append(errs, errors.New("version_sync_interval must be positive"))
	}

	return errors.Join(errs...)
}
