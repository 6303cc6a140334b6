package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// All values must come from env (a local .env file is loaded when present).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	Ingest  IngestConfig
	Redis   RedisConfig
	DB      DBConfig
	Auth    AuthConfig
	Vapi    VapiConfig
	Company CompanyConfig
}

type AppConfig struct {
	Env  string
	Port int

	// CORSOrigins lists allowed browser origins for the dashboard.
	// Empty means allow-all (local development).
	CORSOrigins []string
}

// IngestConfig bounds the webhook ingestion endpoint.
type IngestConfig struct {
	// EventLogCap caps the global raw event log; oldest entries are evicted
	// first. Individual call histories are never evicted. Zero means
	// env-dependent default (see Config.EventLogCap).
	EventLogCap int

	// MaxBodyBytes bounds a single webhook payload.
	MaxBodyBytes int64

	// RateLimit is the fixed request budget per source address per RateWindow.
	RateLimit  int
	RateWindow time.Duration
}

// RedisConfig is optional; when Host is empty the rate limiter falls back to
// a per-process window.
type RedisConfig struct {
	Host string
	Port int
}

// DBConfig is optional; when Host is empty the terminal-call archive is
// disabled and the service runs purely in memory.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Dashboard admin credentials. PasswordHash is a bcrypt hash.
	AdminUser         string
	AdminPasswordHash string
}

// VapiConfig points at the upstream voice platform used for outbound call
// initiation. The inbound webhook path does not depend on it.
type VapiConfig struct {
	BaseURL       string
	APIKey        string
	AssistantID   string
	PhoneNumberID string
}

// CompanyConfig backs the get_company_info function-call handler.
type CompanyConfig struct {
	Name  string
	Phone string
	Email string
	Hours string
}

func Load() (Config, error) {
	// Best effort: no .env file is the normal production case.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.CORSOrigins = splitCSV(os.Getenv("CORS_ORIGINS"))

	c.Ingest.EventLogCap = optInt("EVENT_LOG_CAP", 0)
	c.Ingest.MaxBodyBytes = int64(optInt("WEBHOOK_MAX_BODY", 1<<20))
	c.Ingest.RateLimit = optInt("RATE_LIMIT", 120)
	c.Ingest.RateWindow = optDuration("RATE_WINDOW", time.Minute)

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optInt("REDIS_PORT", 6379)

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optInt("DB_PORT", 5432)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL", 0)
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL", 0)
	c.Auth.AdminUser = strings.TrimSpace(os.Getenv("ADMIN_USER"))
	c.Auth.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")

	c.Vapi.BaseURL = strings.TrimSpace(os.Getenv("VAPI_BASE_URL"))
	c.Vapi.APIKey = os.Getenv("VAPI_API_KEY")
	c.Vapi.AssistantID = strings.TrimSpace(os.Getenv("VAPI_ASSISTANT_ID"))
	c.Vapi.PhoneNumberID = strings.TrimSpace(os.Getenv("VAPI_PHONE_NUMBER_ID"))

	c.Company.Name = envOr("COMPANY_NAME", "Ring Ring Marketing")
	c.Company.Phone = strings.TrimSpace(os.Getenv("COMPANY_PHONE"))
	c.Company.Email = strings.TrimSpace(os.Getenv("COMPANY_EMAIL"))
	c.Company.Hours = envOr("COMPANY_HOURS", "Mon-Fri 9am-6pm ET")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required settings and fills in the local-friendly
// defaults for optional ones.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Ingest.EventLogCap < 0 {
		errs = append(errs, fmt.Errorf("EVENT_LOG_CAP must be >= 0, got %d", c.Ingest.EventLogCap))
	}
	if c.Ingest.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("WEBHOOK_MAX_BODY must be > 0, got %d", c.Ingest.MaxBodyBytes))
	}
	if c.Ingest.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT must be > 0, got %d", c.Ingest.RateLimit))
	}
	if c.Ingest.RateWindow <= 0 {
		errs = append(errs, errors.New("RATE_WINDOW must be a positive duration"))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.DB.Host != "" {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.AdminUser == "" {
		errs = append(errs, errors.New("ADMIN_USER is required"))
	}
	if c.Auth.AdminPasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Vapi.BaseURL != "" && c.Vapi.APIKey == "" {
		errs = append(errs, errors.New("VAPI_API_KEY is required when VAPI_BASE_URL is set"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// EventLogCap resolves the raw event log cap: an explicit value wins,
// otherwise 1000 in production and 100 everywhere else.
func (c Config) EventLogCap() int {
	if c.Ingest.EventLogCap > 0 {
		return c.Ingest.EventLogCap
	}
	if c.IsProduction() {
		return 1000
	}
	return 100
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c Config) ArchiveEnabled() bool { return c.DB.Host != "" }
func (c Config) RedisEnabled() bool   { return c.Redis.Host != "" }

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func optDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
