package app

import (
	"strings"
	"time"
)

// Record store backends.
const (
	RecordStoreMemory   = "memory"
	RecordStorePostgres = "postgres"
	RecordStoreAirtable = "airtable"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	Env       string
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// PublicBaseURL is the origin used in emailed verification links.
	PublicBaseURL string
	// StaticDir, when set, is served at / (index.html, confirm.html).
	StaticDir string

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// RecordStore is memory, postgres or airtable. Empty picks one from the other settings.
	RecordStore string

	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	DBAutoMigrate bool

	RedisURL string

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	RateLimitMax    int
	RateLimitWindow time.Duration

	MinBotScore        float64
	RecaptchaSecret    string
	RecaptchaVerifyURL string

	DisposableDomains []string

	ResendAPIKey  string
	ResendBaseURL string
	MailFrom      string
	TeamEmail     string
	ProductName   string
	CompanyName   string

	AirtableAPIKey  string
	AirtableBaseID  string
	AirtableTable   string
	AirtableBaseURL string

	// RequireTokenHMAC forces BETA_TOKEN_HMAC_KEY (>= 32 bytes) for rate-limit key hashing.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	env := strings.ToLower(EnvString("BETA_ENV", "development"))
	prod := env == "production"

	return Config{
		Env:       env,
		HTTPAddr:  EnvString("BETA_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("BETA_LOG_LEVEL", "info"),
		LogFormat: EnvString("BETA_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("BETA_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("BETA_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("BETA_HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       EnvDuration("BETA_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("BETA_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    EnvInt("BETA_HTTP_MAX_HEADER_BYTES", 1<<20),

		PublicBaseURL: EnvString("BETA_PUBLIC_BASE_URL", ""),
		StaticDir:     EnvString("BETA_STATIC_DIR", ""),

		CORSAllowedOrigins:   EnvList("BETA_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("BETA_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("BETA_CORS_MAX_AGE_SECONDS", 600),

		RecordStore: strings.ToLower(EnvString("BETA_RECORD_STORE", "")),

		DatabaseURL:   EnvString("BETA_DATABASE_URL", ""),
		DBMaxConns:    EnvInt32("BETA_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("BETA_DB_MIN_CONNS", 0),
		DBAutoMigrate: EnvBool("BETA_DB_AUTO_MIGRATE", !prod),

		RedisURL: EnvString("BETA_REDIS_URL", ""),

		ReadinessRequireDB: EnvBool("BETA_READINESS_REQUIRE_DB", false),

		RateLimitMax:    EnvInt("BETA_RATE_LIMIT_MAX", 5),
		RateLimitWindow: EnvDuration("BETA_RATE_LIMIT_WINDOW", time.Hour),

		MinBotScore:        EnvFloat("BETA_MIN_BOT_SCORE", 0.7),
		RecaptchaSecret:    EnvString("RECAPTCHA_SECRET_KEY", ""),
		RecaptchaVerifyURL: EnvString("RECAPTCHA_VERIFY_URL", ""),

		DisposableDomains: EnvList("BETA_DISPOSABLE_DOMAINS", nil),

		ResendAPIKey:  EnvString("RESEND_API_KEY", ""),
		ResendBaseURL: EnvString("RESEND_BASE_URL", ""),
		MailFrom:      EnvString("BETA_MAIL_FROM", "CloakID <noreply@cloakid.app>"),
		TeamEmail:     EnvString("BETA_TEAM_EMAIL", "support@cloakid.app"),
		ProductName:   EnvString("BETA_PRODUCT_NAME", "CloakID"),
		CompanyName:   EnvString("BETA_COMPANY_NAME", ""),

		AirtableAPIKey:  EnvString("AIRTABLE_API_KEY", ""),
		AirtableBaseID:  EnvString("AIRTABLE_BASE_ID", ""),
		AirtableTable:   EnvString("AIRTABLE_TABLE_NAME", "Signups"),
		AirtableBaseURL: EnvString("AIRTABLE_BASE_URL", ""),

		RequireTokenHMAC: EnvBool("BETA_REQUIRE_TOKEN_HMAC", prod),
	}
}

// Production reports whether the runtime runs with production policy.
func (c Config) Production() bool { return c.Env == "production" }

// recordStoreKind resolves an empty RecordStore from the configured credentials.
func (c Config) recordStoreKind() string {
	if c.RecordStore != "" {
		return c.RecordStore
	}
	switch {
	case c.AirtableAPIKey != "" && c.AirtableBaseID != "":
		return RecordStoreAirtable
	case c.DatabaseURL != "":
		return RecordStorePostgres
	default:
		return RecordStoreMemory
	}
}
