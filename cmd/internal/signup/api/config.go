package signupapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls signup HTTP behavior.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64
	// ConfirmPath receives `?token=` after a successful verification.
	ConfirmPath string
	// ErrorPath receives `?error=` when verification fails.
	ErrorPath string
	// DisableLegacyRoutes stops mounting the /.netlify/functions/* paths.
	DisableLegacyRoutes bool
}

// LoadConfigFromEnv loads signup API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:          envBool("BETA_TRUST_PROXY", false),
		MaxBodyBytes:        envInt64("BETA_MAX_BODY_BYTES", 64<<10),
		ConfirmPath:         envString("BETA_CONFIRM_PATH", "/confirm.html"),
		ErrorPath:           envString("BETA_ERROR_PATH", "/"),
		DisableLegacyRoutes: envBool("BETA_DISABLE_LEGACY_ROUTES", false),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 10
	}
	if !strings.HasPrefix(c.ConfirmPath, "/") {
		c.ConfirmPath = "/confirm.html"
	}
	if !strings.HasPrefix(c.ErrorPath, "/") {
		c.ErrorPath = "/"
	}
	return c
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
