package app

import (
	"errors"
	"strings"

	"beta/cmd/security/token"
)

// ValidateSecurityConfig enforces the production policy at startup.
func ValidateSecurityConfig(cfg Config) error {
	var errs []error

	if cfg.RequireTokenHMAC {
		// Bytes, not runes: the key is used as raw bytes.
		if _, err := token.HMACKeyFromEnv(32); err != nil {
			switch {
			case errors.Is(err, token.ErrHMACKeyMissing):
				errs = append(errs, errors.New("security policy: BETA_REQUIRE_TOKEN_HMAC=true but BETA_TOKEN_HMAC_KEY is missing"))
			case errors.Is(err, token.ErrHMACKeyTooShort):
				errs = append(errs, errors.New("security policy: BETA_REQUIRE_TOKEN_HMAC=true but BETA_TOKEN_HMAC_KEY is too short (min 32 bytes)"))
			default:
				errs = append(errs, err)
			}
		}
	}

	if !cfg.Production() {
		return errors.Join(errs...)
	}
	if strings.TrimSpace(cfg.RecaptchaSecret) == "" {
		errs = append(errs, errors.New("security policy: RECAPTCHA_SECRET_KEY is required in production"))
	}
	if strings.TrimSpace(cfg.ResendAPIKey) == "" {
		errs = append(errs, errors.New("security policy: RESEND_API_KEY is required in production"))
	}
	if !strings.HasPrefix(strings.TrimSpace(cfg.PublicBaseURL), "https://") {
		errs = append(errs, errors.New("security policy: BETA_PUBLIC_BASE_URL must be an https URL in production"))
	}
	if cfg.recordStoreKind() == RecordStoreMemory {
		errs = append(errs, errors.New("security policy: a persistent record store is required in production"))
	}
	return errors.Join(errs...)
}
