// Package token provides keyed hashing for identifiers that must not be stored in the clear.
//
// The rate limiter uses it to turn client addresses into opaque counter keys.
//
// Modes:
// - SHA-256(value) when no key is configured (local development).
// - HMAC-SHA256(value, key) when BETA_TOKEN_HMAC_KEY is set.
//
// Output is always a 64-char lowercase hex string.
// Production policy (see app.ValidateSecurityConfig) requires HMAC mode with a key of at least 32 bytes.
package token
