package signup

import (
	"strings"

	"github.com/google/uuid"
)

// NewToken returns a random UUIDv4 verification token.
func NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// normalizeToken returns the canonical form of a token, or false when it cannot be one we issued.
func normalizeToken(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id.Version() != 4 {
		return "", false
	}
	return id.String(), true
}

// tokenPrefix is what gets logged instead of the full token.
func tokenPrefix(tok string) string {
	if len(tok) <= 8 {
		return tok
	}
	return tok[:8]
}
