// Package botgate asks the bot-verification provider (reCAPTCHA v3) how likely a signup is human.
package botgate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultVerifyURL is Google's siteverify endpoint.
	DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

	defaultTimeout = 10 * time.Second
)

// ErrProvider is returned when the provider could not be reached or answered with a non-2xx status.
var ErrProvider = errors.New("botgate: provider error")

// Config configures the Verifier.
type Config struct {
	// Secret is the server-side key. Empty disables the gate (every token is accepted with score 1.0).
	Secret    string
	VerifyURL string
	Timeout   time.Duration
}

// Result is the provider verdict.
type Result struct {
	Success bool
	// Score is nil when the provider returned none (v2 keys, or failures).
	Score      *float64
	Action     string
	Hostname   string
	ErrorCodes []string
	// Bypassed is set when no secret is configured.
	Bypassed bool
}

// Verifier exchanges client tokens for a Result.
type Verifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

// NewVerifier returns a Verifier with defaults for empty fields.
func NewVerifier(cfg Config) *Verifier {
	verifyURL := strings.TrimSpace(cfg.VerifyURL)
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Verifier{
		secret:    strings.TrimSpace(cfg.Secret),
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool { return v != nil && v.secret != "" }

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify performs a single provider call. It does not retry.
func (v *Verifier) Verify(ctx context.Context, token string, remoteIP net.IP) (Result, error) {
	if !v.Enabled() {
		one := 1.0
		return Result{Success: true, Score: &one, Bypassed: true}, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", strings.TrimSpace(token))
	if remoteIP != nil {
		form.Set("remoteip", remoteIP.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("%w: status=%d body=%s", ErrProvider, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("%w: decode: %v", ErrProvider, err)
	}

	return Result{
		Success:    out.Success,
		Score:      out.Score,
		Action:     out.Action,
		Hostname:   out.Hostname,
		ErrorCodes: out.ErrorCodes,
	}, nil
}
