// Package main provides a CI-friendly HTTP smoke test for the beta signup funnel.
//
// It only exercises paths without side effects, so it is safe against production:
//   - health and readiness
//   - honeypot submission acknowledged like a real one
//   - validation errors and their codes
//   - verify redirects for missing and malformed tokens
//   - confirm rejecting a missing token
//   - method checks
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	base    *url.URL
	prefix  string
	http    *http.Client
	timeout time.Duration
	verbose bool
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		legacy  = flag.Bool("legacy", false, "Use the /.netlify/functions route aliases")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}

	c := &smokeClient{
		base:    base,
		timeout: *timeout,
		verbose: *verbose,
		http: &http.Client{
			// Redirects are asserted, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
	if *legacy {
		c.prefix = "/.netlify/functions"
	}

	root := context.Background()

	c.mustStatus(root, http.MethodGet, "/healthz", nil, http.StatusOK)
	c.mustStatus(root, http.MethodGet, "/readyz", nil, http.StatusOK)

	c.mustSignupAck(root, map[string]any{
		"email":   "smoke@example.com",
		"why":     "smoke test submission",
		"website": "http://filled-by-a-bot.example",
	})

	c.mustAPIError(root, c.prefix+"/signup", map[string]any{
		"email": "not-an-email",
		"why":   "I want to keep my real address away from shady sites.",
	}, http.StatusBadRequest, "email_invalid")

	c.mustAPIError(root, c.prefix+"/signup", map[string]any{
		"email": "smoke@mailinator.com",
		"why":   "I want to keep my real address away from shady sites.",
	}, http.StatusBadRequest, "email_disposable")

	c.mustAPIError(root, c.prefix+"/confirm", map[string]any{
		"problemCategory": "spam",
		"painLevel":       3,
	}, http.StatusBadRequest, "missing_token")

	c.mustRedirect(root, c.prefix+"/verify", "error=missing_token")
	c.mustRedirect(root, c.prefix+"/verify?token=not-a-token", "error=invalid_token")

	c.mustStatus(root, http.MethodGet, c.prefix+"/signup", nil, http.StatusMethodNotAllowed)

	fmt.Printf("OK: base=%s prefix=%q\n", base, c.prefix)
}

func validateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func (c *smokeClient) do(parent context.Context, method, path string, body any) (*http.Response, []byte) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal %s %s: %v", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		fatalf("build %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		fatalf("read %s %s: %v", method, path, err)
	}
	if c.verbose {
		fmt.Printf("%s %s -> %d %s\n", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp, data
}

func (c *smokeClient) mustStatus(parent context.Context, method, path string, body any, want int) {
	resp, data := c.do(parent, method, path, body)
	if resp.StatusCode != want {
		fatalf("%s %s: status=%d want=%d body=%q", method, path, resp.StatusCode, want, data)
	}
}

func (c *smokeClient) mustSignupAck(parent context.Context, body any) {
	resp, data := c.do(parent, http.MethodPost, c.prefix+"/signup", body)
	if resp.StatusCode != http.StatusOK {
		fatalf("signup ack: status=%d body=%q", resp.StatusCode, data)
	}
	var p struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		fatalf("unmarshal signup ack: %v", err)
	}
	if !p.Success || strings.TrimSpace(p.Message) == "" {
		fatalf("signup ack malformed: %q", data)
	}
}

func (c *smokeClient) mustAPIError(parent context.Context, path string, body any, wantStatus int, wantCode string) {
	resp, data := c.do(parent, http.MethodPost, path, body)
	if resp.StatusCode != wantStatus {
		fatalf("POST %s: status=%d want=%d body=%q", path, resp.StatusCode, wantStatus, data)
	}
	var p apiError
	if err := json.Unmarshal(data, &p); err != nil {
		fatalf("unmarshal error body (%s): %v", path, err)
	}
	if p.Code != wantCode {
		fatalf("POST %s: code=%q want=%q", path, p.Code, wantCode)
	}
	if strings.TrimSpace(p.Error) == "" {
		fatalf("POST %s: error message missing", path)
	}
}

func (c *smokeClient) mustRedirect(parent context.Context, path, wantQuery string) {
	resp, _ := c.do(parent, http.MethodGet, path, nil)
	if resp.StatusCode != http.StatusFound {
		fatalf("GET %s: status=%d want=302", path, resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.Contains(loc, wantQuery) {
		fatalf("GET %s: location=%q want it to contain %q", path, loc, wantQuery)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
