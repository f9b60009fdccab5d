// Package signupapi exposes the signup funnel over HTTP.
package signupapi

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"beta/cmd/internal/signup"
)

// Funnel is the signup state machine as seen by the HTTP layer.
type Funnel interface {
	Intake(ctx context.Context, in signup.IntakeInput) (signup.IntakeResult, error)
	Verify(ctx context.Context, token string) (signup.VerifyResult, error)
	Complete(ctx context.Context, in signup.CompleteInput) error
}

// Handler wires the funnel endpoints.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	funnel Funnel
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, funnel Funnel, cfg Config) (*Handler, error) {
	if funnel == nil {
		return nil, errors.New("signupapi: nil funnel")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, cfg: cfg.withDefaults(), funnel: funnel}, nil
}

// Register wires signup routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/signup", h.handleSignup)
	mux.HandleFunc("/verify", h.handleVerify)
	mux.HandleFunc("/confirm", h.handleConfirm)
	if !h.cfg.DisableLegacyRoutes {
		mux.HandleFunc("/.netlify/functions/signup", h.handleSignup)
		mux.HandleFunc("/.netlify/functions/verify", h.handleVerify)
		mux.HandleFunc("/.netlify/functions/confirm", h.handleConfirm)
	}
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	res, err := h.funnel.Intake(r.Context(), signup.IntakeInput{
		Email:         req.Email,
		Why:           req.Why,
		BotToken:      req.RecaptchaToken,
		Honeypot:      req.Website,
		SourceAddress: ipString(clientIP(r, h.cfg.TrustProxy)),
	})
	if err != nil {
		h.writeFunnelError(w, r, err, "Failed to process signup")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: res.Message})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Cache-Control", "no-store")

	res, err := h.funnel.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		reason := "verification_failed"
		var se *signup.StateError
		if errors.As(err, &se) {
			switch se.Reason {
			case signup.ReasonMissingToken:
				reason = "missing_token"
			case signup.ReasonInvalidToken:
				reason = "invalid_token"
			}
		} else if !signup.IsDependency(err) {
			h.log.ErrorContext(r.Context(), "signup.verify.fail", "err", err)
		}
		http.Redirect(w, r, h.cfg.ErrorPath+"?error="+reason, http.StatusFound)
		return
	}
	http.Redirect(w, r, h.cfg.ConfirmPath+"?token="+url.QueryEscape(res.Token), http.StatusFound)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req confirmRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	err := h.funnel.Complete(r.Context(), signup.CompleteInput{
		Token:            req.Token,
		ProblemCategory:  req.ProblemCategory,
		OtherProblemText: req.OtherProblemText,
		PainLevel:        string(req.PainLevel),
	})
	if err != nil {
		h.writeFunnelError(w, r, err, "Failed to process confirmation")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// writeFunnelError maps the signup error taxonomy onto status codes.
// Dependency and unknown errors never leak their text.
func (h *Handler) writeFunnelError(w http.ResponseWriter, r *http.Request, err error, serverMsg string) {
	var (
		ve *signup.ValidationError
		rl *signup.RateLimitError
		se *signup.StateError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Code, ve.Message)
	case errors.As(err, &rl):
		if rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again later.")
	case errors.As(err, &se):
		writeError(w, http.StatusBadRequest, string(se.Reason), se.Message())
	default:
		if !signup.IsDependency(err) {
			h.log.ErrorContext(r.Context(), "signup.http.unexpected_error", "path", r.URL.Path, "err", err)
		}
		writeError(w, http.StatusInternalServerError, "server_error", serverMsg)
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	return false
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

// parseForwardedIP returns the rightmost valid entry, the one appended by
// the proxy in front of us. Earlier entries are client-controlled.
func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		if ip := net.ParseIP(strings.TrimSpace(parts[i])); ip != nil {
			return ip
		}
	}
	return nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
