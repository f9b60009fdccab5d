package signup

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"beta/cmd/internal/botgate"
	"beta/cmd/internal/notify"
	"beta/cmd/internal/ratelimit"
)

const (
	// DefaultMinBotScore is the lowest accepted bot-gate score.
	DefaultMinBotScore = 0.7

	intakeAckMessage = "Check your email to confirm your application"
)

// RateLimiter decides whether a source may submit another application.
type RateLimiter interface {
	Check(ctx context.Context, sourceKey string) ratelimit.Decision
}

// BotVerifier exchanges a client bot token for a provider verdict.
type BotVerifier interface {
	Enabled() bool
	Verify(ctx context.Context, token string, remoteIP net.IP) (botgate.Result, error)
}

// Mailer sends the applicant and team messages for each transition.
type Mailer interface {
	SendVerification(ctx context.Context, to, link string) error
	NotifySignup(ctx context.Context, in notify.SignupNotice) error
	NotifyVerified(ctx context.Context, in notify.VerifiedNotice) error
	NotifyCompleted(ctx context.Context, in notify.CompletionNotice) error
}

// Config holds the funnel policy.
type Config struct {
	MinWhyChars int
	MaxWhyChars int
	MinBotScore float64
	// BaseURL is the public origin used to build verification links.
	BaseURL string
	// DisposableDomains extends DefaultDisposableDomains.
	DisposableDomains []string
}

// Service runs the signup state machine.
type Service struct {
	store   Store
	limiter RateLimiter
	bot     BotVerifier
	mail    Mailer
	cfg     Config
	deny    domainSet
	log     *slog.Logger
	now     func() time.Time
	observe func(op, outcome string)
}

// Option configures the Service.
type Option func(*Service) error

// WithRateLimiter sets the intake throttle. Without one, intake is not rate limited.
func WithRateLimiter(l RateLimiter) Option {
	return func(s *Service) error {
		s.limiter = l
		return nil
	}
}

// WithBotVerifier sets the bot gate. Without one, the bot check is skipped.
func WithBotVerifier(v BotVerifier) Option {
	return func(s *Service) error {
		s.bot = v
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log != nil {
			s.log = log
		}
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return ErrInvalidInput
		}
		s.now = now
		return nil
	}
}

// WithObserver receives one (operation, outcome) pair per call. Used for metrics.
func WithObserver(fn func(op, outcome string)) Option {
	return func(s *Service) error {
		if fn != nil {
			s.observe = fn
		}
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, mail Mailer, cfg Config, opts ...Option) (*Service, error) {
	if store == nil || mail == nil {
		return nil, ErrInvalidInput
	}
	if cfg.MinWhyChars <= 0 {
		cfg.MinWhyChars = DefaultMinWhyChars
	}
	if cfg.MaxWhyChars <= 0 {
		cfg.MaxWhyChars = DefaultMaxWhyChars
	}
	if cfg.MaxWhyChars < cfg.MinWhyChars {
		return nil, ErrInvalidInput
	}
	if cfg.MinBotScore <= 0 {
		cfg.MinBotScore = DefaultMinBotScore
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	s := &Service{
		store:   store,
		mail:    mail,
		cfg:     cfg,
		deny:    newDomainSet(DefaultDisposableDomains, cfg.DisposableDomains),
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
		observe: func(string, string) {},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// IntakeInput is one application submission.
type IntakeInput struct {
	Email    string
	Why      string
	BotToken string
	// Honeypot is the hidden form field; real users leave it empty.
	Honeypot      string
	SourceAddress string
}

// IntakeResult is the acknowledgment returned to the client.
// A honeypot hit returns the same value as a real acceptance.
type IntakeResult struct {
	Message string
}

// Intake validates a submission, stores an unverified record and mails the verification link.
func (s *Service) Intake(ctx context.Context, in IntakeInput) (IntakeResult, error) {
	const op = "signup.Intake"
	if err := ctx.Err(); err != nil {
		return IntakeResult{}, err
	}
	ack := IntakeResult{Message: intakeAckMessage}

	if s.limiter != nil {
		if d := s.limiter.Check(ctx, in.SourceAddress); !d.Allowed {
			s.observe("intake", "rate_limited")
			s.log.WarnContext(ctx, "signup.intake.rate_limited", "remote", in.SourceAddress)
			return IntakeResult{}, &RateLimitError{RetryAfter: d.RetryAfter}
		}
	}

	if in.Honeypot != "" {
		s.observe("intake", "honeypot")
		s.log.InfoContext(ctx, "signup.intake.honeypot", "remote", in.SourceAddress)
		return ack, nil
	}

	email := NormalizeEmail(in.Email)
	if err := validateEmail(email, s.deny); err != nil {
		s.observe("intake", "invalid")
		return IntakeResult{}, err
	}
	why := strings.TrimSpace(in.Why)
	if err := validateWhy(why, s.cfg.MinWhyChars, s.cfg.MaxWhyChars); err != nil {
		s.observe("intake", "invalid")
		return IntakeResult{}, err
	}

	score, err := s.checkBot(ctx, in)
	if err != nil {
		if IsValidation(err) {
			s.observe("intake", "bot_rejected")
			s.log.InfoContext(ctx, "signup.intake.bot_rejected", "remote", in.SourceAddress, "err", err)
		} else {
			s.observe("intake", "error")
			s.log.ErrorContext(ctx, "signup.intake.fail", "step", "bot_gate", "err", err)
		}
		return IntakeResult{}, err
	}

	tok, err := NewToken()
	if err != nil {
		s.observe("intake", "error")
		return IntakeResult{}, err
	}
	now := s.now()
	rec, err := s.store.Create(ctx, Record{
		Email:             email,
		Why:               why,
		SourceAddress:     in.SourceAddress,
		BotScore:          score,
		VerificationToken: tok,
		Status:            StatusUnverified,
		SignupDate:        now,
	})
	if err != nil {
		return IntakeResult{}, s.fail(ctx, "intake", op, "record_store", err)
	}

	if err := s.mail.SendVerification(ctx, email, s.verifyLink(tok)); err != nil {
		return IntakeResult{}, s.fail(ctx, "intake", op, "mail", err)
	}
	if err := s.mail.NotifySignup(ctx, notify.SignupNotice{
		Email:         email,
		Why:           why,
		BotScore:      score,
		SourceAddress: in.SourceAddress,
		At:            now,
	}); err != nil {
		return IntakeResult{}, s.fail(ctx, "intake", op, "mail", err)
	}

	s.observe("intake", "accepted")
	s.log.InfoContext(ctx, "signup.intake.accepted", "id", rec.ID, "email", email, "bot_score", score)
	return ack, nil
}

// checkBot returns the score to persist. A missing provider score persists as 0.
func (s *Service) checkBot(ctx context.Context, in IntakeInput) (float64, error) {
	if s.bot == nil {
		return 0, nil
	}
	botToken := strings.TrimSpace(in.BotToken)
	if s.bot.Enabled() && botToken == "" {
		return 0, invalid("recaptchaToken", "bot_token_missing", "Bot verification failed. Please try again.")
	}
	res, err := s.bot.Verify(ctx, botToken, net.ParseIP(in.SourceAddress))
	if err != nil {
		return 0, dependency("signup.Intake", "bot_gate", err)
	}
	var score float64
	if res.Score != nil {
		score = *res.Score
	}
	if !res.Success || (res.Score != nil && score < s.cfg.MinBotScore) {
		return 0, invalid("recaptchaToken", "bot_check_failed", "Bot verification failed. Please try again.")
	}
	return score, nil
}

func (s *Service) verifyLink(tok string) string {
	return s.cfg.BaseURL + "/verify?token=" + url.QueryEscape(tok)
}

// VerifyResult carries the token forward to the completion page.
type VerifyResult struct {
	Token string
	// AlreadyVerified is set when the record had moved past unverified; nothing was written.
	AlreadyVerified bool
}

// Verify moves an unverified record to verified. Repeats are idempotent and send nothing.
func (s *Service) Verify(ctx context.Context, rawToken string) (VerifyResult, error) {
	const op = "signup.Verify"
	if err := ctx.Err(); err != nil {
		return VerifyResult{}, err
	}
	if strings.TrimSpace(rawToken) == "" {
		s.observe("verify", "invalid")
		return VerifyResult{}, &StateError{Op: op, Reason: ReasonMissingToken}
	}
	tok, ok := normalizeToken(rawToken)
	if !ok {
		s.observe("verify", "invalid")
		return VerifyResult{}, &StateError{Op: op, Reason: ReasonInvalidToken}
	}

	rec, err := s.lookup(ctx, "verify", op, tok)
	if err != nil {
		return VerifyResult{}, err
	}
	if rec.Status == StatusVerified || rec.Status == StatusCompleted {
		s.observe("verify", "already_verified")
		return VerifyResult{Token: tok, AlreadyVerified: true}, nil
	}

	now := s.now()
	if err := s.store.Patch(ctx, rec.ID, Patch{
		Status:       statusPtr(StatusVerified),
		VerifiedDate: &now,
	}); err != nil {
		return VerifyResult{}, s.fail(ctx, "verify", op, "record_store", err)
	}
	if err := s.mail.NotifyVerified(ctx, notify.VerifiedNotice{Email: rec.Email, At: now}); err != nil {
		return VerifyResult{}, s.fail(ctx, "verify", op, "mail", err)
	}

	s.observe("verify", "verified")
	s.log.InfoContext(ctx, "signup.verify.ok", "id", rec.ID, "token", tokenPrefix(tok))
	return VerifyResult{Token: tok}, nil
}

// CompleteInput is the questionnaire submission.
type CompleteInput struct {
	Token            string
	ProblemCategory  string
	OtherProblemText string
	PainLevel        string
}

// Complete stores the questionnaire on a verified record and marks it completed.
func (s *Service) Complete(ctx context.Context, in CompleteInput) error {
	const op = "signup.Complete"
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(in.Token) == "" {
		s.observe("complete", "invalid")
		return &StateError{Op: op, Reason: ReasonMissingToken}
	}
	category := strings.TrimSpace(in.ProblemCategory)
	pain := strings.TrimSpace(in.PainLevel)
	other := strings.TrimSpace(in.OtherProblemText)
	if err := validateAnswer("problemCategory", category); err != nil {
		s.observe("complete", "invalid")
		return err
	}
	if err := validateAnswer("painLevel", pain); err != nil {
		s.observe("complete", "invalid")
		return err
	}
	if other != "" {
		if err := validateAnswer("otherProblemText", other); err != nil {
			s.observe("complete", "invalid")
			return err
		}
	}

	tok, ok := normalizeToken(in.Token)
	if !ok {
		s.observe("complete", "invalid")
		return &StateError{Op: op, Reason: ReasonInvalidToken}
	}
	rec, err := s.lookup(ctx, "complete", op, tok)
	if err != nil {
		return err
	}
	switch rec.Status {
	case StatusVerified:
	case StatusCompleted:
		s.observe("complete", "rejected")
		return &StateError{Op: op, Reason: ReasonAlreadyCompleted}
	default:
		s.observe("complete", "rejected")
		return &StateError{Op: op, Reason: ReasonNotVerified}
	}

	p := Patch{
		Status:           statusPtr(StatusCompleted),
		ProblemCategory:  &category,
		OtherProblemText: &other,
		PainLevel:        &pain,
	}
	if err := s.store.Patch(ctx, rec.ID, p); err != nil {
		return s.fail(ctx, "complete", op, "record_store", err)
	}
	done := rec.Apply(p)
	if err := s.mail.NotifyCompleted(ctx, notify.CompletionNotice{
		Email:            done.Email,
		Why:              done.Why,
		ProblemCategory:  derefString(done.ProblemCategory),
		OtherProblemText: derefString(done.OtherProblemText),
		PainLevel:        derefString(done.PainLevel),
		BotScore:         reportedScore(done.BotScore),
		At:               s.now(),
	}); err != nil {
		return s.fail(ctx, "complete", op, "mail", err)
	}

	s.observe("complete", "completed")
	s.log.InfoContext(ctx, "signup.complete.ok", "id", rec.ID, "category", category, "pain_level", pain)
	return nil
}

func (s *Service) lookup(ctx context.Context, metric, op, tok string) (Record, error) {
	rec, err := s.store.FindByToken(ctx, tok)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, ErrNotFound) {
		s.observe(metric, "invalid")
		s.log.InfoContext(ctx, "signup."+metric+".unknown_token", "token", tokenPrefix(tok))
		return Record{}, &StateError{Op: op, Reason: ReasonInvalidToken}
	}
	return Record{}, s.fail(ctx, metric, op, "record_store", err)
}

func (s *Service) fail(ctx context.Context, metric, op, dep string, err error) error {
	s.observe(metric, "error")
	s.log.ErrorContext(ctx, "signup."+metric+".fail", "dependency", dep, "err", err)
	return dependency(op, dep, err)
}

// reportedScore hides a zero score, which means the provider sent none.
func reportedScore(score float64) *float64 {
	if score == 0 {
		return nil
	}
	return &score
}
