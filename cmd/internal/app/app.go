// Package app wires the beta signup server runtime: config, logging, stores, HTTP routes and metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"beta/cmd/internal/airtable"
	"beta/cmd/internal/botgate"
	"beta/cmd/internal/notify"
	"beta/cmd/internal/ratelimit"
	"beta/cmd/internal/signup"
	signupapi "beta/cmd/internal/signup/api"
	"beta/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

var errNotReady = errors.New("not ready")

// App is the server runtime: it owns external clients and the HTTP server wiring.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool
	redis  *redis.Client

	registry *prometheus.Registry
	httpM    *httpMetrics
	signups  *signupapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (_ *App, err error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	a := &App{cfg: cfg, log: log, registry: newMetricsRegistry()}
	a.httpM = newHTTPMetrics(a.registry, knownRoutes...)
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if cfg.DatabaseURL != "" {
		if a.dbPool, err = NewDBPool(ctx, cfg); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("db.enabled")
	}
	if cfg.RedisURL != "" {
		if a.redis, err = NewRedisClient(ctx, cfg.RedisURL); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		log.Info("redis.enabled")
	}

	records, err := a.newRecordStore(ctx)
	if err != nil {
		return nil, err
	}
	counters, err := a.newCounterStore()
	if err != nil {
		return nil, err
	}

	hasher, err := newKeyHasher(cfg)
	if err != nil {
		return nil, err
	}

	metrics := signupapi.NewMetrics(a.registry)
	limiter := ratelimit.NewLimiter(counters,
		ratelimit.Config{Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow},
		ratelimit.WithLogger(log),
		ratelimit.WithHasher(hasher),
		ratelimit.WithFailOpenHook(metrics.FailOpen),
	)

	bot := botgate.NewVerifier(botgate.Config{
		Secret:    cfg.RecaptchaSecret,
		VerifyURL: cfg.RecaptchaVerifyURL,
	})
	if !bot.Enabled() {
		log.Warn("botgate.disabled", "reason", "RECAPTCHA_SECRET_KEY not set")
	}

	mailer, err := a.newNotifier()
	if err != nil {
		return nil, err
	}

	svc, err := signup.NewService(records, mailer,
		signup.Config{
			MinBotScore:       cfg.MinBotScore,
			BaseURL:           publicBaseURL(cfg),
			DisposableDomains: cfg.DisposableDomains,
		},
		signup.WithRateLimiter(limiter),
		signup.WithBotVerifier(bot),
		signup.WithLogger(log),
		signup.WithObserver(metrics.Observe),
	)
	if err != nil {
		return nil, err
	}

	a.signups, err = signupapi.NewHandler(log, svc, signupapi.LoadConfigFromEnv())
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Handler builds the full middleware chain around the route mux.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, readiness{
		requireDB: a.cfg.ReadinessRequireDB,
		db:        a.dbPool,
		redis:     a.redis,
	}, a.registry, a.signups)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log, a.httpM)
	return WithRecover(h, a.log)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"env", a.cfg.Env,
		"record_store", a.cfg.recordStoreKind(),
		"redis", a.redis != nil,
		"base_url", publicBaseURL(a.cfg),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.redis = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func (a *App) newRecordStore(ctx context.Context) (signup.Store, error) {
	switch kind := a.cfg.recordStoreKind(); kind {
	case RecordStoreAirtable:
		client, err := airtable.NewClient(airtable.Config{
			APIKey:  a.cfg.AirtableAPIKey,
			BaseID:  a.cfg.AirtableBaseID,
			Table:   a.cfg.AirtableTable,
			BaseURL: a.cfg.AirtableBaseURL,
		})
		if err != nil {
			return nil, err
		}
		a.log.Info("records.airtable", "base", a.cfg.AirtableBaseID, "table", a.cfg.AirtableTable)
		return airtable.NewStore(client, a.log)

	case RecordStorePostgres:
		if a.dbPool == nil {
			return nil, errors.New("records: BETA_RECORD_STORE=postgres requires BETA_DATABASE_URL")
		}
		st, err := signup.NewPostgresStore(a.dbPool)
		if err != nil {
			return nil, err
		}
		if a.cfg.DBAutoMigrate {
			if err := st.ApplySchema(ctx); err != nil {
				return nil, err
			}
			a.log.Info("records.postgres.schema_applied")
		}
		a.log.Info("records.postgres")
		return st, nil

	case RecordStoreMemory:
		if a.cfg.Production() {
			return nil, errors.New("records: memory store is not allowed in production")
		}
		a.log.Warn("records.memory", "note", "signups are lost on restart")
		return signup.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("records: unknown BETA_RECORD_STORE %q", kind)
	}
}

func (a *App) newCounterStore() (ratelimit.Store, error) {
	if a.redis == nil {
		a.log.Info("ratelimit.memory")
		return ratelimit.NewMemoryStore(), nil
	}
	a.log.Info("ratelimit.redis")
	return ratelimit.NewRedisStore(a.redis)
}

func (a *App) newNotifier() (*notify.Notifier, error) {
	var sender notify.Sender
	if a.cfg.ResendAPIKey != "" {
		rs, err := notify.NewResendSender(a.cfg.ResendAPIKey, a.cfg.ResendBaseURL)
		if err != nil {
			return nil, err
		}
		sender = rs
	} else {
		a.log.Warn("notify.log_sender", "reason", "RESEND_API_KEY not set")
		sender = notify.LogSender{Log: a.log}
	}
	return notify.NewNotifier(sender, notify.Config{
		From:        a.cfg.MailFrom,
		TeamAddress: a.cfg.TeamEmail,
		ProductName: a.cfg.ProductName,
		CompanyName: a.cfg.CompanyName,
	})
}

// newKeyHasher returns an HMAC hasher when BETA_TOKEN_HMAC_KEY is usable, SHA-256 otherwise.
func newKeyHasher(cfg Config) (token.Hasher, error) {
	key, err := token.HMACKeyFromEnv(32)
	switch {
	case err == nil:
		return token.NewHasher(key), nil
	case cfg.RequireTokenHMAC:
		return token.Hasher{}, err
	case errors.Is(err, token.ErrHMACKeyMissing):
		return token.NewHasher(nil), nil
	default:
		return token.Hasher{}, err
	}
}

// publicBaseURL is the configured origin, or one derived from the listen address.
func publicBaseURL(cfg Config) string {
	if u := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"); u != "" {
		return u
	}
	return runtimeBaseURL(cfg.HTTPAddr)
}

// runtimeBaseURL maps a listen address onto a URL a local browser can open.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
