package app

import (
	"context"
	"net/http"
	"os"
	"time"

	signupapi "beta/cmd/internal/signup/api"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// knownRoutes label the HTTP metrics; anything else is reported as "other".
var knownRoutes = []string{
	"/", "/healthz", "/readyz", "/metrics",
	"/signup", "/verify", "/confirm",
	"/.netlify/functions/signup", "/.netlify/functions/verify", "/.netlify/functions/confirm",
	"/index.html", "/confirm.html",
}

type readiness struct {
	requireDB bool
	db        *pgxpool.Pool
	redis     *redis.Client
}

func (rd readiness) check(ctx context.Context) (string, error) {
	if rd.requireDB && rd.db == nil {
		return "db not configured", errNotReady
	}
	if rd.db != nil {
		if err := PingDB(ctx, rd.db, 2*time.Second); err != nil {
			return "db not ready", err
		}
	}
	if rd.redis != nil {
		if err := PingRedis(ctx, rd.redis, time.Second); err != nil {
			return "redis not ready", err
		}
	}
	return "", nil
}

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	ready readiness,
	reg *prometheus.Registry,
	signups *signupapi.Handler,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if msg, err := ready.check(r.Context()); err != nil {
			log.Info("readyz.not_ready", "reason", msg, "err", err)
			http.Error(w, msg, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if reg != nil {
		mux.Handle("/metrics", metricsHandler(reg))
	}

	if signups != nil {
		signups.Register(mux)
	}

	if cfg.StaticDir != "" {
		if fi, err := os.Stat(cfg.StaticDir); err == nil && fi.IsDir() {
			mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
			log.Info("http.static.enabled", "dir", cfg.StaticDir)
		} else {
			log.Warn("http.static.missing", "dir", cfg.StaticDir, "err", err)
		}
	}
}
