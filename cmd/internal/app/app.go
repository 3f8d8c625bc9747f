// Package app wires the seatguard server runtime: config, logging, the
// session store, HTTP routes, and the eviction watch gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"seatguard/cmd/internal/notify"
	"seatguard/cmd/internal/session"
	sessionapi "seatguard/cmd/internal/session/api"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the seatguard server runtime.
type App struct {
	cfg     Config
	sessCfg session.Config
	log     Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	svc   *session.Service
	api   *sessionapi.Handler
	watch *notify.WSGateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	store, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	hub := notify.NewHub(log)
	svc := session.NewService(sessCfg, store, log, session.WithNotifier(hub))
	api := sessionapi.NewHandler(log, sessionapi.LoadConfigFromEnv(), svc)
	watch := notify.NewWSGateway(log, hub, cfg.WSOriginPatterns, cfg.WSDevInsecure)

	return &App{
		cfg:       cfg,
		sessCfg:   sessCfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		svc:       svc,
		api:       api,
		watch:     watch,
	}, nil
}

// Run starts the HTTP server and the idle-session reaper, and blocks until
// context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.api, a.watch)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	reapCtx, stopReaper := context.WithCancel(ctx)
	reaperDone := a.startReaper(reapCtx)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		runErr = err
	}

	stopReaper()
	<-reaperDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return runErr
}

// startReaper launches the idle-session sweep loop. Disabled when the
// session idle timeout is zero.
func (a *App) startReaper(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	if a.sessCfg.IdleTimeout <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)

		t := time.NewTicker(nonZeroDuration(a.cfg.ReapInterval, 10*time.Minute))
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := a.svc.ReapIdle(ctx, time.Now().UTC()); err != nil {
					a.log.Warn("reaper.sweep.fail", "err", err)
				}
			}
		}
	}()

	return done
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

// newStore decides between Postgres-backed persistence and the in-memory
// dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (session.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return session.NewMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return session.NewPostgresStore(pool), pool, true, nil
}
