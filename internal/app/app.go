package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/marky/internal/auth"
	"github.com/MrSnakeDoc/marky/internal/config"
	"github.com/MrSnakeDoc/marky/internal/database"
	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/httpserver"
	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/httpserver/ws"
	"github.com/MrSnakeDoc/marky/internal/importer"
	"github.com/MrSnakeDoc/marky/internal/index"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/netutil"
	"github.com/MrSnakeDoc/marky/internal/scheduler"
	"github.com/MrSnakeDoc/marky/internal/store"
	"github.com/MrSnakeDoc/marky/internal/version"
)

type App struct {
	cfg        *config.Config
	logger     logger.Logger
	server     *httpserver.Server
	backend    *backend
	authDB     *sql.DB
	auth       *auth.Service
	bookmarks  *store.Service
	reconciler *store.Reconciler
	reloader   *scheduler.BookmarkReloader
	sessionGC  *scheduler.SessionCollector
	hub        *ws.Hub
	closeOnce  sync.Once
}

// New opens every store and builds the server. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	authDB, err := database.Open(cfg.AuthDBPath)
	if err != nil {
		return nil, err
	}
	authSvc, err := auth.NewService(ctx, authDB, auth.WithTTL(cfg.SessionTTL))
	if err != nil {
		_ = authDB.Close()
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}
	loggerClient.Info("auth database ready", logger.String("path", cfg.AuthDBPath))

	be, err := openBackend(ctx, cfg, loggerClient)
	if err != nil {
		_ = authDB.Close()
		return nil, err
	}

	// Initialize memory index
	memIndex := index.NewMemoryIndex()
	bookmarks := store.NewService(be.store, memIndex, loggerClient)

	// every reconciliation is pushed to the owner's open sockets
	hub := ws.NewHub(loggerClient.With(logger.String("component", "ws")), nil)
	reconciler := store.NewReconciler(bookmarks, be.broker,
		loggerClient.With(logger.String("component", "reconciler"), logger.String("backend", be.name)))
	reconciler.OnReload(hub.BookmarksReloaded)

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)
	reloader := scheduler.NewBookmarkReloader(reconciler, loggerClient, cfg.ReloadInterval, reloadTrigger)

	sessionGC := scheduler.NewSessionCollector(authSvc, loggerClient, cfg.SessionGCInterval)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedHosts:  cfg.AllowedHosts,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		Backend:       be.name,
		Bookmarks:     bookmarks,
		Auth:          authSvc,
		Hub:           hub,
		RedisClient:   be.redisClient,
		ReloadTrigger: reloadTrigger,
		ReadyChecks: map[string]deps.ReadyCheck{
			"auth":  authDB.PingContext,
			be.name: be.ready,
		},
		SessionTTL:        cfg.SessionTTL,
		SecureCookies:     cfg.SecureCookies,
		LoginBurst:        cfg.LoginBurst,
		LoginRefillPerMin: cfg.LoginRefillPerMin,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:        cfg,
		logger:     loggerClient,
		server:     server,
		backend:    be,
		authDB:     authDB,
		auth:       authSvc,
		bookmarks:  bookmarks,
		reconciler: reconciler,
		reloader:   reloader,
		sessionGC:  sessionGC,
		hub:        hub,
	}, nil
}

// Run serves until SIGINT/SIGTERM or a fatal component error, then
// shuts everything down.
func (a *App) Run(parent context.Context) error {
	a.logger.Infof("🚀 Starting Marky v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.Close()

	if a.cfg.SeedFile != "" {
		if err := a.seed(ctx); err != nil {
			return err
		}
	}

	// Start the reconciler before the reloader so its first pass is pushed
	if err := a.reconciler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bookmark reloader: %w", err)
	}
	a.logger.Info("bookmark reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	if err := a.sessionGC.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session collector: %w", err)
	}
	a.logger.Info("session collector started",
		logger.Duration("interval", a.cfg.SessionGCInterval))

	if w := a.backend.watcher; w != nil {
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start slot watcher: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.forwardSessionEvents(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("⏳ Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.Info("✅ Marky stopped cleanly")
	return nil
}

// forwardSessionEvents disconnects sockets whose session ended.
func (a *App) forwardSessionEvents(ctx context.Context) {
	for ev := range a.auth.Subscribe(ctx) {
		switch ev.Type {
		case auth.EventSignedOut, auth.EventExpired:
			a.hub.EndSession(ev.Session.Token, string(ev.Type))
		}
	}
}

// Close stops background work and releases every store. It is safe to
// call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.reloader.Stop()
		a.sessionGC.Stop()
		a.reconciler.Stop()
		if w := a.backend.watcher; w != nil {
			w.Stop()
		}
		a.hub.Close()
		a.backend.close(a.logger)

		netutil.CloseLogged(a.authDB, a.logger, "auth database")
	})
}

// Bookmarks exposes the bookmark service, for the CLI.
func (a *App) Bookmarks() *store.Service {
	return a.bookmarks
}

// SessionFor signs in with credentials. On the local backend, where the
// collection has no owner, an empty email yields the shared session.
func (a *App) SessionFor(ctx context.Context, email, password string) (domain.Session, error) {
	if email == "" {
		if a.backend.name != store.BackendLocal {
			return domain.Session{}, fmt.Errorf("an account is required for the %s backend", a.backend.name)
		}
		return store.SystemSession(""), nil
	}
	return a.auth.SignIn(ctx, email, password)
}

// ImportFile loads a bookmark file into sess's collection.
func (a *App) ImportFile(ctx context.Context, sess domain.Session, path string) (store.ImportResult, error) {
	entries, err := importer.LoadFile(path)
	if err != nil {
		return store.ImportResult{}, err
	}
	res, err := a.bookmarks.Import(ctx, sess, entries)
	if err != nil {
		return res, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return res, nil
}

// seed imports MARKY_SEED_FILE. Already known URLs are skipped, so it is
// safe on every start.
func (a *App) seed(ctx context.Context) error {
	sess := store.SystemSession("")
	if a.backend.name != store.BackendLocal {
		if a.cfg.SeedUser == "" {
			a.logger.Warn("seed file ignored: MARKY_SEED_USER is required for remote backends",
				logger.String("file", a.cfg.SeedFile))
			return nil
		}
		userID, err := a.auth.LookupUser(ctx, a.cfg.SeedUser)
		if err != nil {
			return fmt.Errorf("failed to resolve seed user: %w", err)
		}
		sess = store.SystemSession(userID)
	}

	res, err := a.ImportFile(ctx, sess, a.cfg.SeedFile)
	if err != nil {
		return err
	}
	a.logger.Info("seed file imported",
		logger.String("file", a.cfg.SeedFile),
		logger.Int("imported", res.Imported),
		logger.Int("skipped", res.Skipped))
	return nil
}
