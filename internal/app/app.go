package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/herdsearch/herd-search/internal/config"
	"github.com/herdsearch/herd-search/internal/domain/area"
	"github.com/herdsearch/herd-search/internal/domain/squad"
	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/infrastructure/account/google"
	"github.com/herdsearch/herd-search/internal/infrastructure/presence"
	"github.com/herdsearch/herd-search/internal/infrastructure/repository/firestore"
	"github.com/herdsearch/herd-search/internal/infrastructure/repository/memory"
	"github.com/herdsearch/herd-search/internal/interfaces/httpapi"
	"github.com/herdsearch/herd-search/internal/platform/id"
	"github.com/herdsearch/herd-search/internal/platform/logging"
	"github.com/herdsearch/herd-search/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// repositories is the document-store surface the services are wired
// against; both backends satisfy it.
type repositories struct {
	users  user.Repository
	squads squad.Repository
	areas  area.Repository
}

// App owns the HTTP server plus every long-lived resource behind it.
type App struct {
	server    *http.Server
	simulator *usecase.Simulator
	logger    *logging.Logger
	closers   []func() error
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	a := &App{logger: logger}

	repos, err := a.buildRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var mirror usecase.PresenceMirror
	if cfg.RedisEnabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		a.closers = append(a.closers, client.Close)
		mirror = presence.NewRedisMirror(client, cfg.PresenceTTL)
		logger.Info("presence mirror enabled", "addr", cfg.RedisAddr)
	}

	verifier, err := a.buildVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	idGen := id.NewUUIDGenerator()
	membership := usecase.NewMembershipService(repos.users, repos.squads, idGen, logger)
	profiles := usecase.NewProfileService(repos.users, membership, logger)
	locations := usecase.NewLocationService(repos.users, repos.areas, mirror, logger)
	areas := usecase.NewAreaService(repos.areas, idGen, logger)
	watches := usecase.NewWatchService(repos.users, repos.squads, repos.areas, logger)

	simulator, err := usecase.NewSimulator(locations, repos.users, cfg.SimTickInterval, logger)
	if err != nil {
		return nil, fmt.Errorf("init simulator: %w", err)
	}
	a.simulator = simulator

	handler := httpapi.NewHandler(profiles, membership, locations, areas, watches, simulator, logger)
	router := httpapi.NewRouter(handler, verifier, logger, cfg.CORSAllowedOrigins, cfg.DevPasscode)

	a.server = &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		// WriteTimeout stays at the configured value, zero by default: the
		// session watch stream must be allowed to outlive any fixed window.
		WriteTimeout: cfg.WriteTimeout,
	}

	return a, nil
}

func (a *App) buildRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendFirestore:
		st, err := firestore.NewStore(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsPath)
		if err != nil {
			return repositories{}, fmt.Errorf("init firestore: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		a.logger.Info("store backend", "backend", config.StoreBackendFirestore, "project_id", cfg.FirebaseProjectID)
		return repositories{users: st.Users(), squads: st.Squads(), areas: st.Areas()}, nil
	case config.StoreBackendMemory:
		st := memory.NewStore()
		a.logger.Info("store backend", "backend", config.StoreBackendMemory)
		return repositories{users: st.Users(), squads: st.Squads(), areas: st.Areas()}, nil
	default:
		return repositories{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// buildVerifier picks the token verifier. Without a Firebase project the
// dev environment falls back to unsigned dev tokens so the memory backend
// runs offline; every other environment refuses to start.
func (a *App) buildVerifier(ctx context.Context, cfg config.Config) (httpapi.TokenVerifier, error) {
	if cfg.FirebaseProjectID == "" {
		if cfg.AppEnv != config.EnvDev {
			return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required when APP_ENV=%s", cfg.AppEnv)
		}
		a.logger.Warn("firebase project not configured, accepting unsigned dev tokens")
		return google.NewDevVerifier(), nil
	}

	client, err := google.NewClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsPath, cfg.TokenCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("init identity client: %w", err)
	}

	return client, nil
}

// Run serves until ctx is cancelled, then drains connections and releases
// every resource the app opened.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.simulator.Shutdown()

	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close resource failed", "error", err)
		}
	}

	a.logger.Info("http server stopped")

	return nil
}
