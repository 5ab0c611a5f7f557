// Package bootstrap owns the service lifecycle: configuration loading,
// dependency initialisation in declared order, and graceful shutdown.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	domainauth "authgate/internal/domain/auth"
	"authgate/internal/domain/auth/credential"
	"authgate/internal/domain/auth/guard"
	"authgate/internal/domain/auth/repository"
	"authgate/internal/domain/auth/session"
	authstore "authgate/internal/domain/auth/store"
	"authgate/internal/domain/auth/token"
	platformconfig "authgate/internal/platform/config"
	platformerrors "authgate/internal/platform/errors"
	platformlogging "authgate/internal/platform/logging"
	platformstorage "authgate/internal/platform/storage"
	httptransport "authgate/internal/transport/http"
	httpauthapi "authgate/internal/transport/http/authapi"
)

const (
	shutdownGrace = 10 * time.Second
	shutdownLimit = 15 * time.Second
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config      *platformconfig.Config
	configPath  string
	logProvider *platformlogging.Logger
	db          *gorm.DB
	accounts    repository.Accounts
	kv          authstore.Store
	verifier    *credential.Verifier
	engine      *domainauth.Engine
}

// Run drives the whole service lifecycle and blocks until shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	if err := executeInitSteps(ctx, InitGraph(), state); err != nil {
		return err
	}

	config := state.config
	logger := state.logProvider
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.engine == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"auth engine not initialised",
		)
	}

	defer func() {
		if state.kv != nil {
			if err := state.kv.Close(context.Background()); err != nil {
				logger.Error("ephemeral store close failed: %v", err)
			}
		}
		if state.db != nil {
			if err := platformstorage.Close(state.db); err != nil {
				logger.Error("database close failed: %v", err)
			}
		}
		logger.Close()
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	return waitForShutdown(signalCtx, cancel, logger, group)
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if stderrors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph declares the dependency-ordered initialisation steps.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database and run migrations",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "storage:seed-admin",
			Title:     "Seed initial admin account",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   seedAdminStep,
		},
		{
			ID:        "store:init-ephemeral",
			Title:     "Initialise ephemeral store",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEphemeralStoreStep,
		},
		{
			ID:        "auth:init-engine",
			Title:     "Initialise authentication engine",
			DependsOn: []string{"storage:init-database", "store:init-ephemeral"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEngineStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().WithDotEnv(true).Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logProvider, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logProvider = logProvider
	logProvider.Info("logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Database)
	if err != nil {
		return err
	}
	if err := platformstorage.Migrate(db); err != nil {
		return err
	}

	state.db = db
	state.accounts = platformstorage.NewAccountRepository(db)
	state.logProvider.Info("database ready driver=%s", state.config.Database.Driver)
	return nil
}

func seedAdminStep(ctx context.Context, state *appState) error {
	state.verifier = credential.NewVerifier(0)
	return platformstorage.EnsureInitialAdmin(
		ctx,
		state.accounts,
		state.verifier,
		state.config.Auth.InitialAdmin,
		state.logProvider,
	)
}

func initEphemeralStoreStep(_ context.Context, state *appState) error {
	cfg := state.config.Store
	storeCfg := authstore.Config{Driver: cfg.Driver}

	switch storeCfg.Driver {
	case authstore.DriverRedis:
		if cfg.Redis.Addr == "" {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				"store:init-ephemeral",
				"redis store addr is required",
			)
		}
		storeCfg.Redis = &authstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	case authstore.DriverMemory, "":
		storeCfg.Driver = authstore.DriverMemory
		storeCfg.Memory = &authstore.MemoryConfig{GCInterval: cfg.Memory.GCInterval}
	default:
		state.logProvider.Warn("unsupported store driver %s, falling back to memory", cfg.Driver)
		storeCfg.Driver = authstore.DriverMemory
		storeCfg.Memory = &authstore.MemoryConfig{GCInterval: cfg.Memory.GCInterval}
	}

	kv, err := authstore.New(storeCfg)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "store:init-ephemeral", "failed to create ephemeral store", err)
	}
	state.kv = kv
	state.logProvider.Info("ephemeral store ready driver=%s", storeCfg.Driver)
	return nil
}

func initEngineStep(_ context.Context, state *appState) error {
	authCfg := state.config.Auth

	codec, err := token.NewCodec(authCfg.Secret, authCfg.SessionTTL)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "auth:init-engine", "failed to create token codec", err)
	}

	sessions, err := session.New(session.Options{
		Codec:  codec,
		Store:  state.kv,
		Logger: state.logProvider,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "auth:init-engine", "failed to create session manager", err)
	}

	abuse, err := guard.New(guard.Options{
		Store:            state.kv,
		Accounts:         state.accounts,
		Logger:           state.logProvider,
		MaxAttempts:      authCfg.RateLimitMax,
		Window:           authCfg.RateLimitWindow,
		LockoutThreshold: authCfg.LockoutThreshold,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "auth:init-engine", "failed to create abuse guard", err)
	}

	engine, err := domainauth.NewEngine(domainauth.Options{
		Accounts:    state.accounts,
		Guard:       abuse,
		Sessions:    sessions,
		Verifier:    state.verifier,
		Store:       state.kv,
		Logger:      state.logProvider,
		CallTimeout: authCfg.CallTimeout,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "auth:init-engine", "failed to create auth engine", err)
	}

	state.engine = engine
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logProvider

	router, err := httptransport.Build(httptransport.Options{
		Config:         config,
		Logger:         logger,
		AuthMiddleware: httptransport.RequireSession(state.engine.Sessions(), logger),
	})
	if err != nil {
		return nil, err
	}

	authService, err := httpauthapi.NewService(state.engine, config, logger)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "authapi:new-service", "failed to create auth api service", err)
	}
	if err := authService.Register(groupCtx, router.Auth); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "authapi:register", "failed to register auth routes", err)
	}
	if err := authService.RegisterProtected(groupCtx, router.Secured); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "authapi:register", "failed to register protected routes", err)
	}

	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: router.Engine,
	}

	g.Go(func() error {
		logger.Info("[HTTP] listening on %s", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("[HTTP] shutdown failed: %v", err)
			} else {
				logger.Info("[HTTP] server stopped cleanly")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Error("[HTTP] server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.Info("shutdown signal received, cleaning up")

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown finished with error: %v", err)
			return err
		}
		logger.Info("all services stopped")
	case <-time.After(shutdownLimit):
		logger.Error("shutdown timed out, forcing exit")
		return stderrors.New("shutdown timed out")
	}
	return nil
}
