package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hirewire/interview-gateway/internal/dotenv"
	"github.com/hirewire/interview-gateway/pkg/gateway/config"
	gatewayserver "github.com/hirewire/interview-gateway/pkg/gateway/server"
	"github.com/hirewire/interview-gateway/pkg/interview/intel/gemini"
	"github.com/hirewire/interview-gateway/pkg/interview/media"
	"github.com/hirewire/interview-gateway/pkg/interview/store/memory"
	"github.com/hirewire/interview-gateway/pkg/interview/store/postgres"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	buildBackend func(context.Context, config.Config, *slog.Logger) (gatewayserver.Deps, func(), error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig:   config.LoadFromEnv,
		buildBackend: buildBackend,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// buildBackend wires the store, AI adapter and media storage from config.
// The returned cleanup closes whatever was opened.
func buildBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (gatewayserver.Deps, func(), error) {
	deps := gatewayserver.Deps{}
	cleanup := func() {}

	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return deps, cleanup, fmt.Errorf("open postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return deps, cleanup, fmt.Errorf("migrate: %w", err)
		}
		deps.Store = pg
		cleanup = pg.Close
		logger.Info("using postgres store")
	} else {
		deps.Store = memory.New()
		logger.Warn("no INTERVIEW_DATABASE_URL set, using in-memory store")
	}

	if cfg.GeminiAPIKey != "" {
		adapter, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.IntelTimeout)
		if err != nil {
			cleanup()
			return deps, func() {}, fmt.Errorf("init gemini: %w", err)
		}
		deps.Intel = adapter
		logger.Info("gemini adapter enabled", "model", cfg.GeminiModel)
	} else {
		logger.Warn("no GEMINI_API_KEY set, AI responses fall back to canned messages")
	}

	if cfg.S3Enabled() {
		s3store, err := media.NewS3Store(ctx, media.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
		})
		if err != nil {
			cleanup()
			return deps, func() {}, fmt.Errorf("init s3 storage: %w", err)
		}
		deps.Media = s3store
		logger.Info("recordings stored in s3", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
	} else {
		local, err := media.NewLocalStore(cfg.RecordingsDir)
		if err != nil {
			cleanup()
			return deps, func() {}, fmt.Errorf("init local storage: %w", err)
		}
		deps.Media = local
		logger.Info("recordings stored locally", "dir", cfg.RecordingsDir)
	}

	return deps, cleanup, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil || deps.buildBackend == nil {
		return errors.New("missing backend dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	backend, cleanup, err := deps.buildBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	gw := gatewayserver.New(cfg, logger, backend)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway", "addr", cfg.Addr, "auth_mode", cfg.AuthMode)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.Lifecycle().BeginDrain()
	gw.Connections().NotifyAll("Server is shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.Connections().Wait(waitCtx) {
		gw.Connections().CancelAll()
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.DispatchDrainTimeout)
	defer drainCancel()
	if !gw.Dispatcher().Shutdown(drainCtx) {
		logger.Warn("dispatcher drain timed out, discarding in-flight work")
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "interview-gateway: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "interview-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
