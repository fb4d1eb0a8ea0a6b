package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/maxviazov/registry-api/internal/config"
	"github.com/maxviazov/registry-api/internal/handler"
	"github.com/maxviazov/registry-api/internal/logger"
	"github.com/maxviazov/registry-api/internal/repository"
	"github.com/maxviazov/registry-api/internal/repository/sqlstore"
	"github.com/maxviazov/registry-api/internal/service"
	"github.com/maxviazov/registry-api/internal/tasks"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load application config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config loading failed: %v", err)
	}

	// Initialize logger
	cfg.Logger.ServiceName, cfg.Logger.ServiceVersion = cfg.App.Name, cfg.App.Version
	appLogger, err := logger.New(&cfg.Logger)
	if err != nil {
		log.Fatalf("❌ Logger initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, appLogger, nil)
	stop()
	// Fatal skips defers; run has already released everything it opened.
	if err != nil {
		appLogger.Fatal().Err(err).Msg("❌ Service failed")
	}
	appLogger.Info().Msg("✅ Service stopped")
}

// run serves until ctx is done or the server fails. ln, when non-nil, replaces the
// listener on cfg.App.Port.
func run(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger, ln net.Listener) error {
	db, err := repository.New(ctx, cfg, &appLogger)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}

	pool, err := tasks.NewPool(cfg.Workers, appLogger)
	if err != nil {
		return fmt.Errorf("worker pool initialization failed: %w", err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			appLogger.Error().Err(err).Msg("worker pool close failed")
		}
	}()

	txManager := sqlstore.NewTxManager(db.DB())
	keywords := sqlstore.NewKeywordRepository(db.DB(), txManager, db.SnapshotTxOptions())
	keywordSvc := service.NewKeywordService(keywords, pool, appLogger)

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(handler.Recovery(appLogger), handler.RequestLogger(appLogger))
	handler.Register(router, db, pool, keywordSvc, cfg.Pagination)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info().Str("addr", srv.Addr).Msg("🚀 Service started")
		var err error
		if ln != nil {
			err = srv.Serve(ln)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var failed error
	select {
	case <-ctx.Done():
		appLogger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			failed = fmt.Errorf("http server failed: %w", err)
		}
	}

	// Deferred in reverse: stop taking requests here, then the pool drains, then the database closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.App.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("http shutdown incomplete")
	}
	return failed
}
