// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/crowdpick/internal/auth"
	"github.com/jason-s-yu/crowdpick/internal/cache"
	"github.com/jason-s-yu/crowdpick/internal/config"
	"github.com/jason-s-yu/crowdpick/internal/database"
	"github.com/jason-s-yu/crowdpick/internal/handlers"
	"github.com/jason-s-yu/crowdpick/internal/questions"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	logger := cfg.Logger()

	if err := auth.Init(cfg.TokenExpire); err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.Postgres.ConnString()); err != nil {
		logger.Fatal(err)
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal(err)
	}
	if cfg.SeedQuestionFile != "" {
		if err := seedCatalog(ctx, cfg.SeedQuestionFile); err != nil {
			logger.Fatal(err)
		}
		logger.Infof("seeded question tables from %s", cfg.SeedQuestionFile)
	}

	catalog, err := loadCatalog(ctx, cfg)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("loaded %d panels and %d questions", len(catalog.Panels), len(catalog.Questions))

	bank := questions.NewBank(catalog.Questions, questions.WithShuffle(time.Now().UnixNano()))
	srv := handlers.NewSessionServer(bank, catalog.Panels, logger)
	srv.RegisterSession = database.CreateSessionRow
	srv.RecordRound = database.RecordRoundOutcome
	srv.RecordResult = database.RecordSessionResult

	if !cfg.Redis.Disabled {
		queue, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.QueueName)
		if err != nil {
			logger.Fatal(err)
		}
		defer queue.Close()
		srv.Publisher = queue
	} else {
		logger.Warn("redis disabled, session actions will not reach the historian")
	}

	go pruneLoop(ctx, srv, cfg.SessionIdleTimeout)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.Routes(srv, logger, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("failed to serve: %v", err)
		}
	case <-ctx.Done():
		logger.Info("terminating")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// loadCatalog prefers QUESTION_FILE and falls back to the questions table.
func loadCatalog(ctx context.Context, cfg config.Config) (*questions.Catalog, error) {
	if cfg.QuestionFile != "" {
		return questions.LoadFile(cfg.QuestionFile)
	}
	catalog, err := database.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions from postgres: %w", err)
	}
	return catalog, nil
}

func seedCatalog(ctx context.Context, path string) error {
	catalog, err := questions.LoadFile(path)
	if err != nil {
		return err
	}
	if err := database.SeedCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("seed questions into postgres: %w", err)
	}
	return nil
}

func pruneLoop(ctx context.Context, srv *handlers.SessionServer, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.PruneIdle(maxIdle)
		}
	}
}
