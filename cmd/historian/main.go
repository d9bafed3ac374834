// cmd/historian is an asynchronous historian service that pops session actions
// from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jason-s-yu/crowdpick/internal/cache"
	"github.com/jason-s-yu/crowdpick/internal/config"
	"github.com/jason-s-yu/crowdpick/internal/database"
	"github.com/jason-s-yu/crowdpick/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// pgSink routes historian writes to the database package.
type pgSink struct{}

func (pgSink) InsertSessionActions(ctx context.Context, records []cache.SessionActionRecord) error {
	return database.InsertSessionActions(ctx, records)
}

func (pgSink) MarkSessionAbandoned(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return database.MarkSessionAbandoned(ctx, sessionID)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.Postgres.ConnString()); err != nil {
		logger.Fatal(err)
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal(err)
	}

	queue, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.QueueName)
	if err != nil {
		logger.Fatal(err)
	}
	defer queue.Close()

	svc := historian.New(queue.Client, queue.Name, pgSink{}, cfg.Historian, logger)
	if err := svc.Run(ctx); err != nil {
		logger.Fatal(err)
	}
}
