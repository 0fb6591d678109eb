// Command authcore-migrate applies the embedded schema migrations to a
// Postgres database.
//
//	AUTHCORE_DATABASE_DSN=postgres://... authcore-migrate
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/authcore-io/authcore/internal/postgres"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall migration timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	dsn := os.Getenv("AUTHCORE_DATABASE_DSN")
	if dsn == "" {
		logger.Error("AUTHCORE_DATABASE_DSN is not set")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := postgres.Migrate(ctx, dsn); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")
}
