// Command migrate applies or reverts the embedded schema migrations.
//
//	migrate -database-url postgres://... up
//	migrate down
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/heylo/heylo/migrations"
)

func main() {
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	timeout := flag.Duration("timeout", time.Minute, "Overall timeout")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [flags] up|down|status")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(2)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("postgres", *databaseURL)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := run(ctx, db, flag.Arg(0), logger); err != nil {
		logger.Error("migration failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	switch command {
	case "up":
		applied, err := migrations.Up(ctx, db)
		for _, v := range applied {
			logger.Info("applied", "version", v)
		}
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			logger.Info("schema is up to date")
		}
	case "down":
		reverted, err := migrations.Down(ctx, db)
		if err != nil {
			return err
		}
		if reverted == "" {
			logger.Info("nothing to revert")
			return nil
		}
		logger.Info("reverted", "version", reverted)
	case "status":
		all, err := migrations.Load()
		if err != nil {
			return err
		}
		for _, m := range all {
			var applied bool
			err := db.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
			).Scan(&applied)
			if err != nil {
				return fmt.Errorf("read schema_migrations: %w", err)
			}
			logger.Info("migration", "version", m.Version, "applied", applied)
		}
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
