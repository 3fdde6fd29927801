// cmd/seeder/main.go
package main

import (
	"context"
	"database/sql"
	_ "embed"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/db"
	"github.com/unclebandit/crm-backend/internal/logger"
	"github.com/unclebandit/crm-backend/internal/model"
)

//go:embed schema.sql
var schema string

func main() {
	users := flag.Int("users", 3000, "number of user_stats rows")
	contents := flag.Int("contents", 50, "number of contents rows")
	createSchema := flag.Bool("schema", true, "create tables if missing")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer conn.Close()

	if *createSchema {
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			log.Fatal().Err(err).Msg("failed to create schema")
		}
	}

	r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	now := time.Now().UTC()

	start := time.Now()
	if err := copyUserStats(ctx, conn, genUserStats(r, *users, now)); err != nil {
		log.Fatal().Err(err).Msg("failed to seed user_stats")
	}
	log.Info().Int("rows", *users).Dur("took", time.Since(start)).Msg("seeded user_stats")

	if err := upsertContents(ctx, conn, genContents(r, *contents), log); err != nil {
		log.Fatal().Err(err).Msg("failed to seed contents")
	}
	log.Info().Int("rows", *contents).Msg("Database seeding completed successfully!")
}

func copyUserStats(ctx context.Context, conn *sql.DB, users []userStat) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("user_stats",
		"email", "name", "gender", "created_at", "last_visited_at", "last_watched_at",
		"recent_watched", "viewed_but_not_started", "started_but_not_finished", "finished",
		"last_email_notification", "last_in_app_notification", "last_sms_notification",
	))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for _, u := range users {
		if _, err := stmt.ExecContext(ctx,
			u.Email, u.Name, u.Gender, u.CreatedAt, u.LastVisitedAt, u.LastWatchedAt,
			pq.Array(u.RecentWatched), pq.Array(u.ViewedButNotStarted),
			pq.Array(u.StartedButNotFinished), pq.Array(u.Finished),
			u.LastEmailNotification, u.LastInAppNotification, u.LastSmsNotification,
		); err != nil {
			stmt.Close()
			return fmt.Errorf("copy row %s: %w", u.Email, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertContents(ctx context.Context, conn *sql.DB, items []model.Content, log zerolog.Logger) error {
	query := `
		INSERT INTO contents (id, name, description, url, type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, url = EXCLUDED.url, type = EXCLUDED.type
	`
	for _, c := range items {
		if _, err := conn.ExecContext(ctx, query, c.ID, c.Name, c.Description, c.URL, c.Type); err != nil {
			return fmt.Errorf("upsert content %d: %w", c.ID, err)
		}
	}
	log.Debug().Int("contents", len(items)).Msg("contents upserted")
	return nil
}
