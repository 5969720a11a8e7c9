package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/taxiportal/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status>")
	}

	cfg, err := config.Load("taxiportal-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		log.Fatalf("schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, pool)
	case "down":
		rollbackLast(ctx, pool)
	case "status":
		printStatus(ctx, pool)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// upFiles lists forward migrations in name order.
func upFiles() []string {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		log.Fatalf("glob: %v", err)
	}
	var ups []string
	for _, f := range files {
		if !strings.HasSuffix(f, ".down.sql") {
			ups = append(ups, f)
		}
	}
	sort.Strings(ups)
	return ups
}

func applied(ctx context.Context, pool *pgxpool.Pool) map[string]bool {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}
	done := make(map[string]bool, len(names))
	for _, n := range names {
		done[n] = true
	}
	return done
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) {
	done := applied(ctx, pool)

	for _, f := range upFiles() {
		name := filepath.Base(f)
		if done[name] {
			continue
		}

		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}

func rollbackLast(ctx context.Context, pool *pgxpool.Pool) {
	var name string
	err := pool.QueryRow(ctx, `SELECT name FROM schema_migrations ORDER BY name DESC LIMIT 1`).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Println("nothing to roll back")
		return
	}
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}

	down := filepath.Join(migrationsDir, strings.TrimSuffix(name, ".sql")+".down.sql")
	data, err := os.ReadFile(down)
	if err != nil {
		log.Fatalf("read %s: %v", down, err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE name = $1`, name)
		return err
	})
	if err != nil {
		log.Fatalf("exec %s: %v", down, err)
	}
	fmt.Printf("OK  %s\n", down)
}

func printStatus(ctx context.Context, pool *pgxpool.Pool) {
	done := applied(ctx, pool)
	for _, f := range upFiles() {
		state := "pending"
		if done[filepath.Base(f)] {
			state = "applied"
		}
		fmt.Printf("%-8s %s\n", state, filepath.Base(f))
	}
}
