package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/buildrelay/procurement-backend/pkg/config"
	"github.com/buildrelay/procurement-backend/pkg/migrate"
)

func main() {
	var (
		cmd     = flag.String("cmd", "up", "goose command: up | down | status | version | create | validate")
		dir     = flag.String("dir", migrate.DefaultDir, "migrations directory")
		name    = flag.String("name", "", "migration name (create only)")
		version = flag.String("version", "", "target version YYYYMMDDHHMMSS (version only)")
	)
	flag.Parse()

	if err := run(*cmd, *dir, *name, *version); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd, dir, name, version string) error {
	// create and validate work purely on files, no DB required
	switch cmd {
	case "create":
		path, err := migrate.CreateSQLMigration(dir, name)
		if err != nil {
			return err
		}
		fmt.Printf("created %s\n", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", dir)
		return nil
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	switch cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, db, dir, cmd)
	case "version":
		return migrate.MigrateToVersion(ctx, db, dir, version)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
