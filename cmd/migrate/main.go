// Command migrate applies pending database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/alphamachine/engine/internal/config"
	"github.com/alphamachine/engine/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Config directory (defaults to ./ and ./config)")
	dir := flag.String("migrations", "migrations", "Path to migrations directory")
	dsn := flag.String("dsn", "", "Database connection string (defaults from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	if *dsn == "" {
		*dsn = cfg.Database.GetDSN()
	}

	migrator, err := store.NewMigrator(*dsn, *dir, config.NewLogger("migrate"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open migration connection: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}
