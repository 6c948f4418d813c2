package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/campusaid/aidmap/internal/adapters/postgres"
	"github.com/campusaid/aidmap/internal/pkg/config"
	"github.com/campusaid/aidmap/internal/pkg/logging"
	"github.com/campusaid/aidmap/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status>")
	}

	cfg, err := config.Load("aidmap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text", cfg.Telemetry.ServiceName)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		applied, err := db.Migrate(ctx, migrations.FS)
		for _, name := range applied {
			fmt.Printf("OK  %s\n", name)
		}
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		if len(applied) == 0 {
			log.Println("schema already up to date")
		} else {
			log.Println("all migrations applied")
		}
	case "status":
		pending, err := db.PendingMigrations(ctx, migrations.FS)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		if len(pending) == 0 {
			fmt.Println("no pending migrations")
			return
		}
		for _, name := range pending {
			fmt.Printf("PENDING  %s\n", name)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}
