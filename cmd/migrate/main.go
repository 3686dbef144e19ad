package main

import (
	"flag"
	"log"

	"adangle-backend/internal/config"
	"adangle-backend/internal/database"
	"adangle-backend/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	list := flag.Bool("list", false, "print the embedded migrations and exit")
	flag.Parse()

	if *list {
		names, err := database.Migrations()
		if err != nil {
			log.Fatalf("Failed to list migrations: %v", err)
		}
		for _, name := range names {
			log.Println(name)
		}
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	migrator, err := database.NewMigrator(cfg.DatabaseURL, appLog)
	if err != nil {
		appLog.Fatal("failed to initialize migrator", "error", err)
	}
	defer migrator.Close()

	if err := migrator.Run(); err != nil {
		appLog.Fatal("migration failed", "error", err)
	}
	appLog.Info("migrations completed")
}
