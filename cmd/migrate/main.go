package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"digital-concert-hall/internal/config"
	"digital-concert-hall/internal/database"
	"digital-concert-hall/internal/logging"

	"go.uber.org/zap"
)

func main() {
	var (
		statusFlag = flag.Bool("status", false, "Show migration status")
		upFlag     = flag.Bool("up", false, "Run pending migrations")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := database.NewConnection(database.Config{
		Driver:     cfg.Database.Driver,
		URL:        cfg.Database.URL,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		DBName:     cfg.Database.DBName,
		SSLMode:    cfg.Database.SSLMode,
		SQLitePath: cfg.Database.SQLitePath,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db.DB).WithLogger(logger)

	switch {
	case *statusFlag:
		if err := migrator.CreateMigrationsTable(); err != nil {
			logger.Fatal("failed to create migrations table", zap.Error(err))
		}
		statuses, err := migrator.Status()
		if err != nil {
			logger.Fatal("failed to get migration status", zap.Error(err))
		}
		for _, s := range statuses {
			mark := " "
			if s.Applied {
				mark = "x"
			}
			fmt.Printf("[%s] %03d %s\n", mark, s.Version, s.Name)
		}
	case *upFlag:
		if err := migrator.RunMigrations(); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		fmt.Println("All migrations completed successfully!")
	default:
		fmt.Println("Usage:")
		fmt.Println("  go run cmd/migrate/main.go -status   # Show migration status")
		fmt.Println("  go run cmd/migrate/main.go -up       # Run pending migrations")
		os.Exit(1)
	}
}
