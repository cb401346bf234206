package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pcgarena/internal/api/gateway"
	"pcgarena/internal/config"
	"pcgarena/internal/logging"
	"pcgarena/internal/seed"
	"pcgarena/internal/store"
	"pcgarena/internal/sweeper"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			handleMigrate(cfg, logger)
			return
		case "help":
			printUsage()
			return
		}
	}

	dbConn, err := store.OpenWithPool(cfg.Database.Path, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer dbConn.Close()

	if err := store.RunMigrations(dbConn, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	st := store.New(dbConn)
	if err := seed.Import(context.Background(), st, cfg.Rating, cfg.Database.SeedPath, logger); err != nil {
		logger.Fatal("failed to import seed data", zap.Error(err))
	}

	sw := sweeper.New(st, cfg.Matchmaking.SweepInterval, logger)
	sw.Start()
	defer sw.Stop()

	gw := gateway.New(*cfg, logger, dbConn)

	go func() {
		if err := gw.Start(); err != nil {
			logger.Fatal("gateway failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := gw.Shutdown(ctx); err != nil {
		logger.Error("gateway shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

func handleMigrate(cfg *config.Config, logger *zap.Logger) {
	if len(os.Args) < 3 {
		fmt.Println("Usage: server migrate [up|down|status]")
		os.Exit(1)
	}

	dbConn, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer dbConn.Close()

	var migErr error
	switch os.Args[2] {
	case "up":
		migErr = store.RunMigrations(dbConn, cfg.Database.MigrationsPath)
	case "down":
		migErr = store.Rollback(dbConn, cfg.Database.MigrationsPath)
	case "status":
		migErr = store.Status(dbConn, cfg.Database.MigrationsPath)
	default:
		fmt.Printf("Unknown migration command: %s\n", os.Args[2])
		os.Exit(1)
	}

	if migErr != nil {
		logger.Fatal("migration failed", zap.Error(migErr))
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  server              - Start the API server")
	fmt.Println("  server migrate up   - Run pending migrations")
	fmt.Println("  server migrate down - Rollback the last migration")
	fmt.Println("  server migrate status - Show migration status")
	fmt.Println("  server help         - Show this help message")
}
