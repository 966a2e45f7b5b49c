package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/models"
	"slotbook/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/slotbook.db", "path to sqlite db")
		configPath  = flag.String("config", "", "optional config.yaml for booking rules (allowed durations)")
	)
	flag.Parse()

	var bookingCfg config.BookingConfig
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		bookingCfg = cfg.Booking
	}

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var catalog models.Catalog
	if err = yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(catalog.Businesses) == 0 {
		return fmt.Errorf("no businesses in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalogService := service.NewCatalogService(db, nil, bookingCfg, &logger)
	created, err := catalogService.ImportCatalog(ctx, &catalog)
	if err != nil {
		logger.Error().Err(err).Int("created", created).Msg("catalog import stopped")
		return err
	}

	logger.Info().Int("businesses", created).Str("db", *dbPath).Msg("catalog imported")
	return nil
}
