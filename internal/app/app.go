// Package app wires the services shared by the server and the command-line
// tool from a loaded configuration.
package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"
	_ "time/tzdata" // display timezone on hosts without zoneinfo

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/prodaja/internal/audit"
	"github.com/erazemk/prodaja/internal/auth"
	"github.com/erazemk/prodaja/internal/config"
	"github.com/erazemk/prodaja/internal/db"
	"github.com/erazemk/prodaja/internal/importer"
	"github.com/erazemk/prodaja/internal/listing"
	"github.com/erazemk/prodaja/internal/logger"
	"github.com/erazemk/prodaja/internal/marketplace"
	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/pricing"
	"github.com/erazemk/prodaja/internal/scheduler"
	"github.com/erazemk/prodaja/internal/store"
)

// App holds the long-lived services.
type App struct {
	Config       *config.Config
	DB           *sql.DB
	Location     *time.Location
	Resolver     *pricing.Resolver
	Marketplaces *marketplace.Registry
	Audit        audit.Log
	Importer     *importer.Processor
	Listings     *listing.Orchestrator
	Scheduler    *scheduler.Scheduler
	// Sheets is nil unless spreadsheet import is configured.
	Sheets *importer.SheetSource

	logger  *zap.Logger
	closers []func(context.Context) error
}

// New opens the database and builds every service described by cfg.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}
	fees, err := cfg.FeeSchedules()
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	a := &App{
		Config:   cfg,
		DB:       database,
		Location: loc,
		Resolver: pricing.NewResolver(fees),
		logger:   log,
	}
	a.closers = append(a.closers, func(context.Context) error { return database.Close() })

	a.Marketplaces = a.buildMarketplaces()

	if err := a.openAudit(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if cfg.SheetsEnabled() {
		sheets, err := importer.NewSheetSource(ctx, cfg.Sheets.CredentialsPath, cfg.Sheets.SpreadsheetID,
			logger.Named(log, "sheets"))
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Sheets = sheets
	}

	inventory := store.Inventory{DB: database}
	a.Importer = importer.NewProcessor(inventory, logger.Named(log, "importer"))
	a.Listings = listing.New(inventory, a.Resolver, a.Marketplaces, a.Audit, listing.Options{
		Timeout: cfg.Marketplace.Timeout,
		Logger:  logger.Named(log, "listing"),
	})
	a.Scheduler = scheduler.New(database, a.Resolver, cfg.Schedule, loc, logger.Named(log, "scheduler"))

	return a, nil
}

// buildMarketplaces registers an HTTP client for every platform with a
// configured base URL and the simulated marketplace for the rest.
func (a *App) buildMarketplaces() *marketplace.Registry {
	registry := marketplace.NewRegistry()
	for _, p := range model.Platforms {
		pc := a.Config.Platform(p)
		if pc.BaseURL == "" {
			registry.Register(p, marketplace.NewSimulated(p, a.Resolver))
			a.logger.Info("marketplace simulated", zap.String("platform", string(p)))
			continue
		}
		registry.Register(p, marketplace.NewHTTPClient(p, marketplace.HTTPConfig{
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			Timeout: a.Config.Marketplace.Timeout,
		}))
		a.logger.Info("marketplace api configured", zap.String("platform", string(p)), zap.String("base_url", pc.BaseURL))
	}
	return registry
}

func (a *App) openAudit(ctx context.Context) error {
	switch a.Config.Audit.Backend {
	case config.AuditMongo:
		m, err := audit.NewMongo(ctx, a.Config.Audit.MongoURI, a.Config.Audit.MongoDB)
		if err != nil {
			return err
		}
		a.Audit = m
		a.closers = append(a.closers, m.Close)
	default:
		a.Audit = audit.NewSQLite(a.DB)
	}
	a.logger.Info("audit log ready", zap.String("backend", a.Config.Audit.Backend))
	return nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// LocalAdmin mints the admin capability for username. It is meant for tools
// that already have direct access to the database file.
func (a *App) LocalAdmin(ctx context.Context, username string) (auth.Admin, error) {
	user, err := store.GetUserByUsername(ctx, a.DB, username)
	if err != nil {
		return auth.Admin{}, err
	}
	if user == nil {
		return auth.Admin{}, fmt.Errorf("user %q: %w", username, model.ErrNotFound)
	}
	return auth.AdminFromUser(user)
}

// InitDatabase creates a new database, ensures the schema, and creates the
// admin user. It returns the generated admin password.
func InitDatabase(path, adminUsername string) (string, error) {
	database, err := db.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("ensuring schema: %w", err)
	}

	password, err := GeneratePassword(16)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(context.Background(), database, adminUsername, string(hash), model.RoleAdmin); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("creating admin user: %w", err)
	}

	return password, nil
}

// GeneratePassword creates a random password of the given length.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
