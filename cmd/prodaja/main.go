package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/prodaja/internal/api"
	"github.com/erazemk/prodaja/internal/app"
	"github.com/erazemk/prodaja/internal/config"
	"github.com/erazemk/prodaja/internal/logger"
	"github.com/erazemk/prodaja/internal/store"
)

func main() {
	fs := flag.NewFlagSet("prodaja", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	var dbPath string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")

	var addr string
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")

	var adminUser string
	fs.StringVar(&adminUser, "user", "", "")
	fs.StringVar(&adminUser, "u", "", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: prodaja [flags]

Flags:
  -c, -config <path>      config file (YAML, TOML or JSON; optional)
  -d, -db <path>          SQLite database path (default: prodaja.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Every setting can also be given as a PRODAJA_* environment variable,
e.g. PRODAJA_DB or PRODAJA_MARKETPLACE_X_BASE_URL.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if adminUser != "" {
		cfg.AdminUser = adminUser
	}
	if logPath != "" {
		cfg.Log.File = logPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	// INFO/WARN → stdout, ERROR → stderr, optionally everything to a file.
	log, closeLog, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Error("server error", zap.Error(err))
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		password, err := app.InitDatabase(cfg.DB, cfg.AdminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		printInitResult(cfg.DB, cfg.AdminUser, password)
		fmt.Println()
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Error("failed to close resources", zap.Error(err))
		}
	}()

	log.Info("database ready", zap.String("path", cfg.DB))

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, a.DB)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	if err := a.Scheduler.Start(); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	deps := api.Deps{
		DB:        a.DB,
		JWTSecret: jwtSecret,
		TokenTTL:  cfg.TokenTTL,
		Resolver:  a.Resolver,
		Importer:  a.Importer,
		Listings:  a.Listings,
		Audit:     a.Audit,
		Refresher: a.Scheduler,
		Location:  a.Location,
		Logger:    logger.Named(log, "api"),
	}
	if a.Sheets != nil {
		deps.Sheets = a.Sheets
	}

	handler := api.LoggingMiddleware(logger.Named(log, "http"))(api.NewRouter(deps))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Marketplace.Timeout + 60*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Marketplace.Timeout+5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	log.Info("server started", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	log.Info("server stopped, closing database")
	return nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}
