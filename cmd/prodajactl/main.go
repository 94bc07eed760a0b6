package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/erazemk/prodaja/internal/api"
	"github.com/erazemk/prodaja/internal/app"
	"github.com/erazemk/prodaja/internal/config"
	"github.com/erazemk/prodaja/internal/importer"
	"github.com/erazemk/prodaja/internal/logger"
	"github.com/erazemk/prodaja/internal/model"
)

const usage = "Usage: prodajactl <init|import|logs> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit(os.Args[2:])
	case "import":
		err = cmdImport(os.Args[2:])
	case "logs":
		err = cmdLogs(os.Args[2:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (configPath, dbPath *string) {
	configPath = fs.String("config", "", "config file (optional)")
	dbPath = fs.String("db", "", "path to SQLite database file (default: prodaja.sqlite3)")
	return configPath, dbPath
}

func loadConfig(configPath, dbPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func requireDatabase(cfg *config.Config) error {
	if _, err := os.Stat(cfg.DB); err != nil {
		return fmt.Errorf("database %s not found, run prodajactl init first", cfg.DB)
	}
	return nil
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	user := fs.String("user", "", "admin username (default: Admin)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, *dbPath)
	if err != nil {
		return err
	}
	if *user != "" {
		cfg.AdminUser = *user
	}

	if _, err := os.Stat(cfg.DB); err == nil {
		return fmt.Errorf("database file %s already exists", cfg.DB)
	}

	password, err := app.InitDatabase(cfg.DB, cfg.AdminUser)
	if err != nil {
		return err
	}

	fmt.Printf("Database created: %s\n", cfg.DB)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", cfg.AdminUser)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	return nil
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	user := fs.String("user", "", "admin performing the import (default: configured admin_user)")
	sheetRange := fs.String("sheet", "", "read this range from the configured spreadsheet instead of a CSV file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, *dbPath)
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}
	if *user == "" {
		*user = cfg.AdminUser
	}

	log, closeLog, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	var rows []importer.RawRow
	switch {
	case *sheetRange != "":
		if a.Sheets == nil {
			return fmt.Errorf("sheets import is not configured")
		}
		rows, err = a.Sheets.Rows(ctx, *sheetRange)
	case fs.NArg() == 1:
		rows, err = readCSVFile(fs.Arg(0))
	default:
		return fmt.Errorf("usage: prodajactl import [flags] <file.csv>")
	}
	if err != nil {
		return err
	}

	admin, err := a.LocalAdmin(ctx, *user)
	if err != nil {
		return err
	}

	result, err := a.Importer.Import(ctx, admin, rows)
	printImportResult(os.Stdout, result)
	return err
}

func readCSVFile(path string) ([]importer.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.ReadCSV(f)
}

func printImportResult(w io.Writer, r importer.Result) {
	fmt.Fprintf(w, "Applied %d rows (%d created, %d updated), %d rejected.\n",
		r.SuccessCount, r.Created, r.Updated, len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  row %d: %s\n", e.Row, e.Message)
	}
}

func cmdLogs(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	configPath, dbPath := commonFlags(fs)
	phoneID := fs.Int64("phone", 0, "only attempts for this phone id")
	platform := fs.String("platform", "", "only attempts on this platform (X, Y or Z)")
	failed := fs.Bool("failed", false, "only failed attempts")
	limit := fs.Int("n", model.DefaultListingLimit, "maximum entries to show")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, *dbPath)
	if err != nil {
		return err
	}

	if err := requireDatabase(cfg); err != nil {
		return err
	}

	filter := model.ListingFilter{PhoneID: *phoneID, Limit: *limit}
	if *platform != "" {
		p, err := model.ParsePlatform(*platform)
		if err != nil {
			return err
		}
		filter.Platform = p
	}
	if *failed {
		success := false
		filter.Success = &success
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	entries, err := a.Audit.List(ctx, filter)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tPHONE\tPLATFORM\tOK\tPRICE\tMESSAGE")
	for _, e := range entries {
		price := "-"
		if e.AttemptedPrice.Valid {
			price = e.AttemptedPrice.Decimal.StringFixed(2)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.CreatedAt.In(a.Location).Format(api.DisplayTimeFormat),
			e.PhoneID,
			e.Platform,
			strconv.FormatBool(e.Success),
			price,
			e.Message,
		)
	}
	return tw.Flush()
}
