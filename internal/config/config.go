// Package config loads service settings from defaults, an optional config
// file, a .env file and PRODAJA_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/pricing"
)

// EnvPrefix prefixes every environment variable, e.g. PRODAJA_DB.
const EnvPrefix = "PRODAJA"

// Audit log backends.
const (
	AuditSQLite = "sqlite"
	AuditMongo  = "mongo"
)

// Config is the full configuration surface.
type Config struct {
	DB        string        `mapstructure:"db"`
	Addr      string        `mapstructure:"addr"`
	AdminUser string        `mapstructure:"admin_user"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// Timezone is used to render listing log timestamps.
	Timezone string `mapstructure:"timezone"`

	Log         LogConfig         `mapstructure:"log"`
	Fees        FeesConfig        `mapstructure:"fees"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Sheets      SheetsConfig      `mapstructure:"sheets"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// FeeConfig is one platform's commission. Values are decimal strings.
type FeeConfig struct {
	Rate string `mapstructure:"rate"`
	Flat string `mapstructure:"flat"`
}

// FeesConfig holds the commission of every platform.
type FeesConfig struct {
	X FeeConfig `mapstructure:"x"`
	Y FeeConfig `mapstructure:"y"`
	Z FeeConfig `mapstructure:"z"`
}

// PlatformConfig points a platform at its listing API. An empty BaseURL
// selects the built-in simulated marketplace.
type PlatformConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// MarketplaceConfig configures marketplace submissions.
type MarketplaceConfig struct {
	Timeout time.Duration  `mapstructure:"timeout"`
	X       PlatformConfig `mapstructure:"x"`
	Y       PlatformConfig `mapstructure:"y"`
	Z       PlatformConfig `mapstructure:"z"`
}

// AuditConfig selects where listing attempts are recorded.
type AuditConfig struct {
	Backend  string `mapstructure:"backend"`
	MongoURI string `mapstructure:"mongo_uri"`
	MongoDB  string `mapstructure:"mongo_db"`
}

// SheetsConfig enables importing from Google Sheets when both fields are set.
type SheetsConfig struct {
	CredentialsPath string `mapstructure:"credentials_path"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
}

// ScheduleConfig holds cron specs for background jobs. An empty spec
// disables the job.
type ScheduleConfig struct {
	PriceRefresh string `mapstructure:"price_refresh"`
	TokenPurge   string `mapstructure:"token_purge"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", "prodaja.sqlite3")
	v.SetDefault("addr", ":8080")
	v.SetDefault("admin_user", "Admin")
	v.SetDefault("token_ttl", "12h")
	v.SetDefault("timezone", "Asia/Kolkata")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("fees.x.rate", "0.10")
	v.SetDefault("fees.x.flat", "0")
	v.SetDefault("fees.y.rate", "0.08")
	v.SetDefault("fees.y.flat", "2.00")
	v.SetDefault("fees.z.rate", "0.12")
	v.SetDefault("fees.z.flat", "0")

	v.SetDefault("marketplace.timeout", "10s")
	for _, p := range []string{"x", "y", "z"} {
		v.SetDefault("marketplace."+p+".base_url", "")
		v.SetDefault("marketplace."+p+".api_key", "")
	}

	v.SetDefault("audit.backend", AuditSQLite)
	v.SetDefault("audit.mongo_uri", "")
	v.SetDefault("audit.mongo_db", "prodaja")

	v.SetDefault("sheets.credentials_path", "")
	v.SetDefault("sheets.spreadsheet_id", "")

	v.SetDefault("schedule.price_refresh", "0 * * * *")
	v.SetDefault("schedule.token_purge", "30 3 * * *")
}

// Load reads configuration. path names an optional config file (YAML, TOML
// or JSON by extension); a .env file in the working directory is loaded
// when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Validate ensures that settings are present and well-formed.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db must be provided"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must be provided"))
	}
	if c.AdminUser == "" {
		errs = append(errs, errors.New("admin_user must be provided"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if c.Marketplace.Timeout <= 0 {
		errs = append(errs, errors.New("marketplace.timeout must be positive"))
	}
	if _, err := c.FeeSchedules(); err != nil {
		errs = append(errs, err)
	}

	switch c.Audit.Backend {
	case AuditSQLite:
	case AuditMongo:
		if c.Audit.MongoURI == "" {
			errs = append(errs, errors.New("audit.mongo_uri must be provided for the mongo backend"))
		}
		if c.Audit.MongoDB == "" {
			errs = append(errs, errors.New("audit.mongo_db must be provided for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("audit.backend must be %q or %q, got %q", AuditSQLite, AuditMongo, c.Audit.Backend))
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		errs = append(errs, errors.New("sheets.credentials_path and sheets.spreadsheet_id must be set together"))
	}

	for name, spec := range map[string]string{
		"schedule.price_refresh": c.Schedule.PriceRefresh,
		"schedule.token_purge":   c.Schedule.TokenPurge,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// Location returns the display timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SheetsEnabled reports whether Google Sheets import is configured.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID != ""
}

// FeeSchedules parses the configured commissions.
func (c *Config) FeeSchedules() (map[model.Platform]pricing.FeeSchedule, error) {
	fees := map[model.Platform]FeeConfig{
		model.PlatformX: c.Fees.X,
		model.PlatformY: c.Fees.Y,
		model.PlatformZ: c.Fees.Z,
	}

	out := make(map[model.Platform]pricing.FeeSchedule, len(fees))
	for p, f := range fees {
		rate, err := parseAmount(f.Rate)
		if err != nil {
			return nil, fmt.Errorf("fees.%s.rate: %w", strings.ToLower(string(p)), err)
		}
		flat, err := parseAmount(f.Flat)
		if err != nil {
			return nil, fmt.Errorf("fees.%s.flat: %w", strings.ToLower(string(p)), err)
		}
		out[p] = pricing.FeeSchedule{Rate: rate, Flat: flat}
	}
	return out, nil
}

// Platform returns the listing API settings of p.
func (c *Config) Platform(p model.Platform) PlatformConfig {
	switch p {
	case model.PlatformX:
		return c.Marketplace.X
	case model.PlatformY:
		return c.Marketplace.Y
	case model.PlatformZ:
		return c.Marketplace.Z
	}
	return PlatformConfig{}
}

func parseAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%q is not a number", s)
	}
	if err := model.CheckAmount(d); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s %w", s, err)
	}
	return d, nil
}
