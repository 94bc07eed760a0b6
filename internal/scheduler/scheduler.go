// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/erazemk/prodaja/internal/config"
	"github.com/erazemk/prodaja/internal/pricing"
	"github.com/erazemk/prodaja/internal/store"
)

const jobTimeout = 2 * time.Minute

// Scheduler refreshes catalog prices and purges expired token revocations.
type Scheduler struct {
	cron     *cron.Cron
	db       *sql.DB
	resolver *pricing.Resolver
	cfg      config.ScheduleConfig
	logger   *zap.Logger
}

// New creates a scheduler. Jobs run in loc.
func New(db *sql.DB, resolver *pricing.Resolver, cfg config.ScheduleConfig, loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		db:       db,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the configured jobs and starts running them.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"price refresh", s.cfg.PriceRefresh, s.runPriceRefresh},
		{"token purge", s.cfg.TokenPurge, s.runTokenPurge},
	}

	for _, j := range jobs {
		if j.spec == "" {
			s.logger.Info("job disabled", zap.String("job", j.name))
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			return fmt.Errorf("scheduling %s: %w", j.name, err)
		}
		s.logger.Info("job scheduled", zap.String("job", j.name), zap.String("spec", j.spec))
	}

	s.cron.Start()
	return nil
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// RefreshPrices recomputes the catalog and records when it last ran.
func (s *Scheduler) RefreshPrices(ctx context.Context) ([]pricing.CatalogEntry, error) {
	phones, err := store.ListPhones(ctx, s.db, store.PhoneFilter{})
	if err != nil {
		return nil, err
	}

	catalog := s.resolver.Catalog(phones)

	if err := store.SetSetting(ctx, s.db, store.SettingLastPriceRefresh, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	return catalog, nil
}

// PurgeTokens deletes revocations of tokens that have expired anyway.
func (s *Scheduler) PurgeTokens(ctx context.Context) (int64, error) {
	return store.PurgeRevokedTokens(ctx, s.db, time.Now())
}

func (s *Scheduler) runPriceRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	catalog, err := s.RefreshPrices(ctx)
	if err != nil {
		s.logger.Error("price refresh failed", zap.Error(err))
		return
	}
	s.logger.Info("prices refreshed", zap.Int("phones", len(catalog)))
}

func (s *Scheduler) runTokenPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.PurgeTokens(ctx)
	if err != nil {
		s.logger.Error("token purge failed", zap.Error(err))
		return
	}
	s.logger.Info("expired token revocations purged", zap.Int64("count", n))
}
