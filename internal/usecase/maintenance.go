package usecase

import (
	"context"
	"fmt"
	"time"

	"ChainPull/internal/domain/models"
	drepo "ChainPull/internal/domain/repository"
	"ChainPull/internal/service/expiration"
	"ChainPull/internal/service/quarantine"
	"ChainPull/pkg/logger"
)

// Maintenance groups the operator tasks around the expiration cache and
// the quarantine table.
type Maintenance struct {
	universe    drepo.Universe
	calendar    drepo.Calendar
	expirations *expiration.Cache
	quarantine  *quarantine.Manager
	scraper     ChainScraper
	log         *logger.Logger
	now         func() time.Time
}

func NewMaintenance(
	universe drepo.Universe,
	calendar drepo.Calendar,
	expirations *expiration.Cache,
	manager *quarantine.Manager,
	scraper ChainScraper,
	log *logger.Logger,
) *Maintenance {
	return &Maintenance{
		universe:    universe,
		calendar:    calendar,
		expirations: expirations,
		quarantine:  manager,
		scraper:     scraper,
		log:         log.With(logger.String("component", "maintenance")),
		now:         time.Now,
	}
}

// PopulateExpirations resolves every non-quarantined ticker of the universe.
func (m *Maintenance) PopulateExpirations(ctx context.Context) (expiration.PopulateReport, error) {
	tickers, err := m.universe.Tickers(ctx)
	if err != nil {
		return expiration.PopulateReport{}, fmt.Errorf("load universe: %w", err)
	}
	quarantined, err := m.quarantine.QuarantinedTickers(ctx)
	if err != nil {
		return expiration.PopulateReport{}, err
	}

	report, err := m.expirations.Populate(ctx, tickers, quarantined)
	m.log.Info("expirations populated",
		logger.Int("resolved", report.Resolved),
		logger.Int("not_found", report.NotFound),
		logger.Int("failed", report.Failed),
	)
	return report, err
}

// PurgeExpirations drops the expiration cache. Without force it only does so
// when a cached expiration is today.
func (m *Maintenance) PurgeExpirations(ctx context.Context, force bool) (bool, error) {
	if force {
		return true, m.expirations.Purge(ctx)
	}
	today := m.calendar.Today(m.now())
	purged, err := m.expirations.PurgeIfStale(ctx, today)
	if err == nil && !purged {
		m.log.Info("expiration cache kept", logger.String("today", today))
	}
	return purged, err
}

// AuditQuarantine re-scrapes quarantined tickers with a fresh resolve and scrape.
func (m *Maintenance) AuditQuarantine(ctx context.Context) (quarantine.AuditReport, error) {
	report, err := m.quarantine.Audit(ctx, m.rescrape)
	m.log.Info("quarantine audited",
		logger.Strings("cleared", report.Cleared),
		logger.Strings("retained", report.Retained),
	)
	return report, err
}

func (m *Maintenance) rescrape(ctx context.Context, ticker string) (*models.ScrapeResult, error) {
	exp, found, err := m.expirations.Resolve(ctx, ticker, nil)
	if err != nil {
		return nil, err
	}
	if !found {
		exp = ""
	}
	return m.scraper.Scrape(ctx, ticker, exp)
}
