package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/eshaffer321/invoice-reconciler/internal/application/ingest"
	"github.com/eshaffer321/invoice-reconciler/internal/application/report"
	"github.com/eshaffer321/invoice-reconciler/internal/application/service"
	"github.com/eshaffer321/invoice-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/logging"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// App holds the wired services of one command invocation
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *storage.Storage

	Coordinator *service.Coordinator
	Reconciler  *service.ReconcileService
	Overrides   *service.OverrideService
	Reports     *report.Service
	Importer    *ingest.Service
}

// NewApp opens storage and builds every service. Logs go to logOut.
func NewApp(cfg *config.Config, logOut io.Writer) (*App, error) {
	logger := logging.NewLoggerTo(logOut, cfg.Observability.Logging)

	mcfg, err := MatcherConfig(cfg.Matching)
	if err != nil {
		return nil, err
	}
	m, err := matcher.NewMatcher(mcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Storage.DatabasePath, err)
	}
	logger.Debug("database opened", "path", cfg.Storage.DatabasePath)

	coord := service.NewCoordinator()
	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Coordinator: coord,
		Reconciler:  service.NewReconcileService(store, m, coord, logger),
		Overrides:   service.NewOverrideService(store, coord, logger),
		Reports:     report.NewService(store, logger),
		Importer:    ingest.NewService(store, coord, logger),
	}, nil
}

// Close releases the database
func (a *App) Close() error {
	return a.Store.Close()
}

// Health reports whether the database answers
func (a *App) Health(_ context.Context) error {
	_, err := a.Store.SchemaVersion()
	return err
}

// MatcherConfig converts the configured matching rules
func MatcherConfig(m config.MatchingConfig) (matcher.Config, error) {
	tolerance, err := m.Tolerance()
	if err != nil {
		return matcher.Config{}, err
	}
	return matcher.Config{
		DateTolerance:       m.DateToleranceDays,
		FuzzyThreshold:      m.FuzzyThreshold,
		FuzzyConfidenceMin:  m.FuzzyConfidenceMin,
		FuzzyConfidenceMax:  m.FuzzyConfidenceMax,
		PartialConfidence:   m.PartialConfidence,
		SubsetTolerance:     tolerance,
		MinPartialPayments:  m.MinPartialPayments,
		MaxSubsetCandidates: m.MaxSubsetCandidates,
		Similarity:          m.Similarity,
	}, nil
}
