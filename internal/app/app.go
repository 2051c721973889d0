// Package app wires configuration to use cases and owns adapter lifecycles.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CaixiangyangCD/ksx/internal/config"
	"github.com/CaixiangyangCD/ksx/internal/crawler"
	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/infrastructure/browser"
	"github.com/CaixiangyangCD/ksx/internal/infrastructure/storage"
	"github.com/CaixiangyangCD/ksx/internal/logging"
	"github.com/CaixiangyangCD/ksx/internal/spreadsheet"
	"github.com/CaixiangyangCD/ksx/internal/usecase"
)

// Application holds the long-lived pieces: config, logger, and the record
// store. Browser sessions are created per sync run and torn down after.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.ShardedStore
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	store, err := storage.NewShardedStore(cfg.Store.DataDir, baseLogger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Application{cfg: cfg, logger: baseLogger, store: store}, nil
}

// Close releases the store's shard handles.
func (a *Application) Close() error {
	return a.store.Close()
}

// Sync ingests the given dates, or the watermark-derived range when
// incremental is set. An empty explicit date list defaults to yesterday,
// the newest date the portal publishes.
func (a *Application) Sync(ctx context.Context, dates []time.Time, incremental bool) ([]domain.RunResult, error) {
	if incremental {
		marks, err := a.store.Watermarks(ctx)
		if err != nil {
			return nil, fmt.Errorf("read watermarks: %w", err)
		}
		dates = usecase.IncrementalDates(marks, time.Now())
		if len(dates) == 0 {
			a.logger.Info("store is up to date, nothing to sync")
			return nil, nil
		}
	}
	if len(dates) == 0 {
		now := time.Now()
		dates = []time.Time{time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
	}

	mailbox := crawler.NewMailbox()
	session, err := browser.NewSession(ctx, a.cfg.Portal, a.cfg.Browser, mailbox, a.logger.With("component", "browser"))
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			a.logger.Warn("browser session close failed", "error", err)
		}
	}()

	ingest := usecase.NewIngest(usecase.IngestDeps{
		Automator:  session,
		Mailbox:    mailbox,
		Pager:      session.Pager(),
		Store:      a.store,
		Browser:    a.cfg.Browser,
		KeepMonths: a.cfg.Store.KeepMonths,
		Logger:     a.logger.With("component", "ingest"),
	})
	return ingest.Run(ctx, dates), nil
}

// Query returns one day's records, optionally filtered by store name.
func (a *Application) Query(ctx context.Context, params domain.QueryParams) (domain.QueryResult, error) {
	return a.store.Query(ctx, params)
}

// Entities lists every distinct store display name.
func (a *Application) Entities(ctx context.Context) ([]string, error) {
	return a.store.ListEntities(ctx)
}

// Reconcile runs a workbook against the store and writes the report
// artifact. A non-empty mode or field list overrides the configured ones
// for this run only.
func (a *Application) Reconcile(ctx context.Context, workbookPath string, month time.Time, mode string, fields []string) (domain.ReconcileReport, string, error) {
	cfg := a.cfg.Reconcile
	if mode != "" {
		cfg.Mode = mode
	}
	if len(fields) > 0 {
		cfg.Fields = fields
	}
	rec := usecase.NewReconcile(usecase.ReconcileDeps{
		Source: spreadsheet.NewReader(a.logger.With("component", "spreadsheet")),
		Store:  a.store,
		Config: cfg,
		Logger: a.logger.With("component", "reconcile"),
	})
	return rec.Run(ctx, workbookPath, month)
}

// Prune applies the retention policy and reports removed months.
func (a *Application) Prune(ctx context.Context) ([]string, error) {
	return a.store.Prune(ctx, a.cfg.Store.KeepMonths)
}

// Info summarizes the store's physical footprint.
func (a *Application) Info(ctx context.Context) (domain.StoreInfo, error) {
	return a.store.Info(ctx)
}
