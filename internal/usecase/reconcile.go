package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CaixiangyangCD/ksx/internal/config"
	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
	"github.com/CaixiangyangCD/ksx/internal/reconcile"
	"github.com/CaixiangyangCD/ksx/internal/spreadsheet"
)

// ReconcileDeps wires the reconciliation workflow.
type ReconcileDeps struct {
	Source ports.SpreadsheetSource
	Store  ports.RecordStore
	Config config.ReconcileConfig
	Logger *slog.Logger
}

// Reconcile runs one workbook against the store and writes the report
// artifact.
type Reconcile struct {
	source ports.SpreadsheetSource
	store  ports.RecordStore
	cfg    config.ReconcileConfig
	logger *slog.Logger
}

// NewReconcile constructs the reconciliation workflow.
func NewReconcile(deps ReconcileDeps) *Reconcile {
	return &Reconcile{
		source: deps.Source,
		store:  deps.Store,
		cfg:    deps.Config,
		logger: deps.Logger,
	}
}

// Run parses the workbook, reconciles it for the given month (derived from
// the filename when zero), and writes the report. It returns the report and
// the artifact path.
func (r *Reconcile) Run(ctx context.Context, workbookPath string, month time.Time) (domain.ReconcileReport, string, error) {
	if month.IsZero() {
		derived, ok := spreadsheet.MonthFromFilename(workbookPath, time.Now())
		if !ok {
			return domain.ReconcileReport{}, "", fmt.Errorf("cannot derive month from %q, pass it explicitly", workbookPath)
		}
		month = derived
		r.logger.Info("month derived from filename", "month", month.Format("2006-01"))
	}

	sheet, err := r.source.Read(workbookPath)
	if err != nil {
		return domain.ReconcileReport{}, "", fmt.Errorf("read workbook: %w", err)
	}
	if len(sheet) == 0 {
		return domain.ReconcileReport{}, "", fmt.Errorf("workbook %q contains no entities", workbookPath)
	}

	engine := reconcile.New(r.store, r.cfg, r.logger)
	report, err := engine.Run(ctx, sheet, month)
	if err != nil {
		return report, "", err
	}

	if len(report.Coverage.Missing) > 0 {
		r.logger.Warn("incomplete store coverage",
			"missing_days", report.Coverage.Missing,
			"rate", fmt.Sprintf("%.0f%%", report.Coverage.Rate*100))
	}

	fields := r.cfg.Fields
	if len(fields) == 0 {
		fields = domain.ComparableFieldKeys()
	}
	path, err := reconcile.WriteReport(report, month, r.cfg.ExportDir, fields)
	if err != nil {
		return report, "", fmt.Errorf("write report: %w", err)
	}
	return report, path, nil
}
