// Package usecase orchestrates the ingestion and reconciliation workflows
// over the driven adapters.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/CaixiangyangCD/ksx/internal/config"
	"github.com/CaixiangyangCD/ksx/internal/crawler"
	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
	"github.com/CaixiangyangCD/ksx/internal/retry"
)

// IngestDeps wires the driven adapters into the ingestion workflow.
type IngestDeps struct {
	Automator  ports.Automator
	Mailbox    ports.PageMailbox
	Pager      ports.Pager
	Store      ports.RecordStore
	Browser    config.BrowserConfig
	KeepMonths int
	Logger     *slog.Logger
}

// Ingest pulls portal pages for a set of dates and persists them.
type Ingest struct {
	automator  ports.Automator
	mailbox    ports.PageMailbox
	pager      ports.Pager
	store      ports.RecordStore
	browser    config.BrowserConfig
	keepMonths int
	logger     *slog.Logger
}

// NewIngest constructs the ingestion workflow.
func NewIngest(deps IngestDeps) *Ingest {
	return &Ingest{
		automator:  deps.Automator,
		mailbox:    deps.Mailbox,
		pager:      deps.Pager,
		store:      deps.Store,
		browser:    deps.Browser,
		keepMonths: deps.KeepMonths,
		logger:     deps.Logger,
	}
}

// Run logs in once, ingests every date in order, then applies retention.
// Each date yields a result; a failed date never aborts the remaining ones.
func (in *Ingest) Run(ctx context.Context, dates []time.Time) []domain.RunResult {
	results := make([]domain.RunResult, 0, len(dates))

	if err := in.automator.Login(ctx); err != nil {
		in.logger.Error("login failed", "error", err)
		for range dates {
			results = append(results, domain.RunResult{
				RunID:   uuid.NewString(),
				Message: fmt.Sprintf("login failed: %v", err),
			})
		}
		return results
	}

	for _, date := range dates {
		res := in.runDate(ctx, date)
		in.logger.Info("ingestion run finished",
			"run_id", res.RunID,
			"date", date.Format("2006-01-02"),
			"success", res.Success,
			"inserted", res.Inserted,
			"message", res.Message)
		results = append(results, res)
	}

	if removed, err := in.store.Prune(ctx, in.keepMonths); err != nil {
		in.logger.Warn("retention prune failed", "error", err)
	} else if len(removed) > 0 {
		in.logger.Info("retention applied", "removed_months", removed)
	}
	return results
}

func (in *Ingest) runDate(ctx context.Context, date time.Time) domain.RunResult {
	res := domain.RunResult{RunID: uuid.NewString()}
	day := date.Format("2006-01-02")

	known, err := in.store.CountForDate(ctx, date)
	if err != nil {
		res.Message = fmt.Sprintf("count existing rows: %v", err)
		return res
	}

	in.mailbox.Reset()
	if err := in.automator.SetQueryWindow(ctx, date, date); err != nil {
		res.Message = fmt.Sprintf("set query window: %v", err)
		return res
	}

	walker := crawler.NewWalker(in.mailbox, in.pager, crawler.WalkerOptions{
		Policy: retry.Policy{
			MaxAttempts:    in.browser.FetchAttempts,
			InitialBackoff: in.browser.InitialBackoff(),
			Step:           in.browser.InitialBackoff(),
		},
		MaxPages:    in.browser.MaxPages,
		PageTimeout: in.browser.WaitTimeout(),
		KnownCount:  known,
		Logger:      in.logger,
	})

	walk, err := walker.Walk(ctx)
	if err != nil {
		res.Message = fmt.Sprintf("extract %s: %v", day, err)
		return res
	}

	switch {
	case walk.NoData:
		res.Success = true
		res.Message = fmt.Sprintf("portal reported no rows for %s", day)
		return res
	case walk.AlreadyComplete:
		res.Success = true
		res.Message = fmt.Sprintf("store already holds all %d rows for %s", walk.ReportedTotal, day)
		return res
	}

	records := crawler.Dedupe(walk.Records)
	inserted, err := in.store.Upsert(ctx, records, date)
	if err != nil {
		res.Message = fmt.Sprintf("persist %s: %v", day, err)
		return res
	}

	res.Success = true
	res.Inserted = inserted
	res.Message = fmt.Sprintf("ingested %d of %d reported rows across %d pages",
		inserted, walk.ReportedTotal, walk.PagesFetched)
	return res
}

// IncrementalDates derives the date range an incremental run must cover:
// from the day after the newest stored shard up to yesterday, the newest
// date the portal publishes. An empty store yields just yesterday.
func IncrementalDates(marks map[string]time.Time, now time.Time) []time.Time {
	upper := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	var latest time.Time
	for _, mark := range marks {
		if mark.After(latest) {
			latest = mark
		}
	}
	if latest.IsZero() || !latest.Before(upper) {
		if latest.IsZero() {
			return []time.Time{upper}
		}
		return nil
	}

	var dates []time.Time
	for d := latest.AddDate(0, 0, 1); !d.After(upper); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
