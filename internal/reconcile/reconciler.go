package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/CaixiangyangCD/ksx/internal/config"
	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
)

const entityConcurrency = 4

// SheetData is the parsed workbook: entity -> metric key -> day label -> raw
// value, as produced by the spreadsheet reader.
type SheetData = map[string]map[string]map[string]string

// Reconciler compares spreadsheet values against stored records. Spreadsheet
// day D is compared against the stored date D minus the configured offset,
// because the portal publishes each day's figures on the following day.
type Reconciler struct {
	store   ports.RecordStore
	offset  int
	epsilon decimal.Decimal
	mode    string
	fields  map[string]struct{}
	logger  *slog.Logger

	mu       sync.Mutex
	dayCache map[string]map[string]domain.Record
}

// New builds a reconciler from config. An empty field selection compares
// every metric the workbook carries.
func New(store ports.RecordStore, cfg config.ReconcileConfig, logger *slog.Logger) *Reconciler {
	mode := cfg.Mode
	if mode == "" {
		mode = config.ModeFull
	}
	var fields map[string]struct{}
	if len(cfg.Fields) > 0 {
		fields = make(map[string]struct{}, len(cfg.Fields))
		for _, key := range cfg.Fields {
			fields[key] = struct{}{}
		}
	}
	return &Reconciler{
		store:    store,
		offset:   cfg.DateOffsetDays,
		epsilon:  decimal.NewFromFloat(cfg.Epsilon),
		mode:     mode,
		fields:   fields,
		logger:   logger,
		dayCache: make(map[string]map[string]domain.Record),
	}
}

// alignedDate maps a spreadsheet day of month onto its stored date.
func (r *Reconciler) alignedDate(month time.Time, day int) time.Time {
	d := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -r.offset)
}

// dayFromLabel parses spreadsheet day headers like "2日".
func dayFromLabel(label string) (int, bool) {
	s := strings.TrimSuffix(strings.TrimSpace(label), "日")
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}

// Coverage reports which spreadsheet days have a stored counterpart, before
// any matching work is spent on a month that was never ingested.
func (r *Reconciler) Coverage(ctx context.Context, month time.Time, dayLabels []string) (domain.CoverageReport, error) {
	var report domain.CoverageReport
	labels := sortedDayLabels(dayLabels)
	for _, label := range labels {
		day, ok := dayFromLabel(label)
		if !ok {
			continue
		}
		count, err := r.store.CountForDate(ctx, r.alignedDate(month, day))
		if err != nil {
			return report, fmt.Errorf("coverage for %s: %w", label, err)
		}
		if count > 0 {
			report.Available = append(report.Available, label)
		} else {
			report.Missing = append(report.Missing, label)
		}
	}
	if total := len(report.Available) + len(report.Missing); total > 0 {
		report.Rate = float64(len(report.Available)) / float64(total)
	}
	return report, nil
}

// Run reconciles a parsed workbook for one month. Entities are processed
// concurrently but reported in sorted input order. Identity failures are
// recorded on the entity, never returned as errors.
func (r *Reconciler) Run(ctx context.Context, sheet SheetData, month time.Time) (domain.ReconcileReport, error) {
	report := domain.ReconcileReport{Month: month.Format("2006-01")}

	coverage, err := r.Coverage(ctx, month, sheetDayLabels(sheet))
	if err != nil {
		return report, err
	}
	report.Coverage = coverage

	stored, err := r.store.ListEntities(ctx)
	if err != nil {
		return report, fmt.Errorf("list stored entities: %w", err)
	}
	matcher := NewMatcher(stored)

	var marks map[string]time.Time
	if r.mode == config.ModeIncremental {
		marks, err = r.store.EntityWatermarks(ctx)
		if err != nil {
			return report, fmt.Errorf("load entity watermarks: %w", err)
		}
	}

	names := make([]string, 0, len(sheet))
	for name := range sheet {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]domain.EntityReport, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(entityConcurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			er, err := r.reconcileEntity(gctx, matcher, name, sheet[name], month, marks)
			if err != nil {
				return err
			}
			results[i] = er
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Entities = results
	report.Summary = summarize(results)
	r.logger.Info("reconciliation finished",
		"month", report.Month,
		"entities", report.Summary.Entities,
		"with_diffs", report.Summary.EntitiesWithDiffs,
		"diffs", report.Summary.TotalDiffs)
	return report, nil
}

func (r *Reconciler) reconcileEntity(ctx context.Context, matcher *Matcher, name string, metrics map[string]map[string]string, month time.Time, marks map[string]time.Time) (domain.EntityReport, error) {
	er := domain.EntityReport{Entity: name}

	match := matcher.MatchEntity(name)
	r.logger.Debug("entity resolved", "entity", name, "match", match.String())
	er.Outcome = match.Outcome
	switch match.Outcome {
	case domain.MatchNotFound:
		er.Warnings = append(er.Warnings, "no stored entity matches")
		return er, nil
	case domain.MatchAmbiguous:
		er.Warnings = append(er.Warnings,
			fmt.Sprintf("ambiguous match: %s", strings.Join(match.Candidates, ", ")))
		return er, nil
	}
	er.Matched = match.Entity
	watermark, bounded := marks[match.Entity]

	metricKeys := make([]string, 0, len(metrics))
	for key := range metrics {
		if r.fields != nil {
			if _, selected := r.fields[key]; !selected {
				continue
			}
		}
		metricKeys = append(metricKeys, key)
	}
	sort.Strings(metricKeys)

	missingDates := make(map[string]bool)
	for _, key := range metricKeys {
		for _, label := range sortedDayLabels(labelsOf(metrics[key])) {
			day, ok := dayFromLabel(label)
			if !ok {
				continue
			}
			date := r.alignedDate(month, day)
			if bounded && date.After(watermark) {
				continue
			}
			rec, found, err := r.recordFor(ctx, date, match.Entity)
			if err != nil {
				return er, err
			}
			reported := metrics[key][label]
			if !found {
				if !missingDates[label] {
					missingDates[label] = true
					er.Warnings = append(er.Warnings,
						fmt.Sprintf("no stored record for %s", date.Format("2006-01-02")))
				}
				continue
			}
			system := formatValue(rec.Values[key])
			er.Rows = append(er.Rows, domain.Diff{
				FieldKey:      key,
				DayLabel:      label,
				SystemValue:   system,
				ReportedValue: reported,
				Different:     valuesDiffer(system, reported, r.epsilon),
			})
		}
	}
	return er, nil
}

// recordFor returns the matched entity's record for one stored date. Whole
// shards are loaded once and cached, since every entity touches the same
// handful of dates.
func (r *Reconciler) recordFor(ctx context.Context, date time.Time, entity string) (domain.Record, bool, error) {
	day := date.Format("2006-01-02")

	r.mu.Lock()
	byName, ok := r.dayCache[day]
	r.mu.Unlock()

	if !ok {
		res, err := r.store.Query(ctx, domain.QueryParams{Date: date, Page: 1, PageSize: 10000})
		if err != nil {
			return domain.Record{}, false, fmt.Errorf("load records for %s: %w", day, err)
		}
		byName = make(map[string]domain.Record, len(res.Rows))
		for _, rec := range res.Rows {
			byName[rec.DisplayName()] = rec
		}
		r.mu.Lock()
		r.dayCache[day] = byName
		r.mu.Unlock()
	}

	rec, found := byName[entity]
	return rec, found, nil
}

func formatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func labelsOf(values map[string]string) []string {
	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	return labels
}

// sheetDayLabels collects the distinct day labels present anywhere in the
// workbook.
func sheetDayLabels(sheet SheetData) []string {
	seen := make(map[string]struct{})
	for _, metrics := range sheet {
		for _, values := range metrics {
			for label := range values {
				seen[label] = struct{}{}
			}
		}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	return labels
}

// sortedDayLabels orders labels numerically so "10日" follows "9日".
func sortedDayLabels(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	sort.Slice(out, func(i, j int) bool {
		di, oki := dayFromLabel(out[i])
		dj, okj := dayFromLabel(out[j])
		if oki && okj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}

func summarize(entities []domain.EntityReport) domain.ReconcileSummary {
	s := domain.ReconcileSummary{Entities: len(entities)}
	for _, er := range entities {
		if n := er.DiffCount(); n > 0 {
			s.EntitiesWithDiffs++
			s.TotalDiffs += n
		}
		if er.Outcome != domain.MatchUnique {
			s.Errors++
		}
		s.Warnings += len(er.Warnings)
	}
	return s
}
