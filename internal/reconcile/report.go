package reconcile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

const reportSheet = "对比结果"

// ReportFilename derives a deterministic artifact name from the month and
// the compared field set, so re-running the same reconciliation overwrites
// its previous output instead of piling up files.
func ReportFilename(month time.Time, fieldKeys []string) string {
	sum := md5.Sum([]byte(strings.Join(fieldKeys, ",")))
	return fmt.Sprintf("ksx_%s_%x.xlsx", month.Format("06_01"), sum[:4])
}

// WriteReport renders the reconciliation result as a workbook under dir and
// returns the artifact path. One row per entity and field, a (system,
// reported, diff) column triple per day. Mismatches carry a text marker;
// there is no cell styling. fieldKeys is the configured field selection and
// drives the artifact name, so the same configuration always lands on the
// same file whatever the run produced.
func WriteReport(report domain.ReconcileReport, month time.Time, dir string, fieldKeys []string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, reportSheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	labels := reportDayLabels(report)
	header := []any{"门店", "指标"}
	for _, label := range labels {
		header = append(header, label+" 系统", label+" 报表", label+" 差异")
	}
	if err := writeRow(f, 1, header); err != nil {
		return "", err
	}

	row := 2
	for _, er := range report.Entities {
		for _, cells := range entityRows(er, labels) {
			if err := writeRow(f, row, cells); err != nil {
				return "", err
			}
			row++
		}
		for _, warning := range er.Warnings {
			if err := writeRow(f, row, []any{er.Entity, "⚠ " + warning}); err != nil {
				return "", err
			}
			row++
		}
	}

	path := filepath.Join(dir, ReportFilename(month, sortedCopy(fieldKeys)))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

// entityRows pivots one entity's diffs into field rows spanning all days.
func entityRows(er domain.EntityReport, labels []string) [][]any {
	byField := make(map[string]map[string]domain.Diff)
	var order []string
	for _, d := range er.Rows {
		if _, ok := byField[d.FieldKey]; !ok {
			byField[d.FieldKey] = make(map[string]domain.Diff)
			order = append(order, d.FieldKey)
		}
		byField[d.FieldKey][d.DayLabel] = d
	}

	rows := make([][]any, 0, len(order))
	for _, key := range order {
		cells := []any{er.Entity, domain.FieldLabel(key)}
		for _, label := range labels {
			d, ok := byField[key][label]
			if !ok {
				cells = append(cells, "", "", "")
				continue
			}
			marker := ""
			if d.Different {
				marker = "≠"
			}
			cells = append(cells, d.SystemValue, d.ReportedValue, marker)
		}
		rows = append(rows, cells)
	}
	return rows
}

func reportDayLabels(report domain.ReconcileReport) []string {
	seen := make(map[string]struct{})
	for _, er := range report.Entities {
		for _, d := range er.Rows {
			seen[d.DayLabel] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	return sortedDayLabels(labels)
}

func writeRow(f *excelize.File, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("row %d coordinates: %w", row, err)
	}
	if err := f.SetSheetRow(reportSheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func sortedCopy(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}
