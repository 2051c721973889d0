// Package spreadsheet parses the human-filled metric workbooks that get
// reconciled against stored records.
package spreadsheet

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
)

var dayHeader = regexp.MustCompile(`^\d{1,2}日$`)

// Reader parses workbooks laid out as one entity block per store: the entity
// name in the first column (merged cells arrive blank and carry forward), a
// metric label in the second, and one column per day of month ("1日", "2日").
type Reader struct {
	logger *slog.Logger
}

var _ ports.SpreadsheetSource = (*Reader)(nil)

func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// Read parses the first sheet into entity -> metric key -> day label -> raw
// value. Metric labels unknown to the registry are kept under their own
// label so the reconciler can surface them instead of silently dropping.
func (r *Reader) Read(path string) (map[string]map[string]map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	headerIdx, dayCols := findHeader(rows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("no day-column header found in %q", sheet)
	}

	data := make(map[string]map[string]map[string]string)
	entity := ""
	unknown := 0
	for _, row := range rows[headerIdx+1:] {
		if len(row) < 2 {
			continue
		}
		if name := strings.TrimSpace(row[0]); name != "" {
			entity = name
		}
		label := strings.TrimSpace(row[1])
		if entity == "" || label == "" {
			continue
		}
		key, known := domain.SpreadsheetMetricKey(label)
		if !known {
			unknown++
		}

		if data[entity] == nil {
			data[entity] = make(map[string]map[string]string)
		}
		values := make(map[string]string, len(dayCols))
		for col, dayLabel := range dayCols {
			if col >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[col]); v != "" {
				values[dayLabel] = v
			}
		}
		data[entity][key] = values
	}

	r.logger.Info("workbook parsed",
		"path", path,
		"entities", len(data),
		"unknown_metrics", unknown)
	return data, nil
}

// findHeader locates the first row carrying day labels and maps column index
// to label.
func findHeader(rows [][]string) (int, map[int]string) {
	for i, row := range rows {
		cols := make(map[int]string)
		for j, cell := range row {
			if dayHeader.MatchString(strings.TrimSpace(cell)) {
				cols[j] = strings.TrimSpace(cell)
			}
		}
		if len(cols) > 0 {
			return i, cols
		}
	}
	return -1, nil
}

// Filename month patterns, most specific first.
var monthPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(20\d{2})[-_./年](\d{1,2})月?`),
	regexp.MustCompile(`[（(](\d{1,2})月[)）]`),
}

// MonthFromFilename extracts the workbook's target month from its name.
// Patterns without a year ("(8月)") assume the year of now.
func MonthFromFilename(path string, now time.Time) (time.Time, bool) {
	name := path[strings.LastIndexByte(path, '/')+1:]

	if m := monthPatterns[0].FindStringSubmatch(name); m != nil {
		year := atoi(m[1])
		month := atoi(m[2])
		if month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	if m := monthPatterns[1].FindStringSubmatch(name); m != nil {
		month := atoi(m[1])
		if month >= 1 && month <= 12 {
			return time.Date(now.Year(), time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
