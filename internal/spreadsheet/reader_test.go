package spreadsheet

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "metrics.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadWorkbook(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, [][]any{
		{"八月门店运营指标"},
		{"门店", "指标", "1日", "2日", "3日"},
		{"华为门店", "当日美团评分", "4.8", "4.9", ""},
		{"", "月累计取消率", "1.2%", "", "1.5%"},
		{"小米之家", "当日美团评分", "4.7", "4.7", "4.6"},
	})

	data, err := NewReader(testLogger()).Read(path)
	require.NoError(t, err)
	require.Len(t, data, 2)

	huawei := data["华为门店"]
	require.NotNil(t, huawei)
	require.Equal(t, "4.9", huawei["dailyMeituanRating"]["2日"])
	require.Equal(t, "1.2%", huawei["monthlyCanceledRate"]["1日"],
		"blank entity cells must inherit the block's entity")
	_, has3 := huawei["dailyMeituanRating"]["3日"]
	require.False(t, has3, "blank values are omitted")

	require.Equal(t, "4.6", data["小米之家"]["dailyMeituanRating"]["3日"])
}

func TestReadWorkbookKeepsUnknownMetricLabels(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, [][]any{
		{"门店", "指标", "1日"},
		{"华为门店", "某个新指标", "42"},
	})

	data, err := NewReader(testLogger()).Read(path)
	require.NoError(t, err)
	require.Equal(t, "42", data["华为门店"]["某个新指标"]["1日"])
}

func TestReadWorkbookWithoutDayHeader(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, [][]any{
		{"门店", "指标"},
		{"华为门店", "当日美团评分"},
	})

	_, err := NewReader(testLogger()).Read(path)
	require.Error(t, err)
}

func TestMonthFromFilename(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		want string
		ok   bool
	}{
		{"运营指标2025-08.xlsx", "2025-08", true},
		{"指标2025年8月.xlsx", "2025-08", true},
		{"metrics_2025_12.xlsx", "2025-12", true},
		{"门店数据(8月).xlsx", "2025-08", true},
		{"门店数据（8月）.xlsx", "2025-08", true},
		{"metrics.xlsx", "", false},
		{"门店数据(13月).xlsx", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MonthFromFilename(tc.name, now)
			require.Equal(t, tc.ok, ok)
			if ok {
				require.Equal(t, tc.want, got.Format("2006-01"))
			}
		})
	}
}
