package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CaixiangyangCD/ksx/internal/config"
	"github.com/CaixiangyangCD/ksx/internal/domain"
)

type cannedSource struct {
	data map[string]map[string]map[string]string
}

func (s *cannedSource) Read(path string) (map[string]map[string]map[string]string, error) {
	return s.data, nil
}

// reconStore gives the reconciler a single stored record to match against.
type reconStore struct {
	recordingStore
}

func (s *reconStore) ListEntities(ctx context.Context) ([]string, error) {
	return []string{"[S019] 华为门店"}, nil
}

func (s *reconStore) Query(ctx context.Context, params domain.QueryParams) (domain.QueryResult, error) {
	if params.Date.Format("2006-01-02") != "2025-08-01" {
		return domain.QueryResult{}, nil
	}
	rows := []domain.Record{{Values: map[string]any{
		"ID":                 "1",
		"MDShow":             "[S019] 华为门店",
		"dailyMeituanRating": "90%",
	}}}
	return domain.QueryResult{Rows: rows, Total: 1}, nil
}

func (s *reconStore) CountForDate(ctx context.Context, date time.Time) (int, error) {
	if date.Format("2006-01-02") == "2025-08-01" {
		return 1, nil
	}
	return 0, nil
}

func TestReconcileRunWritesArtifact(t *testing.T) {
	t.Parallel()

	source := &cannedSource{data: map[string]map[string]map[string]string{
		"华为门店": {"dailyMeituanRating": {"2日": "0.95"}},
	}}
	rec := NewReconcile(ReconcileDeps{
		Source: source,
		Store:  &reconStore{},
		Config: config.ReconcileConfig{
			DateOffsetDays: 1,
			Epsilon:        0.0001,
			ExportDir:      t.TempDir(),
		},
		Logger: quietLogger(),
	})

	month := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	report, path, err := rec.Run(context.Background(), "metrics.xlsx", month)
	require.NoError(t, err)
	require.Equal(t, 1, report.Summary.TotalDiffs, "90%% vs 0.95 must be flagged")
	require.True(t, strings.HasSuffix(path, ".xlsx"))
}

func TestReconcileRunDerivesMonthFromFilename(t *testing.T) {
	t.Parallel()

	source := &cannedSource{data: map[string]map[string]map[string]string{
		"华为门店": {"dailyMeituanRating": {"2日": "0.90"}},
	}}
	rec := NewReconcile(ReconcileDeps{
		Source: source,
		Store:  &reconStore{},
		Config: config.ReconcileConfig{DateOffsetDays: 1, Epsilon: 0.0001, ExportDir: t.TempDir()},
		Logger: quietLogger(),
	})

	report, _, err := rec.Run(context.Background(), "运营指标2025-08.xlsx", time.Time{})
	require.NoError(t, err)
	require.Equal(t, "2025-08", report.Month)
	require.Zero(t, report.Summary.TotalDiffs)

	// Underivable month is an explicit error.
	_, _, err = rec.Run(context.Background(), "metrics.xlsx", time.Time{})
	require.Error(t, err)
}
