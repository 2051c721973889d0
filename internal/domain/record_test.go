package domain

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRawIDSpellings(t *testing.T) {
	t.Parallel()

	require.Equal(t, "7", Record{Values: map[string]any{"ID": "7"}}.RawID())
	require.Equal(t, "8", Record{Values: map[string]any{"id": 8}}.RawID())
	require.Equal(t, "9", Record{Values: map[string]any{"rawId": "9"}}.RawID())
	require.Empty(t, Record{Values: map[string]any{"MDShow": "x"}}.RawID())
	require.Empty(t, Record{Values: map[string]any{"ID": nil}}.RawID())
}

func TestTotalPages(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3, PageInfo{Total: 25, PageSize: 10}.TotalPages())
	require.Equal(t, 1, PageInfo{Total: 10, PageSize: 10}.TotalPages())
	require.Equal(t, 0, PageInfo{Total: 0, PageSize: 10}.TotalPages())
	require.Equal(t, 0, PageInfo{Total: 5}.TotalPages(), "unknown page size gives no page count")
}

func TestShardKeyFor(t *testing.T) {
	t.Parallel()

	key := ShardKeyFor(time.Date(2025, 8, 2, 13, 45, 0, 0, time.UTC))
	require.Equal(t, "2025-08", key.Month)
	require.Equal(t, "2025-08-02", key.Day)
}

func TestRegistryConsistency(t *testing.T) {
	t.Parallel()

	keys := FieldKeys()
	require.Equal(t, len(Registry()), len(keys))

	seen := map[string]struct{}{}
	for _, key := range keys {
		_, dup := seen[key]
		require.False(t, dup, "duplicate registry key %q", key)
		seen[key] = struct{}{}
	}

	// Every spreadsheet metric label must resolve to a registry field.
	for label := range spreadsheetMetrics {
		key, ok := SpreadsheetMetricKey(label)
		require.True(t, ok)
		_, exists := FieldByKey(key)
		require.True(t, exists, "spreadsheet label %q maps to unknown key %q", label, key)
	}

	// Well-known fields are present.
	for _, key := range []string{FieldRawID, FieldDisplayName} {
		_, ok := FieldByKey(key)
		require.True(t, ok)
	}

	// The default field selection is sorted and drawn from the registry.
	keys = ComparableFieldKeys()
	require.True(t, sort.StringsAreSorted(keys))
	for _, key := range keys {
		_, ok := FieldByKey(key)
		require.True(t, ok, "comparable key %q missing from registry", key)
	}
}
