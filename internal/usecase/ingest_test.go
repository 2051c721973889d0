package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CaixiangyangCD/ksx/internal/config"
	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
)

type fakeAutomator struct {
	loginErr error
	windows  []time.Time
}

func (a *fakeAutomator) Login(ctx context.Context) error { return a.loginErr }
func (a *fakeAutomator) SetQueryWindow(ctx context.Context, start, end time.Time) error {
	a.windows = append(a.windows, start)
	return nil
}
func (a *fakeAutomator) Close() error { return nil }

type fakeMailbox struct {
	pages  []domain.Page
	idx    int
	resets int
}

func (m *fakeMailbox) AwaitLatest(ctx context.Context, timeout time.Duration) (domain.Page, error) {
	if m.idx >= len(m.pages) {
		return domain.Page{}, domain.ErrExtractionTimeout
	}
	page := m.pages[m.idx]
	m.idx++
	if page.Info.Total == 0 && len(page.Records) == 0 {
		return page, domain.ErrNoData
	}
	return page, nil
}
func (m *fakeMailbox) Reset() { m.resets++ }

type nopPager struct{}

func (nopPager) HasNext(ctx context.Context) (bool, error) { return false, nil }
func (nopPager) Advance(ctx context.Context) error         { return nil }

type recordingStore struct {
	upserts  map[string][]domain.Record
	counts   map[string]int
	pruned   int
	inserted int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{upserts: map[string][]domain.Record{}, counts: map[string]int{}}
}

func (s *recordingStore) Upsert(ctx context.Context, records []domain.Record, targetDate time.Time) (int, error) {
	key := targetDate.Format("2006-01-02")
	s.upserts[key] = append(s.upserts[key], records...)
	s.inserted += len(records)
	return len(records), nil
}

func (s *recordingStore) Query(ctx context.Context, params domain.QueryParams) (domain.QueryResult, error) {
	return domain.QueryResult{}, nil
}

func (s *recordingStore) ListEntities(ctx context.Context) ([]string, error) { return nil, nil }

func (s *recordingStore) CountForDate(ctx context.Context, date time.Time) (int, error) {
	return s.counts[date.Format("2006-01-02")], nil
}

func (s *recordingStore) Watermarks(ctx context.Context) (map[string]time.Time, error) {
	return nil, nil
}

func (s *recordingStore) EntityWatermarks(ctx context.Context) (map[string]time.Time, error) {
	return nil, nil
}

func (s *recordingStore) Prune(ctx context.Context, keepMonths int) ([]string, error) {
	s.pruned++
	return nil, nil
}

func (s *recordingStore) Info(ctx context.Context) (domain.StoreInfo, error) {
	return domain.StoreInfo{}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		NavTimeoutMs:     1000,
		WaitTimeoutMs:    50,
		MaxPages:         20,
		FetchAttempts:    1,
		InitialBackoffMs: 1,
	}
}

func portalPage(total int, ids ...string) domain.Page {
	records := make([]domain.Record, len(ids))
	for i, id := range ids {
		records[i] = domain.Record{Values: map[string]any{"ID": id, "MDShow": "店" + id}}
	}
	return domain.Page{
		Records: records,
		Info:    domain.PageInfo{Total: total, PageSize: 10, PageNo: 1, HasMore: false},
	}
}

func newTestIngest(auto *fakeAutomator, mailbox ports.PageMailbox, store *recordingStore) *Ingest {
	return NewIngest(IngestDeps{
		Automator:  auto,
		Mailbox:    mailbox,
		Pager:      nopPager{},
		Store:      store,
		Browser:    fastBrowserConfig(),
		KeepMonths: 1,
		Logger:     quietLogger(),
	})
}

func mustDay(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRunIngestsAndPrunes(t *testing.T) {
	t.Parallel()

	auto := &fakeAutomator{}
	mailbox := &fakeMailbox{pages: []domain.Page{portalPage(2, "1", "2")}}
	store := newRecordingStore()

	results := newTestIngest(auto, mailbox, store).Run(context.Background(), []time.Time{mustDay("2025-08-01")})
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.Equal(t, 2, results[0].Inserted)
	require.NotEmpty(t, results[0].RunID)
	require.Len(t, store.upserts["2025-08-01"], 2)
	require.Equal(t, 1, store.pruned, "retention must run after ingestion")
	require.Len(t, auto.windows, 1)
}

func TestRunLoginFailureFailsAllDates(t *testing.T) {
	t.Parallel()

	auto := &fakeAutomator{loginErr: errors.New("bad credentials")}
	store := newRecordingStore()
	dates := []time.Time{mustDay("2025-08-01"), mustDay("2025-08-02")}

	results := newTestIngest(auto, &fakeMailbox{}, store).Run(context.Background(), dates)
	require.Len(t, results, 2)
	for _, res := range results {
		require.False(t, res.Success)
		require.Contains(t, res.Message, "login failed")
	}
	require.Zero(t, store.inserted)
	require.Empty(t, auto.windows)
}

func TestRunShortCircuitsCurrentStore(t *testing.T) {
	t.Parallel()

	auto := &fakeAutomator{}
	mailbox := &fakeMailbox{pages: []domain.Page{portalPage(2, "1", "2")}}
	store := newRecordingStore()
	store.counts["2025-08-01"] = 2

	results := newTestIngest(auto, mailbox, store).Run(context.Background(), []time.Time{mustDay("2025-08-01")})
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.Zero(t, results[0].Inserted)
	require.Zero(t, store.inserted, "a current store must not be rewritten")
}

func TestRunNoDataDay(t *testing.T) {
	t.Parallel()

	auto := &fakeAutomator{}
	mailbox := &fakeMailbox{pages: []domain.Page{{}}}
	store := newRecordingStore()

	results := newTestIngest(auto, mailbox, store).Run(context.Background(), []time.Time{mustDay("2025-08-01")})
	require.Len(t, results, 1)
	require.True(t, results[0].Success, "an empty portal day is not a failure")
	require.Zero(t, store.inserted)
}

func TestRunFailedDateDoesNotAbortOthers(t *testing.T) {
	t.Parallel()

	auto := &fakeAutomator{}
	// First date times out, second serves a page.
	mailbox := &fakeMailbox{pages: []domain.Page{portalPage(1, "9")}}
	store := newRecordingStore()

	ingest := newTestIngest(auto, &timeoutThenServe{inner: mailbox}, store)
	results := ingest.Run(context.Background(), []time.Time{mustDay("2025-08-01"), mustDay("2025-08-02")})
	require.Len(t, results, 2)
	require.False(t, results[0].Success)
	require.True(t, results[1].Success)
	require.Equal(t, 1, store.inserted)
}

// timeoutThenServe times out on the first await, then delegates.
type timeoutThenServe struct {
	inner  *fakeMailbox
	served bool
}

func (m *timeoutThenServe) AwaitLatest(ctx context.Context, timeout time.Duration) (domain.Page, error) {
	if !m.served {
		m.served = true
		return domain.Page{}, domain.ErrExtractionTimeout
	}
	return m.inner.AwaitLatest(ctx, timeout)
}
func (m *timeoutThenServe) Reset() { m.inner.Reset() }

func TestIncrementalDates(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 10, 15, 0, 0, 0, time.UTC)

	// Empty store: just yesterday.
	dates := IncrementalDates(nil, now)
	require.Len(t, dates, 1)
	require.Equal(t, "2025-08-09", dates[0].Format("2006-01-02"))

	// Watermark three days back: the gap up to yesterday.
	marks := map[string]time.Time{"2025-08": mustDay("2025-08-06")}
	dates = IncrementalDates(marks, now)
	require.Len(t, dates, 3)
	require.Equal(t, "2025-08-07", dates[0].Format("2006-01-02"))
	require.Equal(t, "2025-08-09", dates[2].Format("2006-01-02"))

	// Already current: nothing to do.
	marks = map[string]time.Time{"2025-08": mustDay("2025-08-09")}
	require.Empty(t, IncrementalDates(marks, now))

	// The newest month wins over older ones.
	marks = map[string]time.Time{
		"2025-07": mustDay("2025-07-31"),
		"2025-08": mustDay("2025-08-08"),
	}
	dates = IncrementalDates(marks, now)
	require.Len(t, dates, 1)
	require.Equal(t, "2025-08-09", dates[0].Format("2006-01-02"))
}
