package ports

import (
	"context"
	"time"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

// Automator drives the portal UI for one ingestion session. Implementations
// must have the response tap subscribed before SetQueryWindow fires the
// search, since the search immediately emits the request being observed.
type Automator interface {
	Login(ctx context.Context) error
	SetQueryWindow(ctx context.Context, start, end time.Time) error
	Close() error
}

// PageMailbox is the single-slot "latest observed page" hand-off between the
// network tap and the page walker. A new page overwrites an unread one.
type PageMailbox interface {
	AwaitLatest(ctx context.Context, timeout time.Duration) (domain.Page, error)
	Reset()
}

// Pager abstracts the portal's flaky "next page" control so the walker can
// be tested without a browser.
type Pager interface {
	HasNext(ctx context.Context) (bool, error)
	Advance(ctx context.Context) error
}

// RecordStore persists extracted records into date shards. Watermarks bounds
// the crawler's incremental date range per month; EntityWatermarks reports
// each entity's ingested-through date for incremental reconciliation.
type RecordStore interface {
	Upsert(ctx context.Context, records []domain.Record, targetDate time.Time) (int, error)
	Query(ctx context.Context, params domain.QueryParams) (domain.QueryResult, error)
	ListEntities(ctx context.Context) ([]string, error)
	CountForDate(ctx context.Context, date time.Time) (int, error)
	Watermarks(ctx context.Context) (map[string]time.Time, error)
	EntityWatermarks(ctx context.Context) (map[string]time.Time, error)
	Prune(ctx context.Context, keepMonths int) ([]string, error)
	Info(ctx context.Context) (domain.StoreInfo, error)
}

// SpreadsheetSource parses an uploaded workbook into
// entity -> metric key -> day label -> raw value.
type SpreadsheetSource interface {
	Read(path string) (map[string]map[string]map[string]string, error)
}
