package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

func pageWithTotal(pageNo, rows, total int) domain.Page {
	records := make([]domain.Record, rows)
	for i := range records {
		records[i] = domain.Record{Values: map[string]any{"rawId": "r"}}
	}
	return domain.Page{
		Records: records,
		Info:    domain.PageInfo{Total: total, PageSize: 10, PageNo: pageNo, HasMore: false},
	}
}

func TestMailboxDeliversLatest(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	m.Publish(pageWithTotal(1, 2, 30))

	page, err := m.AwaitLatest(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, page.Info.PageNo)
	require.Len(t, page.Records, 2)
}

func TestMailboxOverwritesUnreadPage(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	m.Publish(pageWithTotal(1, 1, 30))
	m.Publish(pageWithTotal(2, 3, 30))

	page, err := m.AwaitLatest(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, page.Info.PageNo, "newer page must displace the unread one")
}

func TestMailboxNoData(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	m.Publish(domain.Page{Info: domain.PageInfo{Total: 0}})

	_, err := m.AwaitLatest(context.Background(), time.Second)
	require.ErrorIs(t, err, domain.ErrNoData)
}

func TestMailboxTimeout(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	_, err := m.AwaitLatest(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrExtractionTimeout)
}

func TestMailboxContextCancellation(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.AwaitLatest(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMailboxResetDropsPending(t *testing.T) {
	t.Parallel()

	m := NewMailbox()
	m.Publish(pageWithTotal(1, 1, 30))
	m.Reset()

	_, err := m.AwaitLatest(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrExtractionTimeout)
}
