package crawler

import (
	"context"
	"time"

	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
)

// Mailbox is the capacity-1 overwrite-on-full channel holding the latest
// observed result page. The network tap publishes into it; the walker
// consumes from it. A page published before the previous one was read
// replaces it, which mirrors the portal UI: only the page currently on
// screen matters.
type Mailbox struct {
	slot chan domain.Page
}

var _ ports.PageMailbox = (*Mailbox)(nil)

// NewMailbox builds an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{slot: make(chan domain.Page, 1)}
}

// Publish stores p as the latest page, displacing an unread one.
func (m *Mailbox) Publish(p domain.Page) {
	for {
		select {
		case m.slot <- p:
			return
		default:
			select {
			case <-m.slot:
			default:
			}
		}
	}
}

// AwaitLatest blocks until a page arrives or the timeout elapses. A page
// with total==0 is returned as-is together with domain.ErrNoData so callers
// can separate "portal says empty" from "portal never answered".
func (m *Mailbox) AwaitLatest(ctx context.Context, timeout time.Duration) (domain.Page, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case page := <-m.slot:
		if page.Info.Total == 0 && len(page.Records) == 0 {
			return page, domain.ErrNoData
		}
		return page, nil
	case <-ctx.Done():
		return domain.Page{}, ctx.Err()
	case <-timer.C:
		return domain.Page{}, domain.ErrExtractionTimeout
	}
}

// Reset drains the slot. Called before a pagination click so a stale page
// cannot be mistaken for the next one.
func (m *Mailbox) Reset() {
	select {
	case <-m.slot:
	default:
	}
}
