package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
	"github.com/CaixiangyangCD/ksx/internal/retry"
)

// walkState enumerates the pagination state machine.
type walkState int

const (
	stateAwaitingPage walkState = iota
	stateHasPage
	statePaginating
	stateExhausted
)

// WalkResult is the outcome of draining one query's pages.
type WalkResult struct {
	Records []domain.Record
	// ReportedTotal is the row count the portal announced on page 1.
	// Callers use it to skip a full pull when the store already holds
	// that many rows for the target date.
	ReportedTotal int
	NoData        bool
	PagesFetched  int
	// AlreadyComplete is set when page 1 announced exactly KnownCount
	// rows, meaning the store is current and the walk stopped early.
	AlreadyComplete bool
}

// Walker drains a paginated query by alternating mailbox waits with clicks
// on the next-page control. It never trusts a single termination signal:
// hasMore, the derived page count, a stagnation guard, and a hard page cap
// all bound the loop independently.
type Walker struct {
	mailbox     ports.PageMailbox
	pager       ports.Pager
	policy      retry.Policy
	maxPage     int
	pageTimeout time.Duration
	knownCount  int
	logger      *slog.Logger
}

// WalkerOptions tunes a Walker.
type WalkerOptions struct {
	Policy      retry.Policy
	MaxPages    int
	PageTimeout time.Duration
	Logger      *slog.Logger
	// KnownCount is how many rows the store already holds for the target
	// date. When page 1 reports the same total the walk ends after that
	// page instead of re-pulling an unchanged day.
	KnownCount int
}

// NewWalker wires the walker with its collaborators.
func NewWalker(mailbox ports.PageMailbox, pager ports.Pager, opts WalkerOptions) *Walker {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 20
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 10 * time.Second
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.Default()
	}
	return &Walker{
		mailbox:     mailbox,
		pager:       pager,
		policy:      opts.Policy,
		maxPage:     opts.MaxPages,
		pageTimeout: opts.PageTimeout,
		knownCount:  opts.KnownCount,
		logger:      opts.Logger,
	}
}

// Walk runs the state machine to completion. A zero-total page 1 yields a
// NoData result, not an error; exhausted retries on page 1 yield
// domain.ErrExtractionTimeout.
func (w *Walker) Walk(ctx context.Context) (WalkResult, error) {
	var (
		result     WalkResult
		seen       = map[string]struct{}{}
		totalPages = 0
		pageNo     = 1
		state      = stateAwaitingPage
	)

	for {
		switch state {
		case stateAwaitingPage:
			page, err := w.fetchPage(ctx)
			if err != nil {
				if errors.Is(err, domain.ErrNoData) && pageNo == 1 {
					w.debug("portal reported zero rows")
					result.NoData = true
					return result, nil
				}
				if pageNo == 1 {
					return result, fmt.Errorf("page 1: %w", err)
				}
				// A later page that never arrives ends the pull with
				// what was accumulated so far.
				w.debug("page wait failed mid-walk", "page", pageNo, "error", err)
				state = stateExhausted
				continue
			}

			result.PagesFetched++
			if pageNo == 1 {
				result.ReportedTotal = page.Info.Total
				totalPages = page.Info.TotalPages()
				if w.knownCount > 0 && page.Info.Total == w.knownCount {
					w.debug("store already current", "total", page.Info.Total)
					result.AlreadyComplete = true
					state = stateExhausted
					continue
				}
			}
			state = stateHasPage

			fresh := 0
			for _, rec := range page.Records {
				id := rec.RawID()
				if id == "" {
					result.Records = append(result.Records, rec)
					fresh++
					continue
				}
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				result.Records = append(result.Records, rec)
				fresh++
			}
			w.debug("page accumulated", "page", pageNo, "rows", len(page.Records), "fresh", fresh)

			switch {
			case !page.Info.HasMore:
				state = stateExhausted
			case totalPages > 0 && pageNo >= totalPages:
				state = stateExhausted
			case fresh == 0:
				// The UI re-served a page it already showed; stop
				// instead of looping on it.
				w.debug("stagnant page, terminating", "page", pageNo)
				state = stateExhausted
			case pageNo >= w.maxPage:
				w.debug("page cap reached", "cap", w.maxPage)
				state = stateExhausted
			default:
				state = statePaginating
			}

		case statePaginating:
			ok, err := w.pager.HasNext(ctx)
			if err != nil {
				return result, fmt.Errorf("next-page control: %w", err)
			}
			if !ok {
				state = stateExhausted
				continue
			}
			w.mailbox.Reset()
			if err := w.pager.Advance(ctx); err != nil {
				return result, fmt.Errorf("advance page %d: %w", pageNo, err)
			}
			pageNo++
			state = stateAwaitingPage

		case stateExhausted:
			w.debug("walk complete", "pages", result.PagesFetched, "records", len(result.Records))
			return result, nil
		}
	}
}

func (w *Walker) fetchPage(ctx context.Context) (domain.Page, error) {
	var page domain.Page
	err := w.policy.Do(ctx, func(ctx context.Context) error {
		var waitErr error
		page, waitErr = w.mailbox.AwaitLatest(ctx, w.pageTimeout)
		return waitErr
	})
	return page, err
}

func (w *Walker) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
