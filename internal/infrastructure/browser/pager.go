package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
)

const selPaginationList = `ul.lb-MuiPagination-ul`

// muiPager drives the portal's MUI pagination widget. The last list item
// holds the next-page arrow; a disabled attribute on its button means the
// current page is the final one.
type muiPager struct {
	page   *rod.Page
	wait   time.Duration
	logger *slog.Logger
}

var _ ports.Pager = (*muiPager)(nil)

func (p *muiPager) HasNext(ctx context.Context) (bool, error) {
	btn, err := p.nextButton(ctx)
	if err != nil {
		return false, err
	}
	if btn == nil {
		return false, nil
	}
	disabled, err := btn.Attribute("disabled")
	if err != nil {
		return false, domain.NewAutomationError(domain.KindBrowser, "read next button state", err)
	}
	return disabled == nil, nil
}

func (p *muiPager) Advance(ctx context.Context) error {
	btn, err := p.nextButton(ctx)
	if err != nil {
		return err
	}
	if btn == nil {
		return domain.NewAutomationError(domain.KindMissingControl, "next page button", nil)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return domain.NewAutomationError(domain.KindBrowser, "click next page", err)
	}
	return nil
}

// nextButton returns the arrow button inside the pagination list's last item,
// or nil when the widget is absent (single-page result sets render none).
func (p *muiPager) nextButton(ctx context.Context) (*rod.Element, error) {
	page := p.page.Context(ctx)

	list, err := page.Timeout(p.wait).Element(selPaginationList)
	if err != nil {
		p.logger.Debug("pagination widget not found", "error", err)
		return nil, nil
	}
	items, err := list.Elements("li")
	if err != nil || len(items) == 0 {
		return nil, nil
	}
	btn, err := items[len(items)-1].Element("button")
	if err != nil {
		return nil, nil
	}
	return btn, nil
}
