// Package browser implements the portal-facing automation adapters on top
// of go-rod: the login/search session, the network response tap, and the
// pagination control.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/CaixiangyangCD/ksx/internal/config"
	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
)

// Portal element selectors. The portal ships a custom component library, so
// these are class-based and fragile by nature; they are isolated here.
const (
	selUserInput    = `input[name="userId"]`
	selPassInput    = `input[name="pass"]`
	selLoginButton  = `button[type="submit"]`
	selExpandButton = `button.lb-LBObjectParameterFormExpandButton-root`
	selDateInput    = `input.lb-LBDatePicker-input[type="text"]`
	selSearchButton = `button.lb-LBButton-contained`
)

// Session owns one automated browser session against the reporting portal.
type Session struct {
	cfg     config.PortalConfig
	browser config.BrowserConfig
	logger  *slog.Logger

	rodBrowser *rod.Browser
	page       *rod.Page
	tap        *ResponseTap
}

var _ ports.Automator = (*Session)(nil)

// NewSession launches a browser and opens the portal page with the response
// tap already subscribed, so that no later search can outrun the observer.
func NewSession(ctx context.Context, portal config.PortalConfig, browserCfg config.BrowserConfig, mailbox publisher, logger *slog.Logger) (*Session, error) {
	controlURL, err := launcher.New().Headless(browserCfg.Headless).Launch()
	if err != nil {
		return nil, domain.NewAutomationError(domain.KindBrowser, "launch chrome", err)
	}

	rodBrowser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := rodBrowser.Connect(); err != nil {
		return nil, domain.NewAutomationError(domain.KindBrowser, "connect to chrome", err)
	}

	page, err := rodBrowser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = rodBrowser.Close()
		return nil, domain.NewAutomationError(domain.KindBrowser, "create page", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		logger.Warn("set viewport failed", "error", err)
	}

	s := &Session{
		cfg:        portal,
		browser:    browserCfg,
		logger:     logger,
		rodBrowser: rodBrowser,
		page:       page,
	}
	// Subscribe before any navigation: the search fires its request the
	// moment the button is clicked.
	s.tap = newResponseTap(ctx, page, portal.Endpoint, mailbox, logger)
	return s, nil
}

// Login navigates to the portal and submits credentials. The portal emits no
// positive login confirmation, so absence of a clear negative signal (still
// sitting on a login URL) is treated as success.
func (s *Session) Login(ctx context.Context) error {
	page := s.page.Context(ctx).Timeout(s.browser.NavTimeout())

	if err := page.Navigate(s.cfg.URL); err != nil {
		return domain.NewAutomationError(domain.KindBrowser, "navigate to portal", err)
	}
	if err := page.WaitIdle(s.browser.NavTimeout()); err != nil {
		s.logger.Debug("network idle wait ended early", "error", err)
	}

	user, err := page.Timeout(s.browser.WaitTimeout()).Element(selUserInput)
	if err != nil {
		return domain.NewAutomationError(domain.KindMissingControl, "username input", err)
	}
	pass, err := page.Timeout(s.browser.WaitTimeout()).Element(selPassInput)
	if err != nil {
		return domain.NewAutomationError(domain.KindMissingControl, "password input", err)
	}
	submit, err := page.Timeout(s.browser.WaitTimeout()).Element(selLoginButton)
	if err != nil {
		return domain.NewAutomationError(domain.KindMissingControl, "login button", err)
	}

	if err := fillInput(user, s.cfg.Username); err != nil {
		return domain.NewAutomationError(domain.KindLogin, "type username", err)
	}
	if err := fillInput(pass, s.cfg.Password); err != nil {
		return domain.NewAutomationError(domain.KindLogin, "type password", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return domain.NewAutomationError(domain.KindLogin, "click login", err)
	}

	if err := page.WaitIdle(s.browser.NavTimeout()); err != nil {
		s.logger.Debug("post-login idle wait ended early", "error", err)
	}

	info, err := s.page.Info()
	if err != nil {
		return domain.NewAutomationError(domain.KindBrowser, "read page info", err)
	}
	if strings.Contains(strings.ToLower(info.URL), "login") {
		return domain.NewAutomationError(domain.KindLogin, "still on login page after submit", nil)
	}

	s.logger.Info("logged in", "url", info.URL)
	return nil
}

// SetQueryWindow expands the filter panel, fills both date controls (the
// portal requires start and end even for a single day), and triggers the
// search whose response the tap will capture.
func (s *Session) SetQueryWindow(ctx context.Context, start, end time.Time) error {
	page := s.page.Context(ctx)

	expand, err := page.Timeout(s.browser.WaitTimeout()).Element(selExpandButton)
	if err != nil {
		return domain.NewAutomationError(domain.KindMissingControl, "filter expand button", err)
	}
	if err := expand.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return domain.NewAutomationError(domain.KindBrowser, "expand filter panel", err)
	}

	inputs, err := page.Timeout(s.browser.WaitTimeout()).Elements(selDateInput)
	if err != nil || len(inputs) == 0 {
		return domain.NewAutomationError(domain.KindMissingControl, "date inputs", err)
	}

	dates := []string{start.Format("2006-01-02"), end.Format("2006-01-02")}
	for i, input := range inputs {
		if i >= len(dates) {
			break
		}
		if err := fillInput(input, dates[i]); err != nil {
			return domain.NewAutomationError(domain.KindBrowser, fmt.Sprintf("fill date input %d", i), err)
		}
	}
	// Single date control: the portal reuses it for both bounds.
	if len(inputs) == 1 {
		s.logger.Debug("portal exposes one date control, window collapsed", "date", dates[0])
	}

	search, err := page.Timeout(s.browser.WaitTimeout()).Element(selSearchButton)
	if err != nil {
		return domain.NewAutomationError(domain.KindMissingControl, "search button", err)
	}
	if err := search.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return domain.NewAutomationError(domain.KindBrowser, "click search", err)
	}

	s.logger.Info("search triggered", "start", dates[0], "end", dates[1])
	return nil
}

// Pager returns the next-page capability bound to this session's page.
func (s *Session) Pager() ports.Pager {
	return &muiPager{page: s.page, wait: s.browser.WaitTimeout(), logger: s.logger}
}

// Close tears down the page and browser.
func (s *Session) Close() error {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.rodBrowser != nil {
		err := s.rodBrowser.Close()
		s.rodBrowser = nil
		return err
	}
	return nil
}

func fillInput(el *rod.Element, value string) error {
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}
