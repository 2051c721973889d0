package browser

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/CaixiangyangCD/ksx/internal/crawler"
	"github.com/CaixiangyangCD/ksx/internal/domain"
)

// publisher is the write side of the page mailbox.
type publisher interface {
	Publish(page domain.Page)
}

// ResponseTap observes CDP network events on one page and publishes every
// decoded portal payload. Decoding happens off the page data rather than the
// DOM: the portal renders after the XHR lands, so the wire response is the
// earliest consistent view of a page.
type ResponseTap struct {
	endpoint string
	mailbox  publisher
	logger   *slog.Logger
}

func newResponseTap(ctx context.Context, page *rod.Page, endpoint string, mailbox publisher, logger *slog.Logger) *ResponseTap {
	t := &ResponseTap{
		endpoint: endpoint,
		mailbox:  mailbox,
		logger:   logger,
	}

	wait := page.Context(ctx).EachEvent(func(e *proto.NetworkResponseReceived) {
		if !strings.Contains(e.Response.URL, t.endpoint) {
			return
		}
		body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(page)
		if err != nil {
			// The body is evicted once the page navigates; a miss here
			// only costs one retry of the await.
			t.logger.Debug("response body unavailable", "url", e.Response.URL, "error", err)
			return
		}
		t.handleBody(e.Response.URL, []byte(body.Body))
	})
	// EachEvent unsubscribes when ctx is done; the session's lifetime
	// context is the tap's lifetime.
	go wait()
	return t
}

func (t *ResponseTap) handleBody(url string, body []byte) {
	page, ok, err := crawler.DecodePayload(body)
	if err != nil {
		t.logger.Warn("undecodable portal response", "url", url, "error", err)
		return
	}
	if !ok {
		t.logger.Debug("non-page portal response skipped", "url", url)
		return
	}
	t.logger.Debug("page captured",
		"page", page.Info.PageNo,
		"records", len(page.Records),
		"total", page.Info.Total)
	t.mailbox.Publish(page)
}
