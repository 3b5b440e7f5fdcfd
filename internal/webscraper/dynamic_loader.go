package webscraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
	"github.com/yingtu35/linkcrawler/internal/linkcheck"
)

// markPositions stores each candidate element's document position on the
// element itself, so the extractor can read it from the serialized HTML.
// Elements that are not rendered get no position.
const markPositions = `() => {
	const els = document.querySelectorAll('a[href], area[href], img[src], link[href], script[src]');
	for (const el of els) {
		const r = el.getBoundingClientRect();
		if (r.width === 0 && r.height === 0) continue;
		el.setAttribute('` + positionTopAttr + `', String(r.top + window.scrollY));
		el.setAttribute('` + positionLeftAttr + `', String(r.left + window.scrollX));
	}
}`

type BrowserLoaderOptions struct {
	Timeout   time.Duration
	UserAgent string
	Logger    *logrus.Entry
}

// BrowserLoader renders pages in headless Chromium. Every Load gets its own
// browser context, released by Page.Close.
type BrowserLoader struct {
	pwClient  *playwright.Playwright // The Playwright client to use
	browser   playwright.Browser     // The Playwright browser to use
	timeout   time.Duration
	userAgent string
	log       *logrus.Entry

	closeOnce sync.Once
	closeErr  error
}

// NewBrowserLoader starts Playwright and launches Chromium. The browser
// binaries must already be installed.
func NewBrowserLoader(opts BrowserLoaderOptions) (*BrowserLoader, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPageLoadTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = linkcheck.DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "loader")
	}

	pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &BrowserLoader{
		pwClient:  pw,
		browser:   browser,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}, nil
}

// Load navigates to url and waits up to the page load timeout. A timeout is
// not a failure: whatever has rendered by then is used.
func (l *BrowserLoader) Load(ctx context.Context, url string) (*Page, error) {
	if ctx.Err() != nil {
		return nil, linkcheck.ErrCancelled
	}

	bctx, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(l.userAgent),
	})
	if err != nil {
		return nil, linkcheck.NewExtractionError(url, err)
	}
	release := func() {
		if err := bctx.Close(); err != nil {
			l.log.Warnf("Error closing browser context for %s: %v", url, err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		release()
		return nil, linkcheck.NewExtractionError(url, err)
	}

	l.log.WithField("url", url).Info("fetching dynamic page")
	resp, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(l.timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	switch {
	case errors.Is(err, playwright.ErrTimeout):
		l.log.WithField("url", url).Debug("page load timed out, proceeding anyway")
	case err != nil:
		release()
		return nil, linkcheck.NewExtractionError(url, err)
	case resp != nil && resp.Status() >= 400:
		release()
		return nil, linkcheck.NewExtractionError(url, fmt.Errorf("HTTP %d", resp.Status()))
	}

	if _, err := page.Evaluate(markPositions); err != nil {
		l.log.WithField("url", url).Debugf("measuring link positions failed: %v", err)
	}

	content, err := page.Content()
	if err != nil {
		release()
		return nil, linkcheck.NewExtractionError(url, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		release()
		return nil, linkcheck.NewExtractionError(url, err)
	}

	return &Page{URL: url, FinalURL: page.URL(), Document: doc, release: release}, nil
}

// Close shuts the browser and the Playwright driver down.
func (l *BrowserLoader) Close() error {
	l.closeOnce.Do(func() {
		if err := l.browser.Close(); err != nil {
			l.closeErr = fmt.Errorf("closing browser: %w", err)
		}
		if err := l.pwClient.Stop(); err != nil && l.closeErr == nil {
			l.closeErr = fmt.Errorf("stopping playwright: %w", err)
		}
	})
	return l.closeErr
}
