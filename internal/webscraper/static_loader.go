package webscraper

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"github.com/yingtu35/linkcrawler/internal/linkcheck"
)

type StaticLoaderOptions struct {
	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int
	Logger      *logrus.Entry
}

// StaticLoader fetches pages over plain HTTP with colly. No JavaScript runs,
// so links carry no on-page position.
type StaticLoader struct {
	collector *colly.Collector // Base collector, cloned for every load
	log       *logrus.Entry
}

func NewStaticLoader(opts StaticLoaderOptions) *StaticLoader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPageLoadTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = linkcheck.DefaultUserAgent
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "loader")
	}

	c := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(), // the crawler does its own dedup
		colly.MaxBodySize(opts.MaxBodySize),
		colly.DetectCharset(),
	)
	c.SetRequestTimeout(opts.Timeout)

	return &StaticLoader{collector: c, log: opts.Logger}
}

// Load fetches url and parses it. HTTP error statuses and non-HTML
// responses are load failures.
func (l *StaticLoader) Load(ctx context.Context, url string) (*Page, error) {
	c := l.collector.Clone()
	c.Context = ctx

	var page *Page
	var loadErr error

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "html") {
			loadErr = fmt.Errorf("not an HTML page: %s", contentType)
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			loadErr = err
			return
		}
		page = &Page{URL: url, FinalURL: r.Request.URL.String(), Document: doc}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			loadErr = fmt.Errorf("HTTP %d: %w", r.StatusCode, err)
			return
		}
		loadErr = err
	})

	l.log.WithField("url", url).Info("fetching page")
	if err := c.Visit(url); err != nil && loadErr == nil {
		loadErr = err
	}
	if loadErr != nil {
		return nil, linkcheck.NewExtractionError(url, loadErr)
	}
	if page == nil {
		return nil, linkcheck.NewExtractionError(url, fmt.Errorf("no response"))
	}
	return page, nil
}

// Close is a no-op; colly holds no resources between loads.
func (l *StaticLoader) Close() error {
	return nil
}
