package webscraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/yingtu35/linkcrawler/internal/linkcheck"
)

var (
	ErrInvalidTarget  = errors.New("invalid target URL")
	ErrInvalidDepth   = errors.New("max depth must be zero or greater")
	ErrAlreadyStarted = errors.New("crawler already started")
)

// Page is a loaded document. Close releases whatever the loader holds for it
// (a browser context for the browser loader) and is safe to call twice.
type Page struct {
	URL      string            // The URL that was requested
	FinalURL string            // The URL after redirects
	Document *goquery.Document // The parsed, possibly rendered, document

	release func()
	once    sync.Once
}

func (p *Page) Close() {
	if p == nil || p.release == nil {
		return
	}
	p.once.Do(p.release)
}

// PageLoader fetches and renders pages.
type PageLoader interface {
	Load(ctx context.Context, url string) (*Page, error)
	Close() error
}

// Extraction is what a LinkExtractor found on one page.
type Extraction struct {
	Links        []*linkcheck.Link
	CanonicalURL string // Empty when the page declares none
}

// LinkExtractor pulls outbound links from a loaded page.
type LinkExtractor interface {
	Extract(page *Page, includeResources bool) (*Extraction, error)
}

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Report is the outcome of one crawl. Links keeps discovery order.
type Report struct {
	SessionID    string            `json:"session_id"`
	Target       string            `json:"target"`
	MaxDepth     int               `json:"max_depth"`
	State        State             `json:"state"`
	Links        []*linkcheck.Link `json:"links"`
	PagesScanned int               `json:"pages_scanned"`
	LinksFound   int               `json:"links_found"`
	LinksChecked int               `json:"links_checked"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}

// Duration returns how long the crawl ran.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
