package webscraper

import (
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/yingtu35/linkcrawler/internal/linkcheck"
	"github.com/yingtu35/linkcrawler/internal/progress"
	"github.com/yingtu35/linkcrawler/internal/store"
)

// Session is the mutable state of one crawl. It is owned by the Crawler
// that created it; the cache and counters are shared with in-flight checks.
type Session struct {
	ID               string
	Target           string
	Origin           string
	MaxDepth         int
	IncludeResources bool
	StartedAt        time.Time

	visited   mapset.Set[string] // Page keys (request or canonical URL) already processed
	cache     *linkcheck.Cache
	reporter  *progress.Reporter
	scheduler *linkcheck.Scheduler

	resultsMu sync.Mutex
	results   []*linkcheck.Link // Append-only, discovery order

	pagesScanned atomic.Int64
	totalPages   atomic.Int64 // Pages known so far, scanned or not
	linksFound   atomic.Int64
	linksChecked atomic.Int64
	cancelled    atomic.Bool
}

func newSession(id, target, origin string, maxDepth int, includeResources bool, scheduler *linkcheck.Scheduler, reporter *progress.Reporter) *Session {
	s := &Session{
		ID:               id,
		Target:           target,
		Origin:           origin,
		MaxDepth:         maxDepth,
		IncludeResources: includeResources,
		StartedAt:        time.Now(),
		visited:          mapset.NewSet[string](),
		cache:            linkcheck.NewCache(),
		reporter:         reporter,
		scheduler:        scheduler.WithReporter(reporter),
	}
	s.totalPages.Store(1)
	return s
}

func (s *Session) appendResults(links []*linkcheck.Link) {
	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()
	s.results = append(s.results, links...)
}

// Results returns a copy of the links collected so far.
func (s *Session) Results() []*linkcheck.Link {
	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()
	return append([]*linkcheck.Link(nil), s.results...)
}

// markCancelled sets the cancelled flag and reports whether this call set it.
func (s *Session) markCancelled() bool {
	return s.cancelled.CompareAndSwap(false, true)
}

func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

func (s *Session) report(state State) *Report {
	return &Report{
		SessionID:    s.ID,
		Target:       s.Target,
		MaxDepth:     s.MaxDepth,
		State:        state,
		Links:        s.Results(),
		PagesScanned: int(s.pagesScanned.Load()),
		LinksFound:   int(s.linksFound.Load()),
		LinksChecked: int(s.linksChecked.Load()),
		StartedAt:    s.StartedAt,
		FinishedAt:   time.Now(),
	}
}

func (s *Session) status(state State) store.CrawlStatus {
	return store.CrawlStatus{
		SessionID:    s.ID,
		Target:       s.Target,
		State:        string(state),
		PagesScanned: int(s.pagesScanned.Load()),
		TotalPages:   int(s.totalPages.Load()),
		LinksFound:   int(s.linksFound.Load()),
		LinksChecked: int(s.linksChecked.Load()),
		StartedAt:    s.StartedAt,
		UpdatedAt:    time.Now(),
	}
}
