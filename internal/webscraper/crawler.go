package webscraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yingtu35/linkcrawler/internal/linkcheck"
	"github.com/yingtu35/linkcrawler/internal/progress"
	"github.com/yingtu35/linkcrawler/internal/store"
	"github.com/yingtu35/linkcrawler/pkg/domain"
)

const statusWriteTimeout = 2 * time.Second

type CrawlerOptions struct {
	Observer    progress.Observer // Receives progress events; may be nil
	StatusStore store.StatusStore // Receives state changes; may be nil
	Logger      *logrus.Entry
}

// Crawler runs one depth-bounded, same-origin crawl. A Crawler is single-use.
type Crawler struct {
	loader    PageLoader
	extractor LinkExtractor
	scheduler *linkcheck.Scheduler
	observer  progress.Observer
	status    store.StatusStore
	log       *logrus.Entry

	mu        sync.Mutex // Protects state, sessionID, session and cancel
	state     State
	sessionID string
	session   *Session
	cancel    context.CancelFunc
}

func NewCrawler(loader PageLoader, extractor LinkExtractor, scheduler *linkcheck.Scheduler, opts CrawlerOptions) *Crawler {
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "crawler")
	}
	return &Crawler{
		loader:    loader,
		extractor: extractor,
		scheduler: scheduler,
		observer:  opts.Observer,
		status:    opts.StatusStore,
		log:       opts.Logger,
		state:     StateIdle,
	}
}

// State returns the crawler's current state.
func (c *Crawler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the ID of the session started by Run, including a
// failed one, or "" before Run.
func (c *Crawler) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Cancel requests early termination of a running crawl. No new page visit,
// batch or check starts afterwards; requests already in flight finish on
// their own timeout. It reports whether this call requested the stop.
func (c *Crawler) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning || !c.session.markCancelled() {
		return false
	}
	c.log.WithField("session", c.session.ID).Info("cancellation requested")
	c.cancel()
	return true
}

// Run crawls target, checking every link found on pages up to maxDepth
// hops away. Only an unusable target fails the crawl; a cancelled crawl
// returns its partial report with StateCancelled.
func (c *Crawler) Run(ctx context.Context, target string, maxDepth int, includeResources bool) (*Report, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	id := uuid.NewString()
	c.sessionID = id

	origin, err := domain.GetOrigin(target)
	if err != nil {
		return c.fail(ctx, id, target, fmt.Errorf("%w: %s", ErrInvalidTarget, target))
	}
	start, err := domain.Resolve(nil, target)
	if err != nil {
		return c.fail(ctx, id, target, fmt.Errorf("%w: %s", ErrInvalidTarget, target))
	}
	if maxDepth < 0 {
		return c.fail(ctx, id, target, ErrInvalidDepth)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := newSession(id, start.String(), origin, maxDepth, includeResources, c.scheduler, progress.NewReporter(c.observer, id))
	c.session, c.cancel, c.state = s, cancel, StateRunning
	c.mu.Unlock()

	log := c.log.WithField("session", id)
	log.WithFields(logrus.Fields{"target": s.Target, "max_depth": maxDepth, "resources": includeResources}).Info("crawl started")
	c.writeStatus(ctx, s.status(StateRunning))

	c.visit(runCtx, s, s.Target, 0)

	state := StateCompleted
	if runCtx.Err() != nil {
		s.markCancelled()
		state = StateCancelled
	}
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	report := s.report(state)
	c.writeStatus(ctx, s.status(state))
	log.WithFields(logrus.Fields{
		"state":         state,
		"pages_scanned": report.PagesScanned,
		"links":         len(report.Links),
		"elapsed":       report.Duration().Round(time.Millisecond),
	}).Info("crawl finished")
	return report, nil
}

func (c *Crawler) visit(ctx context.Context, s *Session, url string, depth int) {
	log := c.log.WithFields(logrus.Fields{"session": s.ID, "url": url, "depth": depth})

	if ctx.Err() != nil {
		return
	}
	if s.visited.Contains(url) {
		log.Debug("already visited")
		return
	}
	if depth > s.MaxDepth {
		log.Debug("max depth reached")
		return
	}

	page, err := c.loader.Load(ctx, url)
	if err != nil {
		if ctx.Err() == nil {
			log.Warnf("Skipping page: %v", err)
			s.visited.Add(url)
		}
		return
	}
	defer page.Close()

	if ctx.Err() != nil {
		log.Debug("cancelled before scanning")
		return
	}

	s.reporter.ScanningPage(url)
	extraction, err := c.extractor.Extract(page, s.IncludeResources)
	page.Close()
	if err != nil {
		log.Warnf("Skipping page: %v", err)
		s.visited.Add(url)
		return
	}

	key := url
	if extraction.CanonicalURL != "" {
		key = extraction.CanonicalURL
	}
	if !s.visited.Add(key) {
		log.WithField("canonical", key).Debug("canonical page already processed")
		return
	}
	s.visited.Add(url)

	links := extraction.Links
	for _, link := range links {
		link.FoundOnPage = url
	}
	s.linksFound.Add(int64(len(links)))
	log.Infof("found %d links", len(links))

	links, summary := s.scheduler.Run(ctx, s.cache, links, int(s.linksChecked.Load()))
	s.appendResults(links)
	s.linksChecked.Add(int64(summary.Checked + summary.Cached))

	var children []string
	for _, link := range links {
		if crawlable(s, link) {
			children = append(children, link.URL)
		}
	}
	s.totalPages.Add(int64(len(children)))
	s.pagesScanned.Add(1)
	s.reporter.PageComplete(int(s.pagesScanned.Load()), int(s.totalPages.Load()), int(s.linksFound.Load()), int(s.linksChecked.Load()))
	c.writeStatus(ctx, s.status(StateRunning))

	for _, child := range children {
		if ctx.Err() != nil {
			log.Debug("crawl cancelled during recursion")
			return
		}
		if !s.visited.Contains(child) {
			c.visit(ctx, s, child, depth+1)
		}
	}
}

// crawlable reports whether a link is a same-origin page to load next,
// whatever its check status. Pages that fail to load are skipped by visit.
func crawlable(s *Session, link *linkcheck.Link) bool {
	return link.Kind == linkcheck.KindPage && domain.IsSameOrigin(s.Origin, link.URL)
}

// fail moves the crawler to StateFailed and records a failed status for
// id. c.mu must be held; fail releases it.
func (c *Crawler) fail(ctx context.Context, id, target string, err error) (*Report, error) {
	c.state = StateFailed
	c.mu.Unlock()

	c.log.WithField("session", id).Errorf("crawl failed: %v", err)
	now := time.Now()
	c.writeStatus(ctx, store.CrawlStatus{
		SessionID: id,
		Target:    target,
		State:     string(StateFailed),
		StartedAt: now,
		UpdatedAt: now,
	})
	return nil, err
}

func (c *Crawler) writeStatus(ctx context.Context, status store.CrawlStatus) {
	if c.status == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	if err := c.status.SetStatus(writeCtx, status); err != nil {
		c.log.WithField("session", status.SessionID).Warnf("Failed to save crawl status: %v", err)
	}
}
