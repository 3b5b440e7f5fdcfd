package linkcheck

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yingtu35/linkcrawler/internal/progress"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type SchedulerOptions struct {
	BatchSize  int
	BatchDelay time.Duration
	Logger     *logrus.Entry
}

// Scheduler checks links in fixed-size concurrent batches.
type Scheduler struct {
	checker    LinkChecker
	reporter   *progress.Reporter
	batchSize  int
	batchDelay time.Duration
	log        *logrus.Entry

	flightGroup singleflight.Group // Collapses concurrent checks of the same URL
}

// Summary counts what one Run resolved.
type Summary struct {
	Checked   int // Resolved with a live check
	Cached    int // Resolved from the cache
	Unchecked int // Left unchecked because of cancellation
}

func NewScheduler(checker LinkChecker, reporter *progress.Reporter, opts SchedulerOptions) *Scheduler {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "scheduler")
	}
	return &Scheduler{
		checker:    checker,
		reporter:   reporter,
		batchSize:  opts.BatchSize,
		batchDelay: opts.BatchDelay,
		log:        opts.Logger,
	}
}

// WithReporter returns a scheduler sharing the checker but reporting to r.
func (s *Scheduler) WithReporter(r *progress.Reporter) *Scheduler {
	return &Scheduler{
		checker:    s.checker,
		reporter:   r,
		batchSize:  s.batchSize,
		batchDelay: s.batchDelay,
		log:        s.log,
	}
}

// Run resolves every link in place and returns the same slice. checkedSoFar
// offsets the progress counters so they stay cumulative across pages. Once
// ctx is cancelled no new batch or check starts and the remaining links stay
// unchecked.
func (s *Scheduler) Run(ctx context.Context, cache *Cache, links []*Link, checkedSoFar int) ([]*Link, Summary) {
	var checked, cached atomic.Int64
	total := checkedSoFar + len(links)

	s.reporter.Progress(checkedSoFar, total)

	for start := 0; start < len(links); start += s.batchSize {
		if ctx.Err() != nil {
			s.log.Debug("link checking cancelled")
			break
		}

		end := min(start+s.batchSize, len(links))
		batch := links[start:end]
		s.log.Debugf("processing batch %d: %d links", start/s.batchSize+1, len(batch))

		var g errgroup.Group
		g.SetLimit(s.batchSize)
		for _, link := range batch {
			g.Go(func() error {
				s.resolve(ctx, cache, link, &checked, &cached, checkedSoFar, total)
				return nil
			})
		}
		_ = g.Wait()

		done := int(checked.Load() + cached.Load())
		s.reporter.Progress(checkedSoFar+done, total)

		if end < len(links) && !s.pause(ctx) {
			break
		}
	}

	summary := Summary{Checked: int(checked.Load()), Cached: int(cached.Load())}
	summary.Unchecked = len(links) - summary.Checked - summary.Cached
	return links, summary
}

func (s *Scheduler) resolve(ctx context.Context, cache *Cache, link *Link, checked, cached *atomic.Int64, offset, total int) {
	if ctx.Err() != nil {
		return
	}

	if o, ok := cache.Get(link.URL); ok {
		s.log.WithField("url", link.URL).Debug("using cached result")
		link.resolve(o, true)
		n := cached.Add(1) + checked.Load()
		s.reporter.Cached(link.URL, string(o.Status))
		s.reporter.Progress(offset+int(n), total)
		return
	}

	s.reporter.Checking(link.URL)
	fresh := false
	val, err, _ := s.flightGroup.Do(link.URL, func() (interface{}, error) {
		if o, ok := cache.Get(link.URL); ok {
			return o, nil
		}
		fresh = true
		o, err := s.checker.Check(ctx, link.URL)
		if err != nil {
			return nil, err
		}
		cache.Put(link.URL, o)
		return o, nil
	})
	if err != nil {
		s.log.WithField("url", link.URL).Debugf("check abandoned: %v", err)
		return
	}

	o := val.(Outcome)
	link.resolve(o, !fresh)
	var n int64
	if fresh {
		n = checked.Add(1) + cached.Load()
		s.reporter.Result(link.URL, string(link.Status), link.StatusCode, link.FoundOnPage, string(link.Kind))
	} else {
		n = cached.Add(1) + checked.Load()
		s.reporter.Cached(link.URL, string(link.Status))
	}
	s.reporter.Progress(offset+int(n), total)
}

// pause waits between batches and reports whether checking should go on.
func (s *Scheduler) pause(ctx context.Context) bool {
	if s.batchDelay == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.batchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}
