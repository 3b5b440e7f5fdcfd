package linkcheck

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yingtu35/linkcrawler/internal/progress"
)

// countingChecker reports every URL as working and counts live checks.
type countingChecker struct {
	mu       sync.Mutex
	calls    map[string]int
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	onCheck  func(url string)
}

func newCountingChecker() *countingChecker {
	return &countingChecker{calls: make(map[string]int)}
}

func (c *countingChecker) Check(ctx context.Context, url string) (Outcome, error) {
	if ctx.Err() != nil {
		return Outcome{}, ErrCancelled
	}
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}

	c.mu.Lock()
	c.calls[url]++
	c.mu.Unlock()

	if c.onCheck != nil {
		c.onCheck(url)
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return Outcome{Status: StatusWorking, StatusCode: 200, CheckedAt: time.Now()}, nil
}

func (c *countingChecker) count(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[url]
}

func pageLinks(urls ...string) []*Link {
	links := make([]*Link, 0, len(urls))
	for _, u := range urls {
		l := NewLink(u, "", KindPage)
		l.FoundOnPage = "https://example.com/"
		links = append(links, l)
	}
	return links
}

func newTestScheduler(checker LinkChecker, observer progress.Observer, batchSize int) *Scheduler {
	return NewScheduler(checker, progress.NewReporter(observer, "test"), SchedulerOptions{
		BatchSize: batchSize,
		Logger:    quietLogger(),
	})
}

func TestSchedulerChecksEveryLink(t *testing.T) {
	checker := newCountingChecker()
	s := newTestScheduler(checker, nil, 3)

	var urls []string
	for i := 0; i < 7; i++ {
		urls = append(urls, fmt.Sprintf("https://example.com/%d", i))
	}
	links, summary := s.Run(context.Background(), NewCache(), pageLinks(urls...), 0)

	if summary.Checked != 7 || summary.Cached != 0 || summary.Unchecked != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, l := range links {
		if l.Status != StatusWorking || !l.Checked() || l.ServedFromCache {
			t.Errorf("unexpected link state: %+v", l)
		}
	}
}

func TestSchedulerUsesCache(t *testing.T) {
	checker := newCountingChecker()
	s := newTestScheduler(checker, nil, 5)
	cache := NewCache()
	cache.Put("https://example.com/known", Outcome{Status: StatusBroken, StatusCode: 404, Error: "HTTP 404", CheckedAt: time.Now()})

	links, summary := s.Run(context.Background(), cache, pageLinks("https://example.com/known", "https://example.com/new"), 0)

	if checker.count("https://example.com/known") != 0 {
		t.Fatal("cached URL must not be re-checked")
	}
	if summary.Checked != 1 || summary.Cached != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !links[0].ServedFromCache || links[0].Status != StatusBroken || links[0].StatusCode != 404 {
		t.Fatalf("unexpected cached link: %+v", links[0])
	}
	if links[1].ServedFromCache {
		t.Fatal("freshly checked link must not be marked cached")
	}
	if _, ok := cache.Get("https://example.com/new"); !ok {
		t.Fatal("fresh outcome must be cached")
	}
}

func TestSchedulerDuplicateURLsCheckedOnce(t *testing.T) {
	checker := newCountingChecker()
	checker.delay = 20 * time.Millisecond
	s := newTestScheduler(checker, nil, 4)

	url := "https://example.com/same"
	links, summary := s.Run(context.Background(), NewCache(), pageLinks(url, url, url, url), 0)

	if got := checker.count(url); got != 1 {
		t.Fatalf("expected one live check, got %d", got)
	}
	if summary.Checked != 1 || summary.Cached != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, l := range links {
		if l.Status != StatusWorking {
			t.Fatalf("unexpected link state: %+v", l)
		}
	}
}

func TestSchedulerBatchLimit(t *testing.T) {
	checker := newCountingChecker()
	checker.delay = 10 * time.Millisecond
	s := newTestScheduler(checker, nil, 2)

	var urls []string
	for i := 0; i < 6; i++ {
		urls = append(urls, fmt.Sprintf("https://example.com/%d", i))
	}
	s.Run(context.Background(), NewCache(), pageLinks(urls...), 0)

	if peak := checker.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent checks, saw %d", peak)
	}
}

func TestSchedulerCancellationLeavesLinksUnchecked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := newCountingChecker()
	var once sync.Once
	checker.onCheck = func(string) { once.Do(cancel) }
	s := newTestScheduler(checker, nil, 2)

	var urls []string
	for i := 0; i < 6; i++ {
		urls = append(urls, fmt.Sprintf("https://example.com/%d", i))
	}
	cache := NewCache()
	links, summary := s.Run(ctx, cache, pageLinks(urls...), 0)

	if summary.Checked > 2 {
		t.Fatalf("no new batch may start after cancellation, checked %d", summary.Checked)
	}
	if summary.Unchecked < 4 {
		t.Fatalf("expected the later batches unchecked, got %+v", summary)
	}
	unchecked := 0
	for _, l := range links {
		if l.Status == StatusUnchecked {
			unchecked++
			if _, ok := cache.Get(l.URL); ok {
				t.Fatalf("unchecked link %s must not be cached", l.URL)
			}
		}
	}
	if unchecked != summary.Unchecked {
		t.Fatalf("summary says %d unchecked, links say %d", summary.Unchecked, unchecked)
	}
}

func TestSchedulerProgressEvents(t *testing.T) {
	obs := progress.NewChannelObserver(256)
	checker := newCountingChecker()
	s := newTestScheduler(checker, obs, 10)

	cache := NewCache()
	cache.Put("https://example.com/cached", Outcome{Status: StatusWorking, StatusCode: 200, CheckedAt: time.Now()})

	s.Run(context.Background(), cache, pageLinks("https://example.com/cached", "https://example.com/fresh"), 5)
	obs.Close()

	var checking, cached, results int
	var last progress.Event
	for e := range obs.Events() {
		switch e.Type {
		case progress.EventChecking:
			checking++
		case progress.EventCached:
			cached++
		case progress.EventResult:
			results++
			if e.FoundOnPage != "https://example.com/" || e.ResourceKind != string(KindPage) {
				t.Errorf("unexpected result event: %+v", e)
			}
		case progress.EventProgress:
			last = e
		}
		if e.SessionID != "test" {
			t.Errorf("event missing session id: %+v", e)
		}
	}

	if checking != 1 || cached != 1 || results != 1 {
		t.Fatalf("got checking=%d cached=%d results=%d", checking, cached, results)
	}
	if last.Checked != 7 || last.Total != 7 {
		t.Fatalf("expected cumulative progress 7/7, got %d/%d", last.Checked, last.Total)
	}
}

func TestSchedulerBatchDelayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	checker := newCountingChecker()
	s := NewScheduler(checker, nil, SchedulerOptions{BatchSize: 1, BatchDelay: time.Hour, Logger: quietLogger()})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan Summary, 1)
	go func() {
		_, summary := s.Run(ctx, NewCache(), pageLinks("https://example.com/a", "https://example.com/b"), 0)
		done <- summary
	}()

	select {
	case summary := <-done:
		if summary.Checked != 1 || summary.Unchecked != 1 {
			t.Fatalf("unexpected summary: %+v", summary)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop waiting after cancellation")
	}
}
