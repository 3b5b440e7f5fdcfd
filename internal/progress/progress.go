package progress

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventScanningPage EventType = "scanningPage"
	EventChecking     EventType = "checking"
	EventCached       EventType = "cached"
	EventResult       EventType = "result"
	EventProgress     EventType = "progress"
	EventPageComplete EventType = "pageComplete"
)

// Event is one progress notification. Only the fields relevant to Type are set.
type Event struct {
	Type         EventType `json:"type"`
	SessionID    string    `json:"session_id,omitempty"`
	URL          string    `json:"url,omitempty"`
	Status       string    `json:"status,omitempty"`
	StatusCode   int       `json:"status_code,omitempty"`
	FoundOnPage  string    `json:"found_on_page,omitempty"`
	ResourceKind string    `json:"resource_kind,omitempty"`
	Checked      int       `json:"checked,omitempty"`
	Total        int       `json:"total,omitempty"`
	PagesScanned int       `json:"pages_scanned,omitempty"`
	TotalPages   int       `json:"total_pages,omitempty"`
	LinksFound   int       `json:"links_found,omitempty"`
	LinksChecked int       `json:"links_checked,omitempty"`
	Time         time.Time `json:"time"`
}

// Observer receives progress events. Notify must not block the caller for
// long; delivery is best-effort.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// Multi fans one event out to several observers.
type Multi []Observer

func (m Multi) Notify(e Event) {
	for _, o := range m {
		if o != nil {
			o.Notify(e)
		}
	}
}

// ChannelObserver delivers events on a bounded channel and drops them when
// the consumer falls behind.
type ChannelObserver struct {
	ch      chan Event
	mu      sync.Mutex
	closed  bool
	dropped int
}

func NewChannelObserver(size int) *ChannelObserver {
	if size < 1 {
		size = 1
	}
	return &ChannelObserver{ch: make(chan Event, size)}
}

func (c *ChannelObserver) Notify(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- e:
	default:
		c.dropped++
	}
}

// Events returns the receive side of the channel.
func (c *ChannelObserver) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events were discarded because the channel was full.
func (c *ChannelObserver) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close stops delivery and closes the channel. Safe to call twice.
func (c *ChannelObserver) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// LogObserver writes every event to a logrus entry at debug level.
type LogObserver struct {
	log *logrus.Entry
}

func NewLogObserver(log *logrus.Entry) *LogObserver {
	return &LogObserver{log: log}
}

func (l *LogObserver) Notify(e Event) {
	entry := l.log.WithField("event", e.Type)
	switch e.Type {
	case EventScanningPage, EventChecking:
		entry.WithField("url", e.URL).Debug("progress")
	case EventCached:
		entry.WithFields(logrus.Fields{"url": e.URL, "status": e.Status}).Debug("progress")
	case EventResult:
		entry.WithFields(logrus.Fields{
			"url":         e.URL,
			"status":      e.Status,
			"status_code": e.StatusCode,
			"page":        e.FoundOnPage,
			"kind":        e.ResourceKind,
		}).Debug("progress")
	case EventProgress:
		entry.WithFields(logrus.Fields{"checked": e.Checked, "total": e.Total}).Debug("progress")
	case EventPageComplete:
		entry.WithFields(logrus.Fields{
			"pages_scanned": e.PagesScanned,
			"total_pages":   e.TotalPages,
			"links_found":   e.LinksFound,
			"links_checked": e.LinksChecked,
		}).Debug("progress")
	}
}
