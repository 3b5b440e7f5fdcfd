package progress

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestChannelObserverDropsWhenFull(t *testing.T) {
	obs := NewChannelObserver(2)
	r := NewReporter(obs, "s1")

	r.Checking("https://a.com/1")
	r.Checking("https://a.com/2")
	r.Checking("https://a.com/3")

	if got := obs.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}

	first := <-obs.Events()
	if first.Type != EventChecking || first.URL != "https://a.com/1" || first.SessionID != "s1" {
		t.Fatalf("unexpected first event: %+v", first)
	}

	obs.Close()
	obs.Close()
	r.Checking("after-close")
}

func TestNilReporterIsSafe(t *testing.T) {
	var r *Reporter
	r.ScanningPage("https://a.com")
	r.PageComplete(1, 1, 1, 1)
}

func TestReporterStampsEvents(t *testing.T) {
	var got []Event
	r := NewReporter(ObserverFunc(func(e Event) { got = append(got, e) }), "session")
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	r.Result("https://a.com/x", "broken", 404, "https://a.com", "page")
	r.Progress(3, 10)
	r.PageComplete(1, 4, 10, 3)

	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].StatusCode != 404 || got[0].FoundOnPage != "https://a.com" || !got[0].Time.Equal(fixed) {
		t.Errorf("unexpected result event: %+v", got[0])
	}
	if got[1].Checked != 3 || got[1].Total != 10 {
		t.Errorf("unexpected progress event: %+v", got[1])
	}
	if got[2].TotalPages != 4 || got[2].LinksChecked != 3 {
		t.Errorf("unexpected pageComplete event: %+v", got[2])
	}
}

func TestMultiAndLogObserver(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)

	count := 0
	m := Multi{NewLogObserver(logrus.NewEntry(logger)), nil, ObserverFunc(func(Event) { count++ })}
	r := NewReporter(m, "")
	r.ScanningPage("https://a.com")
	r.Cached("https://a.com/x", "working")
	r.Result("https://a.com/y", "working", 200, "https://a.com", "page")

	if count != 3 {
		t.Fatalf("expected 3 deliveries, got %d", count)
	}
}
