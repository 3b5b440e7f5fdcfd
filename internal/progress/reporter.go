package progress

import "time"

// Reporter stamps and forwards the crawl's progress notifications. A nil
// Reporter or one without an observer silently discards everything.
type Reporter struct {
	observer  Observer
	sessionID string
	now       func() time.Time
}

func NewReporter(observer Observer, sessionID string) *Reporter {
	return &Reporter{observer: observer, sessionID: sessionID, now: time.Now}
}

func (r *Reporter) emit(e Event) {
	if r == nil || r.observer == nil {
		return
	}
	e.SessionID = r.sessionID
	e.Time = r.now()
	r.observer.Notify(e)
}

func (r *Reporter) ScanningPage(url string) {
	r.emit(Event{Type: EventScanningPage, URL: url})
}

func (r *Reporter) Checking(url string) {
	r.emit(Event{Type: EventChecking, URL: url})
}

func (r *Reporter) Cached(url, status string) {
	r.emit(Event{Type: EventCached, URL: url, Status: status})
}

func (r *Reporter) Result(url, status string, statusCode int, foundOnPage, resourceKind string) {
	r.emit(Event{
		Type:         EventResult,
		URL:          url,
		Status:       status,
		StatusCode:   statusCode,
		FoundOnPage:  foundOnPage,
		ResourceKind: resourceKind,
	})
}

func (r *Reporter) Progress(checked, total int) {
	r.emit(Event{Type: EventProgress, Checked: checked, Total: total})
}

func (r *Reporter) PageComplete(pagesScanned, totalPages, linksFound, linksChecked int) {
	r.emit(Event{
		Type:         EventPageComplete,
		PagesScanned: pagesScanned,
		TotalPages:   totalPages,
		LinksFound:   linksFound,
		LinksChecked: linksChecked,
	})
}
