package linkcheck

import "time"

type Status string

const (
	StatusUnchecked Status = "unchecked"
	StatusWorking   Status = "working"
	StatusBroken    Status = "broken"
)

type ResourceKind string

const (
	KindPage       ResourceKind = "page"
	KindImage      ResourceKind = "image"
	KindStylesheet ResourceKind = "stylesheet"
	KindScript     ResourceKind = "script"
)

// Position is where a link was rendered on its page, in document pixels.
type Position struct {
	Top  float64
	Left float64
}

// Link is one occurrence of a URL found on a page.
type Link struct {
	URL             string       `json:"url"`                   // Absolute, normalized URL
	Text            string       `json:"text"`                  // Display text of the element
	Kind            ResourceKind `json:"resource_kind"`         // What kind of resource it is
	FoundOnPage     string       `json:"found_on_page"`         // The page this link was found on
	Status          Status       `json:"status"`                // Unchecked until resolved
	StatusCode      int          `json:"status_code,omitempty"` // HTTP status code (0 if none was read)
	Error           string       `json:"error,omitempty"`       // Why the link is broken
	CheckedAt       time.Time    `json:"checked_at"`            // Zero while unchecked
	ServedFromCache bool         `json:"served_from_cache"`     // Resolved from the session cache
	Position        *Position    `json:"-"`                     // On-page position, when known
}

// NewLink creates an unchecked link record.
func NewLink(url, text string, kind ResourceKind) *Link {
	return &Link{URL: url, Text: text, Kind: kind, Status: StatusUnchecked}
}

// Checked reports whether the link has been resolved.
func (l *Link) Checked() bool {
	return !l.CheckedAt.IsZero()
}

// resolve copies an outcome onto the link. A resolved link is never
// overwritten; re-checks must create a new Link.
func (l *Link) resolve(o Outcome, fromCache bool) bool {
	if l.Checked() {
		return false
	}
	l.Status = o.Status
	l.StatusCode = o.StatusCode
	l.Error = o.Error
	l.CheckedAt = o.CheckedAt
	l.ServedFromCache = fromCache
	return true
}

// Outcome is the cached result of verifying one URL. Immutable once stored.
type Outcome struct {
	Status     Status    `json:"status"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Working reports whether the outcome classified the URL as working.
func (o Outcome) Working() bool {
	return o.Status == StatusWorking
}
