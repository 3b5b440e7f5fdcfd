package store

import (
	"context"
	"time"
)

// CrawlStatus is a point-in-time view of one crawl session.
type CrawlStatus struct {
	SessionID    string    `json:"session_id"`
	Target       string    `json:"target"`
	State        string    `json:"state"`
	PagesScanned int       `json:"pages_scanned"`
	TotalPages   int       `json:"total_pages"`
	LinksFound   int       `json:"links_found"`
	LinksChecked int       `json:"links_checked"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Finished reports whether the session reached a terminal state.
func (s CrawlStatus) Finished() bool {
	switch s.State {
	case "completed", "cancelled", "failed":
		return true
	}
	return false
}

// StatusStore persists crawl session status.
type StatusStore interface {
	SetStatus(ctx context.Context, status CrawlStatus) error
	GetStatus(ctx context.Context, sessionID string) (CrawlStatus, bool, error)
}
