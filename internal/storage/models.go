package storage

import "time"

// CrawlRecord is one archived crawl without its links.
type CrawlRecord struct {
	SessionID    string
	Target       string
	State        string
	MaxDepth     int
	PagesScanned int
	LinksFound   int
	LinksChecked int
	BrokenLinks  int
	StartedAt    time.Time
	FinishedAt   time.Time
}
