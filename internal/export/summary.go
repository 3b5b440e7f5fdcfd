package export

import (
	"time"

	"github.com/yingtu35/linkcrawler/internal/linkcheck"
	"github.com/yingtu35/linkcrawler/internal/webscraper"
)

// Summary holds the headline numbers of a crawl.
type Summary struct {
	Target       string        `json:"target"`
	State        string        `json:"state"`
	PagesScanned int           `json:"pages_scanned"`
	LinksFound   int           `json:"links_found"`
	UniqueLinks  int           `json:"unique_links"`
	Checked      int           `json:"checked"` // Resolved with a live check
	Cached       int           `json:"cached"`  // Resolved from the cache
	Working      int           `json:"working"` // Live checks only
	Broken       int           `json:"broken"`  // Live checks only
	Unchecked    int           `json:"unchecked"`
	Duration     time.Duration `json:"duration"`
}

// Summarize counts the report's links. Working and Broken cover live checks
// only; cache hits are counted in Cached whatever their status.
func Summarize(report *webscraper.Report) Summary {
	s := Summary{
		Target:       report.Target,
		State:        string(report.State),
		PagesScanned: report.PagesScanned,
		LinksFound:   len(report.Links),
		Duration:     report.Duration(),
	}
	unique := make(map[string]bool)
	for _, l := range report.Links {
		unique[l.URL] = true
		switch {
		case l.Status == linkcheck.StatusUnchecked:
			s.Unchecked++
			continue
		case l.ServedFromCache:
			s.Cached++
			continue
		}
		s.Checked++
		if l.Status == linkcheck.StatusWorking {
			s.Working++
		} else {
			s.Broken++
		}
	}
	s.UniqueLinks = len(unique)
	return s
}
