package export

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/yingtu35/linkcrawler/internal/linkcheck"
	"github.com/yingtu35/linkcrawler/internal/webscraper"
)

type Exporter interface {
	// Export writes the report to basename plus the format's extension
	Export(report *webscraper.Report, basename string) error
}

// Formats lists the supported export formats.
var Formats = []string{"csv", "json", "xlsx"}

// NewExporter returns the exporter for a format name.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "csv":
		return NewCSVExporter(), nil
	case "json":
		return NewJsonExporter(), nil
	case "xlsx":
		return NewXLSXExporter(), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// Row is one exported link, in report column order.
type Row struct {
	Status string `csv:"Status" json:"status"`
	Type   string `csv:"Type" json:"resource_kind"`
	OnPage string `csv:"On Page" json:"found_on_page"`
	URL    string `csv:"URL" json:"url"`
	Code   string `csv:"Code" json:"status_code"`
	Source string `csv:"Source" json:"source"`
}

// Headers are the column titles shared by every tabular format.
var Headers = []string{"Status", "Type", "On Page", "URL", "Code", "Source"}

func (r Row) values() []interface{} {
	return []interface{}{r.Status, r.Type, r.OnPage, r.URL, r.Code, r.Source}
}

// Order groups checked links as broken, then working links checked live,
// then working links served from the cache. Each group is sorted by
// (found-on page, URL). Unchecked links are left out.
func Order(links []*linkcheck.Link) []*linkcheck.Link {
	var broken, fresh, cached []*linkcheck.Link
	for _, l := range links {
		switch {
		case l.Status == linkcheck.StatusBroken:
			broken = append(broken, l)
		case l.Status == linkcheck.StatusWorking && !l.ServedFromCache:
			fresh = append(fresh, l)
		case l.Status == linkcheck.StatusWorking:
			cached = append(cached, l)
		}
	}
	for _, group := range [][]*linkcheck.Link{broken, fresh, cached} {
		slices.SortStableFunc(group, compareLinks)
	}
	return slices.Concat(broken, fresh, cached)
}

func compareLinks(a, b *linkcheck.Link) int {
	if c := strings.Compare(a.FoundOnPage, b.FoundOnPage); c != 0 {
		return c
	}
	return strings.Compare(a.URL, b.URL)
}

// Rows converts links to export rows in Order.
func Rows(links []*linkcheck.Link) []Row {
	ordered := Order(links)
	rows := make([]Row, 0, len(ordered))
	for _, l := range ordered {
		rows = append(rows, newRow(l))
	}
	return rows
}

func newRow(l *linkcheck.Link) Row {
	row := Row{
		Status: "Broken",
		Type:   string(l.Kind),
		OnPage: l.FoundOnPage,
		URL:    l.URL,
		Code:   "N/A",
		Source: "Checked",
	}
	if l.Status == linkcheck.StatusWorking {
		row.Status = "Working"
	}
	if row.Type == "" {
		row.Type = string(linkcheck.KindPage)
	}
	if l.StatusCode != 0 {
		row.Code = strconv.Itoa(l.StatusCode)
	}
	if l.ServedFromCache {
		row.Source = "Cache"
	}
	return row
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// DefaultBasename names export files after the target and the date.
func DefaultBasename(target string, at time.Time) string {
	return fmt.Sprintf("link-scan-results-%s-%s", unsafeChars.ReplaceAllString(target, "-"), at.Format("2006-01-02"))
}
