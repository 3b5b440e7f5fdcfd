package export

import (
	"fmt"
	"io"

	"github.com/rodaine/table"
	"github.com/yingtu35/linkcrawler/internal/webscraper"
)

// PrintTable writes the ordered results and a summary line to w.
func PrintTable(w io.Writer, report *webscraper.Report) {
	rows := Rows(report.Links)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No links checked")
	} else {
		tbl := table.New("Status", "Type", "On Page", "URL", "Code", "Source").WithWriter(w)
		for _, r := range rows {
			tbl.AddRow(r.values()...)
		}
		tbl.Print()
	}

	s := Summarize(report)
	fmt.Fprintf(w, "\nPages scanned: %d | Links found: %d | Checked: %d | Cached: %d | Working: %d | Broken: %d\n",
		s.PagesScanned, s.LinksFound, s.Checked, s.Cached, s.Working, s.Broken)
	if s.Unchecked > 0 {
		fmt.Fprintf(w, "Unchecked (cancelled): %d\n", s.Unchecked)
	}
}
