package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
	"github.com/yingtu35/linkcrawler/internal/linkcheck"
	"github.com/yingtu35/linkcrawler/internal/webscraper"
)

func link(page, url string, status linkcheck.Status, code int, cached bool) *linkcheck.Link {
	l := linkcheck.NewLink(url, "", linkcheck.KindPage)
	l.FoundOnPage = page
	l.Status = status
	l.StatusCode = code
	l.ServedFromCache = cached
	if status != linkcheck.StatusUnchecked {
		l.CheckedAt = time.Now()
	}
	return l
}

func sampleReport() *webscraper.Report {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &webscraper.Report{
		SessionID:    "session-1",
		Target:       "https://example.com/",
		State:        webscraper.StateCompleted,
		PagesScanned: 2,
		StartedAt:    start,
		FinishedAt:   start.Add(3 * time.Second),
		Links: []*linkcheck.Link{
			link("https://example.com/b", "https://example.com/z", linkcheck.StatusWorking, 200, true),
			link("https://example.com/b", "https://example.com/a", linkcheck.StatusWorking, 200, false),
			link("https://example.com/a", "https://example.com/gone", linkcheck.StatusBroken, 404, false),
			link("https://example.com/a", "https://other.com/down", linkcheck.StatusBroken, 0, true),
			link("https://example.com/a", "https://example.com/y", linkcheck.StatusWorking, 301, false),
			link("https://example.com/a", "https://example.com/never", linkcheck.StatusUnchecked, 0, false),
		},
	}
}

func TestOrder(t *testing.T) {
	got := Order(sampleReport().Links)

	want := []string{
		"https://example.com/gone",
		"https://other.com/down",
		"https://example.com/y",
		"https://example.com/a",
		"https://example.com/z",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d links, want %d", len(got), len(want))
	}
	for i, l := range got {
		if l.URL != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, l.URL, want[i])
		}
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleReport().Links)

	broken := rows[1]
	if broken.Status != "Broken" || broken.Code != "N/A" || broken.Source != "Cache" || broken.Type != "page" {
		t.Fatalf("unexpected row %+v", broken)
	}
	working := rows[2]
	if working.Status != "Working" || working.Code != "301" || working.Source != "Checked" || working.OnPage != "https://example.com/a" {
		t.Fatalf("unexpected row %+v", working)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleReport())
	if s.LinksFound != 6 || s.UniqueLinks != 6 {
		t.Fatalf("unexpected link counts %+v", s)
	}
	if s.Checked != 3 || s.Cached != 2 || s.Working != 2 || s.Broken != 1 || s.Unchecked != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Duration != 3*time.Second {
		t.Fatalf("unexpected duration %v", s.Duration)
	}
}

func TestCSVExport(t *testing.T) {
	base := filepath.Join(t.TempDir(), "report")
	if err := NewCSVExporter().Export(sampleReport(), base); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	data, err := os.ReadFile(base + ".csv")
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	firstLine := strings.SplitN(string(data), "\n", 2)[0]
	if firstLine != "Status,Type,On Page,URL,Code,Source" {
		t.Fatalf("unexpected header %q", firstLine)
	}

	var rows []Row
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		t.Fatalf("failed to parse export: %v", err)
	}
	if len(rows) != 5 || rows[0].URL != "https://example.com/gone" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestJsonExport(t *testing.T) {
	base := filepath.Join(t.TempDir(), "report")
	if err := NewJsonExporter().Export(sampleReport(), base); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	data, err := os.ReadFile(base + ".json")
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if record.SessionID != "session-1" || len(record.Links) != 5 || record.Summary.Broken != 1 {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestXLSXExport(t *testing.T) {
	base := filepath.Join(t.TempDir(), "report")
	if err := NewXLSXExporter().Export(sampleReport(), base); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	f, err := excelize.OpenFile(base + ".xlsx")
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(linksSheet)
	if err != nil {
		t.Fatalf("failed to read links sheet: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header and 5 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Headers, ",") {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][3] != "https://example.com/gone" {
		t.Fatalf("unexpected first row %v", rows[1])
	}

	broken, err := f.GetCellValue(summarySheet, "B9")
	if err != nil || broken != "1" {
		t.Fatalf("expected 1 broken in summary, got %q (%v)", broken, err)
	}
}

func TestNewExporter(t *testing.T) {
	for _, format := range Formats {
		if _, err := NewExporter(format); err != nil {
			t.Errorf("%s: unexpected error: %v", format, err)
		}
	}
	if _, err := NewExporter("pdf"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, sampleReport())

	out := buf.String()
	if !strings.Contains(out, "https://example.com/gone") || !strings.Contains(out, "Broken: 1") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
	if strings.Contains(out, "https://example.com/never") {
		t.Fatal("unchecked links must not be printed")
	}
	if !strings.Contains(out, "Unchecked (cancelled): 1") {
		t.Fatalf("expected unchecked count, got:\n%s", out)
	}
}

func TestDefaultBasename(t *testing.T) {
	got := DefaultBasename("https://example.com/a", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	if got != "link-scan-results-https---example-com-a-2026-03-04" {
		t.Fatalf("unexpected basename %q", got)
	}
}
