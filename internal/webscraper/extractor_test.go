package webscraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/yingtu35/linkcrawler/internal/linkcheck"
)

func newTestPage(t *testing.T, url, html string) *Page {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse html: %v", err)
	}
	return &Page{URL: url, FinalURL: url, Document: doc}
}

func urls(links []*linkcheck.Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.URL)
	}
	return out
}

func TestExtractPagesOnly(t *testing.T) {
	page := newTestPage(t, "https://example.com/docs/", `<html><head>
		<link rel="stylesheet" href="/style.css">
		<script src="app.js"></script>
	</head><body>
		<a href="intro">Intro</a>
		<a href="/about#team">  About
			us </a>
		<a href="#top">Top</a>
		<a href="javascript:void(0)">JS</a>
		<a href="mailto:me@example.com">Mail</a>
		<a href="tel:+123">Call</a>
		<a href="sms:+123">Text</a>
		<a href="/files/report.PDF">Report</a>
		<a href="/about">About again</a>
		<a href="https://other.com/x" title="Other site"></a>
		<map><area href="/map" alt="Map area"></map>
		<img src="/logo.png" alt="Logo">
	</body></html>`)

	got, err := NewExtractor().Extract(page, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"https://example.com/docs/intro",
		"https://example.com/about",
		"https://other.com/x",
		"https://example.com/map",
	}
	if strings.Join(urls(got.Links), " ") != strings.Join(want, " ") {
		t.Fatalf("got %v, want %v", urls(got.Links), want)
	}

	texts := map[string]string{}
	for _, l := range got.Links {
		texts[l.URL] = l.Text
		if l.Kind != linkcheck.KindPage || l.Status != linkcheck.StatusUnchecked {
			t.Errorf("unexpected link %+v", l)
		}
	}
	if texts["https://example.com/about"] != "About us" {
		t.Errorf("unexpected anchor text %q", texts["https://example.com/about"])
	}
	if texts["https://other.com/x"] != "Other site" {
		t.Errorf("expected title fallback, got %q", texts["https://other.com/x"])
	}
	if texts["https://example.com/map"] != "Map area" {
		t.Errorf("expected area alt text, got %q", texts["https://example.com/map"])
	}
}

func TestExtractResources(t *testing.T) {
	page := newTestPage(t, "https://example.com/", `<html><head>
		<link rel="Alternate Stylesheet" href="/alt.css">
		<link rel="icon" href="/favicon.ico">
		<script src="/app.js"></script>
		<script>inline()</script>
	</head><body>
		<img src="/img/logo.png">
		<a href="/">Home</a>
	</body></html>`)

	got, err := NewExtractor().Extract(page, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := map[string]linkcheck.ResourceKind{}
	for _, l := range got.Links {
		kinds[l.URL] = l.Kind
	}
	want := map[string]linkcheck.ResourceKind{
		"https://example.com/alt.css":      linkcheck.KindStylesheet,
		"https://example.com/app.js":       linkcheck.KindScript,
		"https://example.com/img/logo.png": linkcheck.KindImage,
		"https://example.com/":             linkcheck.KindPage,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for u, k := range want {
		if kinds[u] != k {
			t.Errorf("%s: got kind %q, want %q", u, kinds[u], k)
		}
	}
	for _, l := range got.Links {
		if l.URL == "https://example.com/img/logo.png" && l.Text != "logo.png" {
			t.Errorf("expected file name as image text, got %q", l.Text)
		}
	}
}

func TestExtractBaseAndCanonical(t *testing.T) {
	page := newTestPage(t, "https://example.com/a/b", `<html><head>
		<base href="/root/">
		<link rel="canonical" href="/canonical-page#x">
	</head><body><a href="child">Child</a></body></html>`)
	page.FinalURL = "https://example.com/redirected/b"

	got, err := NewExtractor().Extract(page, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Links) != 1 || got.Links[0].URL != "https://example.com/root/child" {
		t.Fatalf("expected link resolved against <base>, got %v", urls(got.Links))
	}
	if got.CanonicalURL != "https://example.com/canonical-page" {
		t.Fatalf("unexpected canonical %q", got.CanonicalURL)
	}
}

func TestExtractSortsByPosition(t *testing.T) {
	page := newTestPage(t, "https://example.com/", `<body>
		<a href="/footer" data-linkcrawler-top="900" data-linkcrawler-left="10">Footer</a>
		<a href="/right" data-linkcrawler-top="10" data-linkcrawler-left="500">Right</a>
		<a href="/left" data-linkcrawler-top="10" data-linkcrawler-left="20">Left</a>
		<a href="/middle" data-linkcrawler-top="400" data-linkcrawler-left="0">Middle</a>
	</body>`)

	got, err := NewExtractor().Extract(page, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://example.com/left https://example.com/right https://example.com/middle https://example.com/footer"
	if strings.Join(urls(got.Links), " ") != want {
		t.Fatalf("got %v", urls(got.Links))
	}
	if got.Links[0].Position == nil || got.Links[0].Position.Left != 20 {
		t.Fatalf("expected position to be parsed, got %+v", got.Links[0].Position)
	}
}

func TestExtractWithoutPositionsKeepsDocumentOrder(t *testing.T) {
	page := newTestPage(t, "https://example.com/", `<body>
		<a href="/c">C</a><a href="/a">A</a><a href="/b">B</a>
	</body>`)

	got, _ := NewExtractor().Extract(page, false)
	want := "https://example.com/c https://example.com/a https://example.com/b"
	if strings.Join(urls(got.Links), " ") != want {
		t.Fatalf("got %v", urls(got.Links))
	}
}

func TestExtractMixedPositionsPutsUnpositionedLast(t *testing.T) {
	page := newTestPage(t, "https://example.com/", `<body>
		<a href="/hidden-1">Hidden 1</a>
		<a href="/low" data-linkcrawler-top="300" data-linkcrawler-left="0">Low</a>
		<a href="/hidden-2">Hidden 2</a>
		<a href="/high" data-linkcrawler-top="5" data-linkcrawler-left="0">High</a>
	</body>`)

	got, err := NewExtractor().Extract(page, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://example.com/high https://example.com/low https://example.com/hidden-1 https://example.com/hidden-2"
	if strings.Join(urls(got.Links), " ") != want {
		t.Fatalf("got %v", urls(got.Links))
	}
}

func TestExtractNilDocument(t *testing.T) {
	_, err := NewExtractor().Extract(&Page{URL: "https://example.com/"}, false)
	if !linkcheck.IsCode(err, linkcheck.ErrCodeExtractionFailure) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
}
