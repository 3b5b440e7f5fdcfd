package webscraper

import (
	"errors"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yingtu35/linkcrawler/internal/linkcheck"
	"github.com/yingtu35/linkcrawler/pkg/domain"
)

const (
	pageSelector     = "a[href], area[href]"
	resourceSelector = "a[href], area[href], img[src], link[href], script[src]"
)

// Extractor finds links in a parsed document with goquery.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the page's links in on-page order, deduplicated by URL,
// and its declared canonical URL. Relative references resolve against the
// page's final URL and its <base href>.
func (e *Extractor) Extract(page *Page, includeResources bool) (*Extraction, error) {
	if page == nil || page.Document == nil {
		return nil, linkcheck.NewExtractionError("", errors.New("no document"))
	}
	base, err := baseURL(page)
	if err != nil {
		return nil, linkcheck.NewExtractionError(page.URL, err)
	}

	selector := pageSelector
	if includeResources {
		selector = resourceSelector
	}

	seen := make(map[string]bool)
	var links []*linkcheck.Link

	page.Document.Find(selector).Each(func(_ int, s *goquery.Selection) {
		kind, attr, ok := classify(s)
		if !ok {
			return
		}
		raw, _ := s.Attr(attr)
		if domain.ShouldSkipHref(raw) {
			return
		}
		u, err := domain.Resolve(base, raw)
		if err != nil || domain.IsDownloadURL(u) {
			return
		}
		abs := u.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		link := linkcheck.NewLink(abs, displayText(s, kind, u), kind)
		link.Position = position(s)
		links = append(links, link)
	})

	sortByPosition(links)

	return &Extraction{Links: links, CanonicalURL: canonical(page.Document, base)}, nil
}

func baseURL(page *Page) (*url.URL, error) {
	ref := page.FinalURL
	if ref == "" {
		ref = page.URL
	}
	base, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if href, ok := page.Document.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}
	return base, nil
}

// classify maps an element to its resource kind and the attribute holding
// its URL. Links that are neither stylesheets nor pages are ignored.
func classify(s *goquery.Selection) (linkcheck.ResourceKind, string, bool) {
	switch goquery.NodeName(s) {
	case "a", "area":
		return linkcheck.KindPage, "href", true
	case "img":
		return linkcheck.KindImage, "src", true
	case "script":
		return linkcheck.KindScript, "src", true
	case "link":
		if hasRel(s, "stylesheet") {
			return linkcheck.KindStylesheet, "href", true
		}
	}
	return "", "", false
}

func hasRel(s *goquery.Selection, want string) bool {
	rel, _ := s.Attr("rel")
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		if r == want {
			return true
		}
	}
	return false
}

func displayText(s *goquery.Selection, kind linkcheck.ResourceKind, u *url.URL) string {
	var candidates []string
	switch goquery.NodeName(s) {
	case "a":
		candidates = []string{s.Text(), s.AttrOr("title", "")}
	case "area":
		candidates = []string{s.AttrOr("alt", ""), s.AttrOr("title", "")}
	case "img":
		candidates = []string{s.AttrOr("alt", "")}
	}
	for _, c := range candidates {
		if text := strings.Join(strings.Fields(c), " "); text != "" {
			return text
		}
	}
	if kind != linkcheck.KindPage {
		if name := path.Base(u.Path); name != "/" && name != "." {
			return name
		}
	}
	return u.String()
}

func position(s *goquery.Selection) *linkcheck.Position {
	top, okTop := s.Attr(positionTopAttr)
	left, okLeft := s.Attr(positionLeftAttr)
	if !okTop || !okLeft {
		return nil
	}
	t, err := strconv.ParseFloat(top, 64)
	if err != nil {
		return nil
	}
	l, err := strconv.ParseFloat(left, 64)
	if err != nil {
		return nil
	}
	return &linkcheck.Position{Top: t, Left: l}
}

// sortByPosition orders links top-to-bottom, then left-to-right. Links
// without a position go last in document order.
func sortByPosition(links []*linkcheck.Link) {
	slices.SortStableFunc(links, func(a, b *linkcheck.Link) int {
		switch {
		case a.Position == nil && b.Position == nil:
			return 0
		case a.Position == nil:
			return 1
		case b.Position == nil:
			return -1
		}
		if a.Position.Top != b.Position.Top {
			if a.Position.Top < b.Position.Top {
				return -1
			}
			return 1
		}
		switch {
		case a.Position.Left < b.Position.Left:
			return -1
		case a.Position.Left > b.Position.Left:
			return 1
		}
		return 0
	})
}

func canonical(doc *goquery.Document, base *url.URL) string {
	var result string
	doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !hasRel(s, "canonical") {
			return true
		}
		if u, err := domain.Resolve(base, s.AttrOr("href", "")); err == nil {
			result = u.String()
		}
		return false
	})
	return result
}
