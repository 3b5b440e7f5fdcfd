package webscraper

import "time"

const (
	DefaultMaxDepth        = 2               // how many link hops below the target are crawled
	DefaultPageLoadTimeout = 5 * time.Second // soft budget for one page load
	DefaultMaxBodySize     = 10 << 20        // bytes read from a static page

	positionTopAttr  = "data-linkcrawler-top"
	positionLeftAttr = "data-linkcrawler-left"
)
