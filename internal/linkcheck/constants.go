package linkcheck

import "time"

const (
	DefaultRequestTimeout = 5 * time.Second        // per verification attempt
	DefaultBatchSize      = 10                     // links checked concurrently per batch
	DefaultBatchDelay     = 200 * time.Millisecond // pause between batches
	DefaultUserAgent      = "Mozilla/5.0 (compatible; LinkCrawler/1.0)"

	maxDrainBytes = 64 << 10 // body bytes read before closing a GET response
)

// KnownHeadForbiddenHosts answer HEAD requests from automated clients with
// 403 while serving GET normally.
var KnownHeadForbiddenHosts = []string{
	"twitter.com",
	"x.com",
	"facebook.com",
	"linkedin.com",
	"instagram.com",
	"t.co",
}
