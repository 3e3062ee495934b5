package ftpfetch

import "sync/atomic"

// FetchStats contains statistics about client operations.
// All fields are safe for concurrent access.
//
// For Prometheus integration, expose these as counters (with an operation
// label for Fetches/Listings) and a counter for BytesFetched.
type FetchStats struct {
	Fetches        uint64 // completed file fetches
	Listings       uint64 // completed listing fetches
	Fallbacks      uint64 // listings that degraded from MLSD to LIST
	Errors         uint64 // failed sessions across all operations
	BytesFetched   uint64 // payload bytes written to response bodies
	ListingEntries uint64 // decoded directory entries across all listings
}

// fetchStatsCollector provides internal methods for updating stats.
// Not exported - sessions update their client's stats.
type fetchStatsCollector struct {
	stats *FetchStats
}

func newFetchStatsCollector() *fetchStatsCollector {
	return &fetchStatsCollector{stats: &FetchStats{}}
}

func (c *fetchStatsCollector) recordFetch(size int64) {
	atomic.AddUint64(&c.stats.Fetches, 1)
	if size > 0 {
		atomic.AddUint64(&c.stats.BytesFetched, uint64(size))
	}
}

func (c *fetchStatsCollector) recordListing(entries int) {
	atomic.AddUint64(&c.stats.Listings, 1)
	atomic.AddUint64(&c.stats.ListingEntries, uint64(entries))
}

func (c *fetchStatsCollector) recordFallback() {
	atomic.AddUint64(&c.stats.Fallbacks, 1)
}

func (c *fetchStatsCollector) recordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *fetchStatsCollector) snapshot() FetchStats {
	return FetchStats{
		Fetches:        atomic.LoadUint64(&c.stats.Fetches),
		Listings:       atomic.LoadUint64(&c.stats.Listings),
		Fallbacks:      atomic.LoadUint64(&c.stats.Fallbacks),
		Errors:         atomic.LoadUint64(&c.stats.Errors),
		BytesFetched:   atomic.LoadUint64(&c.stats.BytesFetched),
		ListingEntries: atomic.LoadUint64(&c.stats.ListingEntries),
	}
}
