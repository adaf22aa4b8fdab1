package server

import (
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/chrissnell/qpstream/internal/metrics"
	"github.com/chrissnell/qpstream/pkg/qpstream"
)

// resultCache holds finished runs keyed by their full parameter set. Cached
// results are shared between requests and must not be modified. A nil
// *resultCache is a disabled cache.
type resultCache struct {
	c *ristretto.Cache
}

func newResultCache(maxMB int) (*resultCache, error) {
	if maxMB <= 0 {
		return nil, nil
	}
	maxCost := int64(maxMB) << 20
	c, err := ristretto.NewCache(&ristretto.Config{
		// ~10x the number of entries we expect to hold at ~100 KB each
		NumCounters: maxCost / 10_000,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	return &resultCache{c: c}, nil
}

func (rc *resultCache) get(p qpstream.Parameters) (*qpstream.Result, bool) {
	if rc == nil {
		return nil, false
	}
	v, ok := rc.c.Get(cacheKey(p))
	metrics.RecordCacheLookup(ok)
	if !ok {
		return nil, false
	}
	return v.(*qpstream.Result), true
}

func (rc *resultCache) set(res *qpstream.Result) {
	if rc == nil {
		return
	}
	rc.c.Set(cacheKey(res.Parameters), res, resultCost(res))
}

func (rc *resultCache) close() {
	if rc != nil {
		rc.c.Close()
	}
}

func cacheKey(p qpstream.Parameters) string {
	return fmt.Sprintf("%v|%v|%v|%d|%v|%v", p.SampleRateHz, p.DurationSec, p.WavelengthsNM, p.Seed, p.FallTimeUsec, p.CountRateHz)
}

// resultCost approximates the in-memory size of res in bytes.
func resultCost(res *qpstream.Result) int64 {
	return int64(8*len(res.Timestream) + len(res.Mask) + 8*len(res.Counts) + 32*len(res.Arrivals) + 256)
}
