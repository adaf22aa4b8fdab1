package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/qpstream/pkg/qpstream"
)

func TestCacheKeyDistinguishesParameters(t *testing.T) {
	base := qpstream.Parameters{SampleRateHz: 1e6, DurationSec: 1e-3, WavelengthsNM: []float64{808}, Seed: 3, FallTimeUsec: 30, CountRateHz: 500}

	same := base
	same.WavelengthsNM = []float64{808}
	assert.Equal(t, cacheKey(base), cacheKey(same))

	for _, mutate := range []func(p *qpstream.Parameters){
		func(p *qpstream.Parameters) { p.Seed = 4 },
		func(p *qpstream.Parameters) { p.CountRateHz = 500.5 },
		func(p *qpstream.Parameters) { p.FallTimeUsec = 29 },
		func(p *qpstream.Parameters) { p.WavelengthsNM = []float64{808, 404} },
		func(p *qpstream.Parameters) { p.DurationSec = 2e-3 },
		func(p *qpstream.Parameters) { p.SampleRateHz = 2e6 },
	} {
		p := base
		p.WavelengthsNM = append([]float64(nil), base.WavelengthsNM...)
		mutate(&p)
		assert.NotEqual(t, cacheKey(base), cacheKey(p))
	}
}

func TestDisabledCache(t *testing.T) {
	rc, err := newResultCache(0)
	require.NoError(t, err)
	assert.Nil(t, rc)

	// A nil cache never hits and ignores writes.
	rc.set(&qpstream.Result{})
	_, ok := rc.get(qpstream.Parameters{})
	assert.False(t, ok)
	rc.close()
}

func TestResultCost(t *testing.T) {
	res := &qpstream.Result{
		Timestream: make(qpstream.Timestream, 1000),
		Mask:       make(qpstream.ArrivalMask, 1000),
		Counts:     make([]int, 1000),
	}
	assert.Equal(t, int64(8000+1000+8000+256), resultCost(res))
}
