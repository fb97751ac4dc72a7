package drift

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve_NoSignalBeforeWindowFills(t *testing.T) {
	tr := New(4, 0.1)

	for i := 0; i < 3; i++ {
		signals := tr.Observe(map[string]float64{"x": 1.0})
		assert.Empty(t, signals)
	}
}

func TestObserve_FirstFullWindowFreezesBaselineWithoutSignal(t *testing.T) {
	tr := New(4, 0.1)

	var signals []Signal
	for i := 0; i < 4; i++ {
		signals = tr.Observe(map[string]float64{"x": 10.0})
	}
	assert.Empty(t, signals, "the observation that completes the first window must not itself emit a signal")
}

func TestObserve_DriftAboveThresholdEmitsSignal(t *testing.T) {
	tr := New(3, 0.1)

	for i := 0; i < 3; i++ {
		tr.Observe(map[string]float64{"x": 10.0}) // baseline mean = 10
	}

	var signals []Signal
	for i := 0; i < 3; i++ {
		signals = tr.Observe(map[string]float64{"x": 20.0}) // window mean creeps toward 20
	}

	require.Len(t, signals, 1)
	assert.Equal(t, "x", signals[0].Feature)
	assert.InDelta(t, 10.0, signals[0].BaselineMean, 1e-9)
	assert.InDelta(t, 20.0, signals[0].CurrentMean, 1e-9)
	assert.InDelta(t, 1.0, signals[0].DriftScore, 1e-9)
}

func TestObserve_NoSignalWhenWithinThreshold(t *testing.T) {
	tr := New(3, 0.5)

	for i := 0; i < 3; i++ {
		tr.Observe(map[string]float64{"x": 10.0})
	}

	signals := tr.Observe(map[string]float64{"x": 10.5})
	assert.Empty(t, signals)
}

func TestObserve_ZeroBaselineNeverEmits(t *testing.T) {
	tr := New(2, 0.01)

	tr.Observe(map[string]float64{"x": 0.0})
	tr.Observe(map[string]float64{"x": 0.0}) // baseline = 0

	signals := tr.Observe(map[string]float64{"x": 100.0})
	assert.Empty(t, signals, "a zero baseline must never trigger a drift signal")
}

func TestObserve_WindowSlidesAfterFull(t *testing.T) {
	tr := New(2, 0.01)

	tr.Observe(map[string]float64{"x": 1.0})
	tr.Observe(map[string]float64{"x": 3.0}) // baseline = mean(1,3) = 2

	// Pushing a third value evicts the oldest (1.0); the window becomes
	// (3.0, 5.0), mean = 4.
	signals := tr.Observe(map[string]float64{"x": 5.0})
	require.Len(t, signals, 1)
	assert.InDelta(t, 4.0, signals[0].CurrentMean, 1e-9)
}

func TestObserve_FeaturesAreIndependent(t *testing.T) {
	tr := New(2, 0.01)

	tr.Observe(map[string]float64{"a": 1.0, "b": 100.0})
	tr.Observe(map[string]float64{"a": 1.0, "b": 100.0}) // both baselines frozen at this point

	signals := tr.Observe(map[string]float64{"a": 5.0, "b": 100.0})

	features := make(map[string]bool)
	for _, s := range signals {
		features[s.Feature] = true
	}
	assert.True(t, features["a"])
	assert.False(t, features["b"])
}

func TestObserve_ConcurrentUpdatesAreSafe(t *testing.T) {
	tr := New(50, 0.15)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.Observe(map[string]float64{"x": float64(i + j)})
			}
		}(i)
	}
	wg.Wait()
}
