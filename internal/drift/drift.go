// Package drift implements the per-feature distributional drift detector
// described in the design's component G. Grounded on the reference Python
// implementation (app/monitoring/drift.py): the same fixed-size sliding
// window per feature, the same freeze-baseline-on-first-full-window rule,
// and the same |current-baseline|/|baseline| statistic with a
// division-by-zero guard — the Python collections.deque(maxlen=...) becomes
// a small ring buffer, and the tracker's dict-of-state becomes a
// mutex-guarded map.
package drift

import "sync"

// Signal reports that a feature's current windowed mean has moved away from
// its frozen baseline by at least the tracker's threshold.
type Signal struct {
	Feature      string
	BaselineMean float64
	CurrentMean  float64
	DriftScore   float64
}

// ring is a fixed-capacity ring buffer of float64 samples.
type ring struct {
	values []float64
	cap    int
	next   int
	filled bool
}

func newRing(capacity int) *ring {
	return &ring{values: make([]float64, 0, capacity), cap: capacity}
}

func (r *ring) push(v float64) {
	if len(r.values) < r.cap {
		r.values = append(r.values, v)
		if len(r.values) == r.cap {
			r.filled = true
		}
		return
	}
	r.values[r.next] = v
	r.next = (r.next + 1) % r.cap
	r.filled = true
}

func (r *ring) full() bool {
	return r.filled
}

func (r *ring) mean() float64 {
	if len(r.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range r.values {
		sum += v
	}
	return sum / float64(len(r.values))
}

// featureState holds one feature's window and frozen baseline.
type featureState struct {
	window   *ring
	baseline float64
	hasBase  bool
}

// Tracker is the component described in 4.G. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	window    int
	threshold float64
	features  map[string]*featureState
}

// New constructs a Tracker with the given window size and drift threshold.
func New(window int, threshold float64) *Tracker {
	if window < 1 {
		window = 1
	}
	return &Tracker{
		window:    window,
		threshold: threshold,
		features:  make(map[string]*featureState),
	}
}

// Observe pushes every value in row into its feature's window and returns a
// Signal for each feature whose drift score has crossed the threshold.
// A feature's first full window becomes its baseline (no signal emitted for
// that observation); a feature whose frozen baseline is exactly zero never
// emits, matching the reference statistic's division-by-zero guard.
func (t *Tracker) Observe(row map[string]float64) []Signal {
	t.mu.Lock()
	defer t.mu.Unlock()

	var signals []Signal
	for name, value := range row {
		fs, ok := t.features[name]
		if !ok {
			fs = &featureState{window: newRing(t.window)}
			t.features[name] = fs
		}
		fs.window.push(value)

		if !fs.window.full() {
			continue
		}

		if !fs.hasBase {
			fs.baseline = fs.window.mean()
			fs.hasBase = true
			continue
		}

		if fs.baseline == 0 {
			continue
		}

		current := fs.window.mean()
		score := absf(current-fs.baseline) / absf(fs.baseline)
		if score >= t.threshold {
			signals = append(signals, Signal{
				Feature:      name,
				BaselineMean: fs.baseline,
				CurrentMean:  current,
				DriftScore:   score,
			})
		}
	}
	return signals
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
