// Package model defines the data model every other component depends on —
// feature rows, predictions, and the Model contract the registry loads and
// the scheduler/job manager call into — plus the logistic scorer that reads
// a model.json artifact from disk.
package model

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// Row is an unordered mapping from feature name to numeric value. Callers
// treat a Row as immutable once it is handed to a Model.
type Row map[string]float64

// Prediction is produced 1:1 from a feature Row.
type Prediction struct {
	Probability float64 `json:"probability"`
	Label       int     `json:"label"`
	Version     string  `json:"version"`
	Confidence  float64 `json:"confidence"`
}

// Model is the callable contract the registry loads and the scheduler and
// job manager invoke. Implementations must serialize concurrent calls on the
// same instance behind a single "device lock" — Predict is synchronous and
// blocking, never invoked off-goroutine by the caller.
type Model interface {
	// Predict scores a batch of rows in one call. len(output) == len(input),
	// and output[i] corresponds to input[i].
	Predict(rows []Row) ([]Prediction, error)
	// Version returns the identifier this instance was loaded under.
	Version() string
}

// artifact is the on-disk shape of <registry_root>/<version>/model.json.
type artifact struct {
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

// logisticModel scores rows with a logistic function over a linear
// combination of weighted features. It mirrors the reference Python scorer
// exactly: missing features in a row contribute 0, label is 1 iff
// probability >= 0.5, and confidence is |2*probability - 1|.
type logisticModel struct {
	version string
	bias    float64
	weights map[string]float64

	// mu is the device lock: it serializes every call to Predict across all
	// goroutines sharing this instance, modeling contention for a single
	// scarce scoring resource.
	mu sync.Mutex
}

// LoadFromArtifact reads <root>/<version>/model.json and constructs a Model.
// It returns errors.ArtifactMissing when the file does not exist, and
// errors.Internal when it exists but cannot be parsed.
func LoadFromArtifact(root, version string) (Model, error) {
	path := filepath.Join(root, version, "model.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ArtifactMissing(version)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to read model artifact").WithDetail(path)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to parse model artifact").WithDetail(path)
	}

	return &logisticModel{
		version: version,
		bias:    a.Bias,
		weights: a.Weights,
	}, nil
}

func (m *logisticModel) Version() string { return m.version }

func (m *logisticModel) Predict(rows []Row) ([]Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Prediction, len(rows))
	for i, row := range rows {
		z := m.bias
		for feature, weight := range m.weights {
			z += weight * row[feature] // zero value for a missing feature
		}
		p := sigmoid(z)

		label := 0
		if p >= 0.5 {
			label = 1
		}

		out[i] = Prediction{
			Probability: p,
			Label:       label,
			Version:     m.version,
			Confidence:  math.Abs(2*p - 1),
		}
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// NewStaticModel constructs a Model directly from an in-memory bias/weights
// pair without touching the filesystem. Exported for tests that want a
// model instance without writing a fixture artifact to disk.
func NewStaticModel(version string, bias float64, weights map[string]float64) Model {
	return &logisticModel{version: version, bias: bias, weights: weights}
}
