package scoring

import (
	"log/slog"
	"math"
	"time"

	"github.com/signalworks/sibyl/internal/feature"
)

// Classes is the fixed intent-class set in urgency order. Tie-breaking and
// the blend expectation both rely on this order.
var Classes = [4]string{"buy_soon", "considering", "researching", "not_interested"}

// ClassIndex returns the position of an intent label, or -1.
func ClassIndex(intent string) int {
	for i, c := range Classes {
		if c == intent {
			return i
		}
	}
	return -1
}

// Distribution is a 4-way probability distribution over Classes.
type Distribution [4]float64

// ArgMax selects the intent with the highest probability. Probabilities
// equal within 1e-6 resolve to the higher-urgency class.
func (d Distribution) ArgMax() (int, float64) {
	best := 0
	for i := 1; i < len(d); i++ {
		if d[i] > d[best]+1e-6 {
			best = i
		}
	}
	return best, d[best]
}

// EvalMetrics summarises an offline evaluation pass. Macro-averaged across
// the four classes.
type EvalMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Samples   int     `json:"samples"`
}

// Snapshot is an immutable, versioned bundle of trained ensemble parameters:
// a multinomial logistic model over the feature schema. Replaced atomically
// on retraining; never mutated after construction.
type Snapshot struct {
	Version       string             `json:"version"`
	SchemaVersion string             `json:"schema_version"`
	FeatureNames  []string           `json:"feature_names"`
	Scale         []float64          `json:"scale"`   // per-feature divisor, aligned to FeatureNames
	Weights       [4][]float64       `json:"weights"` // per class, aligned to FeatureNames
	Bias          [4]float64         `json:"bias"`
	TrainedAt     time.Time          `json:"trained_at"`
	Metrics       EvalMetrics        `json:"metrics"`
	Importance    map[string]float64 `json:"importance"`
}

// Distribution runs the snapshot over a feature vector and returns the
// 4-way class distribution. Features present in the vector but unknown to
// the snapshot are logged and dropped; dropped=true signals degraded mode.
func (s *Snapshot) Distribution(vec feature.Vector, logger *slog.Logger) (Distribution, bool) {
	known := make(map[string]bool, len(s.FeatureNames))
	for _, n := range s.FeatureNames {
		known[n] = true
	}

	dropped := false
	for _, n := range feature.Names() {
		if _, present := vec.Get(n); present && !known[n] {
			logger.Warn("dropping feature unknown to snapshot",
				"feature", n, "snapshot", s.Version)
			dropped = true
		}
	}

	dense := vec.Dense(s.FeatureNames)
	for i := range dense {
		if i < len(s.Scale) && s.Scale[i] > 0 {
			dense[i] /= s.Scale[i]
		}
	}

	var logits [4]float64
	for c := 0; c < 4; c++ {
		z := s.Bias[c]
		for i, x := range dense {
			z += s.Weights[c][i] * x
		}
		logits[c] = z
	}
	return softmax(logits), dropped
}

// softmax converts logits to probabilities summing to 1, shifted by the max
// logit for numerical stability.
func softmax(logits [4]float64) Distribution {
	max := logits[0]
	for _, z := range logits[1:] {
		if z > max {
			max = z
		}
	}
	var sum float64
	var out Distribution
	for i, z := range logits {
		out[i] = math.Exp(z - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
