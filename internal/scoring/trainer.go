package scoring

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/signalworks/sibyl/internal/feature"
)

// Example is one historical (feature vector, realized outcome) pair.
type Example struct {
	Vector feature.Vector
	Intent string
}

// Trainer fits a multinomial logistic model over the feature schema by
// batch gradient descent. Training is fully deterministic: zero
// initialization, fixed learning rate and epoch count, stable class and
// feature order, no shuffling.
type Trainer struct {
	epochs     int
	learnRate  float64
	minSamples int
	logger     *slog.Logger
}

func NewTrainer(logger *slog.Logger) *Trainer {
	return &Trainer{
		epochs:     300,
		learnRate:  0.1,
		minSamples: 20,
		logger:     logger,
	}
}

// Train produces a new immutable snapshot plus evaluation metrics and
// per-feature importance. The last 20% of examples (input order) is held
// out for evaluation; callers supply chronologically ordered history.
func (t *Trainer) Train(examples []Example) (*Snapshot, error) {
	if len(examples) < t.minSamples {
		return nil, fmt.Errorf("insufficient training data: %d samples, need %d", len(examples), t.minSamples)
	}

	labels := make([]int, len(examples))
	for i, ex := range examples {
		c := ClassIndex(ex.Intent)
		if c < 0 {
			return nil, fmt.Errorf("example %d: unknown intent %q", i, ex.Intent)
		}
		labels[i] = c
	}

	names := feature.Names()

	// Per-feature scale: max absolute value over the training set, so
	// large scalars (team size, page counts) cannot dominate the gradient.
	scale := make([]float64, len(names))
	rows := make([][]float64, len(examples))
	for i, ex := range examples {
		rows[i] = ex.Vector.Dense(names)
		for j, x := range rows[i] {
			if a := math.Abs(x); a > scale[j] {
				scale[j] = a
			}
		}
	}
	for j := range scale {
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] /= scale[j]
		}
	}

	split := len(examples) * 4 / 5
	if split == len(examples) {
		split = len(examples) - 1
	}

	var weights [4][]float64
	for c := range weights {
		weights[c] = make([]float64, len(names))
	}
	var bias [4]float64

	n := float64(split)
	for epoch := 0; epoch < t.epochs; epoch++ {
		var gradW [4][]float64
		for c := range gradW {
			gradW[c] = make([]float64, len(names))
		}
		var gradB [4]float64

		for i := 0; i < split; i++ {
			var logits [4]float64
			for c := 0; c < 4; c++ {
				z := bias[c]
				for j, x := range rows[i] {
					z += weights[c][j] * x
				}
				logits[c] = z
			}
			p := softmax(logits)
			for c := 0; c < 4; c++ {
				y := 0.0
				if labels[i] == c {
					y = 1.0
				}
				diff := p[c] - y
				gradB[c] += diff
				for j, x := range rows[i] {
					gradW[c][j] += diff * x
				}
			}
		}

		for c := 0; c < 4; c++ {
			bias[c] -= t.learnRate * gradB[c] / n
			for j := range weights[c] {
				weights[c][j] -= t.learnRate * gradW[c][j] / n
			}
		}
	}

	snap := &Snapshot{
		Version:       "snap-" + time.Now().UTC().Format("20060102T150405Z"),
		SchemaVersion: feature.SchemaVersion,
		FeatureNames:  names,
		Scale:         scale,
		Weights:       weights,
		Bias:          bias,
		TrainedAt:     time.Now().UTC(),
	}

	snap.Metrics = t.evaluate(snap, rows[split:], labels[split:])
	snap.Importance = importance(names, weights)

	t.logger.Info("training complete",
		"version", snap.Version,
		"samples", len(examples),
		"holdout", len(examples)-split,
		"accuracy", snap.Metrics.Accuracy,
		"f1", snap.Metrics.F1,
	)
	return snap, nil
}

// evaluate computes accuracy and macro-averaged precision/recall/F1 on
// already-scaled rows.
func (t *Trainer) evaluate(s *Snapshot, rows [][]float64, labels []int) EvalMetrics {
	if len(rows) == 0 {
		return EvalMetrics{}
	}

	var tp, fp, fn [4]int
	correct := 0
	for i, row := range rows {
		var logits [4]float64
		for c := 0; c < 4; c++ {
			z := s.Bias[c]
			for j, x := range row {
				z += s.Weights[c][j] * x
			}
			logits[c] = z
		}
		pred, _ := softmax(logits).ArgMax()
		if pred == labels[i] {
			correct++
			tp[pred]++
		} else {
			fp[pred]++
			fn[labels[i]]++
		}
	}

	var precision, recall, f1 float64
	for c := 0; c < 4; c++ {
		var p, r float64
		if tp[c]+fp[c] > 0 {
			p = float64(tp[c]) / float64(tp[c]+fp[c])
		}
		if tp[c]+fn[c] > 0 {
			r = float64(tp[c]) / float64(tp[c]+fn[c])
		}
		precision += p
		recall += r
		if p+r > 0 {
			f1 += 2 * p * r / (p + r)
		}
	}

	return EvalMetrics{
		Accuracy:  float64(correct) / float64(len(rows)),
		Precision: precision / 4,
		Recall:    recall / 4,
		F1:        f1 / 4,
		Samples:   len(rows),
	}
}

// importance is the mean absolute weight per feature across classes,
// normalized to sum to 1.
func importance(names []string, weights [4][]float64) map[string]float64 {
	imp := make(map[string]float64, len(names))
	var total float64
	for j, n := range names {
		var sum float64
		for c := 0; c < 4; c++ {
			sum += math.Abs(weights[c][j])
		}
		imp[n] = sum / 4
		total += imp[n]
	}
	if total > 0 {
		for n := range imp {
			imp[n] /= total
		}
	}
	return imp
}
