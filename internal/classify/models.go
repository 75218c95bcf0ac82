package classify

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const trainSeed = 42

// Classifier is one member of a category's trained ensemble. Probability
// returns the positive-class probability for a scaled feature vector.
type Classifier interface {
	Name() string
	Fit(features [][]float64, labels []bool) error
	Probability(features []float64) (float64, error)
}

func newClassifierEnsemble() []Classifier {
	return []Classifier{
		&logisticClassifier{epochs: 200, learningRate: 0.1},
		&knnClassifier{k: 5},
		&baggedStumpClassifier{trees: 25, seed: trainSeed},
	}
}

// --- logistic regression with full-batch gradient descent ---

type logisticClassifier struct {
	epochs       int
	learningRate float64
	weights      []float64
	bias         float64
	fitted       bool
}

func (c *logisticClassifier) Name() string { return "logistic" }

func (c *logisticClassifier) Fit(features [][]float64, labels []bool) error {
	n, p := len(features), len(features[0])
	y := make([]float64, n)
	for i, l := range labels {
		if l {
			y[i] = 1
		}
	}

	c.weights = make([]float64, p)
	c.bias = 0
	for epoch := 0; epoch < c.epochs; epoch++ {
		gradW := make([]float64, p)
		gradB := 0.0
		for i, row := range features {
			err := sigmoid(c.decision(row)) - y[i]
			for j, v := range row {
				gradW[j] += err * v
			}
			gradB += err
		}
		for j := range c.weights {
			c.weights[j] -= c.learningRate * gradW[j] / float64(n)
		}
		c.bias -= c.learningRate * gradB / float64(n)
	}
	c.fitted = true
	return nil
}

func (c *logisticClassifier) Probability(features []float64) (float64, error) {
	if !c.fitted {
		return 0, errors.New("logistic: not fitted")
	}
	if len(features) != len(c.weights) {
		return 0, fmt.Errorf("logistic: %d features, fitted on %d", len(features), len(c.weights))
	}
	return sigmoid(c.decision(features)), nil
}

func (c *logisticClassifier) decision(features []float64) float64 {
	z := c.bias
	for j, v := range features {
		z += c.weights[j] * v
	}
	return z
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// --- k-nearest-neighbor vote ---

type knnClassifier struct {
	k      int
	train  [][]float64
	labels []bool
}

func (c *knnClassifier) Name() string { return "knn" }

func (c *knnClassifier) Fit(features [][]float64, labels []bool) error {
	if len(features) < c.k {
		return fmt.Errorf("knn: need at least %d samples, got %d", c.k, len(features))
	}
	c.train = features
	c.labels = labels
	return nil
}

func (c *knnClassifier) Probability(features []float64) (float64, error) {
	if c.train == nil {
		return 0, errors.New("knn: not fitted")
	}
	type nd struct {
		dist     float64
		positive bool
	}
	all := make([]nd, len(c.train))
	for i, row := range c.train {
		sum := 0.0
		for j := range row {
			d := row[j] - features[j]
			sum += d * d
		}
		all[i] = nd{dist: sum, positive: c.labels[i]}
	}
	sort.Slice(all, func(a, b int) bool { return all[a].dist < all[b].dist })

	positive := 0
	for _, n := range all[:c.k] {
		if n.positive {
			positive++
		}
	}
	return float64(positive) / float64(c.k), nil
}

// --- bagged decision stumps voting on class membership ---

type stump struct {
	feature   int
	threshold float64
	left      float64
	right     float64
}

func (s stump) predict(features []float64) float64 {
	if features[s.feature] <= s.threshold {
		return s.left
	}
	return s.right
}

type baggedStumpClassifier struct {
	trees  int
	seed   int64
	stumps []stump
}

func (c *baggedStumpClassifier) Name() string { return "bagged_stumps" }

func (c *baggedStumpClassifier) Fit(features [][]float64, labels []bool) error {
	n, p := len(features), len(features[0])
	if n < 3 {
		return fmt.Errorf("bagged_stumps: need at least 3 samples, got %d", n)
	}
	y := make([]float64, n)
	for i, l := range labels {
		if l {
			y[i] = 1
		}
	}

	rng := rand.New(rand.NewSource(c.seed))
	c.stumps = make([]stump, 0, c.trees)
	for t := 0; t < c.trees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		c.stumps = append(c.stumps, fitClassStump(features, y, idx, rng.Intn(p)))
	}
	return nil
}

func (c *baggedStumpClassifier) Probability(features []float64) (float64, error) {
	if c.stumps == nil {
		return 0, errors.New("bagged_stumps: not fitted")
	}
	sum := 0.0
	for _, s := range c.stumps {
		sum += s.predict(features)
	}
	p := sum / float64(len(c.stumps))
	return math.Max(0, math.Min(p, 1)), nil
}

// fitClassStump finds the split on one feature minimizing squared error
// against the 0/1 class labels over the sampled rows.
func fitClassStump(features [][]float64, y []float64, idx []int, j int) stump {
	mean := 0.0
	for _, i := range idx {
		mean += y[i]
	}
	mean /= float64(len(idx))
	best := stump{feature: j, threshold: math.Inf(1), left: mean, right: mean}
	bestSSE := math.Inf(1)

	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = features[i][j]
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	for t := 1; t < len(sorted); t++ {
		if sorted[t] == sorted[t-1] {
			continue
		}
		threshold := (sorted[t] + sorted[t-1]) / 2

		var lSum, rSum float64
		var lN, rN int
		for _, i := range idx {
			if features[i][j] <= threshold {
				lSum += y[i]
				lN++
			} else {
				rSum += y[i]
				rN++
			}
		}
		if lN == 0 || rN == 0 {
			continue
		}
		lMean, rMean := lSum/float64(lN), rSum/float64(rN)

		sse := 0.0
		for _, i := range idx {
			var d float64
			if features[i][j] <= threshold {
				d = y[i] - lMean
			} else {
				d = y[i] - rMean
			}
			sse += d * d
		}
		if sse < bestSSE {
			bestSSE = sse
			best = stump{feature: j, threshold: threshold, left: lMean, right: rMean}
		}
	}
	return best
}
