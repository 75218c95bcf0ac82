package forecast

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// trainSeed fixes every stochastic element of model training so a retrain on
// identical history publishes an identical model.
const trainSeed = 42

// Regressor is one member of a forecast ensemble.
type Regressor interface {
	Name() string
	Fit(features [][]float64, targets []float64) error
	Predict(features []float64) (float64, error)
}

func newRegressorEnsemble() []Regressor {
	return []Regressor{
		&linearRegressor{},
		&ridgeRegressor{lambda: 1.0},
		&baggedStumps{trees: 25, seed: trainSeed},
		&boostedStumps{rounds: 50, learningRate: 0.1},
		&mlpRegressor{hidden: 8, epochs: 200, learningRate: 0.01, seed: trainSeed},
	}
}

// --- ordinary least squares via sajari/regression ---

type linearRegressor struct {
	model *regression.Regression
}

func (r *linearRegressor) Name() string { return "linear_regression" }

func (r *linearRegressor) Fit(features [][]float64, targets []float64) error {
	model := new(regression.Regression)
	model.SetObserved("target")
	for j := range features[0] {
		model.SetVar(j, fmt.Sprintf("f%d", j))
	}
	for i, row := range features {
		model.Train(regression.DataPoint(targets[i], row))
	}
	if err := model.Run(); err != nil {
		return fmt.Errorf("linear_regression: %w", err)
	}
	r.model = model
	return nil
}

func (r *linearRegressor) Predict(features []float64) (float64, error) {
	if r.model == nil {
		return 0, errors.New("linear_regression: not fitted")
	}
	return r.model.Predict(features)
}

// --- ridge regression, closed form on gonum ---

type ridgeRegressor struct {
	lambda  float64
	weights []float64 // last entry is the intercept
}

func (r *ridgeRegressor) Name() string { return "ridge" }

func (r *ridgeRegressor) Fit(features [][]float64, targets []float64) error {
	n := len(features)
	p := len(features[0]) + 1 // bias column

	x := mat.NewDense(n, p, nil)
	for i, row := range features {
		for j, v := range row {
			x.Set(i, j, v)
		}
		x.Set(i, p-1, 1)
	}
	y := mat.NewVecDense(n, targets)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 0; j < p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+r.lambda)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var w mat.VecDense
	if err := w.SolveVec(&xtx, &xty); err != nil {
		return fmt.Errorf("ridge: solving normal equations: %w", err)
	}
	r.weights = make([]float64, p)
	copy(r.weights, w.RawVector().Data)
	return nil
}

func (r *ridgeRegressor) Predict(features []float64) (float64, error) {
	if r.weights == nil {
		return 0, errors.New("ridge: not fitted")
	}
	if len(features) != len(r.weights)-1 {
		return 0, fmt.Errorf("ridge: %d features, fitted on %d", len(features), len(r.weights)-1)
	}
	out := r.weights[len(r.weights)-1]
	for j, v := range features {
		out += r.weights[j] * v
	}
	return out, nil
}

// --- regression stump, shared by the bagged and boosted ensembles ---

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

// fitStump finds the single split over candidate features minimizing the sum
// of squared errors on the indexed rows.
func fitStump(features [][]float64, targets []float64, idx []int, candidates []int) stump {
	mean := 0.0
	for _, i := range idx {
		mean += targets[i]
	}
	mean /= float64(len(idx))
	best := stump{feature: -1, left: mean, right: mean}
	bestSSE := math.Inf(1)

	vals := make([]float64, len(idx))
	for _, j := range candidates {
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
					lSum += targets[i]
					lN++
				} else {
					rSum += targets[i]
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
					d = targets[i] - lMean
				} else {
					d = targets[i] - rMean
				}
				sse += d * d
			}
			if sse < bestSSE {
				bestSSE = sse
				best = stump{feature: j, threshold: threshold, left: lMean, right: rMean}
			}
		}
	}
	if best.feature < 0 {
		best.feature = 0
		best.threshold = math.Inf(1)
	}
	return best
}

// --- bagged stumps with bootstrap rows and feature subsampling ---

type baggedStumps struct {
	trees  int
	seed   int64
	stumps []stump
}

func (r *baggedStumps) Name() string { return "bagged_trees" }

func (r *baggedStumps) Fit(features [][]float64, targets []float64) error {
	n, p := len(features), len(features[0])
	rng := rand.New(rand.NewSource(r.seed))
	sub := max(1, p/3)

	r.stumps = make([]stump, 0, r.trees)
	for t := 0; t < r.trees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		perm := rng.Perm(p)
		candidates := perm[:sub]
		r.stumps = append(r.stumps, fitStump(features, targets, idx, candidates))
	}
	return nil
}

func (r *baggedStumps) Predict(features []float64) (float64, error) {
	if r.stumps == nil {
		return 0, errors.New("bagged_trees: not fitted")
	}
	sum := 0.0
	for _, s := range r.stumps {
		sum += s.predict(features)
	}
	return sum / float64(len(r.stumps)), nil
}

// --- gradient-boosted stumps on squared loss ---

type boostedStumps struct {
	rounds       int
	learningRate float64
	base         float64
	stumps       []stump
	fitted       bool
}

func (r *boostedStumps) Name() string { return "gradient_boost" }

func (r *boostedStumps) Fit(features [][]float64, targets []float64) error {
	n, p := len(features), len(features[0])
	idx := make([]int, n)
	candidates := make([]int, p)
	for i := range idx {
		idx[i] = i
	}
	for j := range candidates {
		candidates[j] = j
	}

	r.base = stat.Mean(targets, nil)
	residuals := make([]float64, n)
	for i, y := range targets {
		residuals[i] = y - r.base
	}

	r.stumps = make([]stump, 0, r.rounds)
	for t := 0; t < r.rounds; t++ {
		s := fitStump(features, residuals, idx, candidates)
		r.stumps = append(r.stumps, s)
		for i, row := range features {
			residuals[i] -= r.learningRate * s.predict(row)
		}
	}
	r.fitted = true
	return nil
}

func (r *boostedStumps) Predict(features []float64) (float64, error) {
	if !r.fitted {
		return 0, errors.New("gradient_boost: not fitted")
	}
	out := r.base
	for _, s := range r.stumps {
		out += r.learningRate * s.predict(features)
	}
	return out, nil
}

// --- single-hidden-layer perceptron with tanh activation ---

type mlpRegressor struct {
	hidden       int
	epochs       int
	learningRate float64
	seed         int64

	w1     [][]float64 // hidden x input
	b1     []float64
	w2     []float64
	b2     float64
	inMean []float64
	inStd  []float64
	yMean  float64
	yStd   float64
}

func (r *mlpRegressor) Name() string { return "mlp" }

func (r *mlpRegressor) Fit(features [][]float64, targets []float64) error {
	n, p := len(features), len(features[0])

	// Standardize inputs and target; gradients are wild otherwise.
	r.inMean = make([]float64, p)
	r.inStd = make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range features {
			col[i] = features[i][j]
		}
		r.inMean[j] = stat.Mean(col, nil)
		r.inStd[j] = stat.StdDev(col, nil)
		if r.inStd[j] == 0 {
			r.inStd[j] = 1
		}
	}
	r.yMean = stat.Mean(targets, nil)
	r.yStd = stat.StdDev(targets, nil)
	if r.yStd == 0 {
		r.yStd = 1
	}

	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range features {
		x[i] = r.normalize(features[i])
		y[i] = (targets[i] - r.yMean) / r.yStd
	}

	rng := rand.New(rand.NewSource(r.seed))
	r.w1 = make([][]float64, r.hidden)
	r.b1 = make([]float64, r.hidden)
	r.w2 = make([]float64, r.hidden)
	scale := 1 / math.Sqrt(float64(p))
	for h := 0; h < r.hidden; h++ {
		r.w1[h] = make([]float64, p)
		for j := range r.w1[h] {
			r.w1[h][j] = rng.NormFloat64() * scale
		}
		r.w2[h] = rng.NormFloat64() / math.Sqrt(float64(r.hidden))
	}

	act := make([]float64, r.hidden)
	for epoch := 0; epoch < r.epochs; epoch++ {
		for i := range x {
			for h := 0; h < r.hidden; h++ {
				z := r.b1[h]
				for j, v := range x[i] {
					z += r.w1[h][j] * v
				}
				act[h] = math.Tanh(z)
			}
			out := r.b2
			for h, a := range act {
				out += r.w2[h] * a
			}

			grad := out - y[i]
			for h := 0; h < r.hidden; h++ {
				gw2 := grad * act[h]
				gHidden := grad * r.w2[h] * (1 - act[h]*act[h])
				r.w2[h] -= r.learningRate * gw2
				r.b1[h] -= r.learningRate * gHidden
				for j, v := range x[i] {
					r.w1[h][j] -= r.learningRate * gHidden * v
				}
			}
			r.b2 -= r.learningRate * grad
		}
	}
	return nil
}

func (r *mlpRegressor) Predict(features []float64) (float64, error) {
	if r.w1 == nil {
		return 0, errors.New("mlp: not fitted")
	}
	x := r.normalize(features)
	out := r.b2
	for h := 0; h < r.hidden; h++ {
		z := r.b1[h]
		for j, v := range x {
			z += r.w1[h][j] * v
		}
		out += r.w2[h] * math.Tanh(z)
	}
	return out*r.yStd + r.yMean, nil
}

func (r *mlpRegressor) normalize(features []float64) []float64 {
	out := make([]float64, len(features))
	for j, v := range features {
		out[j] = (v - r.inMean[j]) / r.inStd[j]
	}
	return out
}
