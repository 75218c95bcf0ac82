package forecast

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// windowSize adapts the lag window to the series length: a third of the
// series, kept between 3 and 24 steps.
func windowSize(n int) int {
	w := n / 3
	if w < 3 {
		w = 3
	}
	if w > 24 {
		w = 24
	}
	return w
}

// windowFeatures builds the model input for the window ending just before
// index end: the lagged values themselves plus summary statistics of the
// window and its short-term movement.
func windowFeatures(series []float64, end, window int) []float64 {
	lags := series[end-window : end]
	features := make([]float64, 0, window+6)
	features = append(features, lags...)

	features = append(features,
		stat.Mean(lags, nil),
		stat.StdDev(lags, nil),
		minOf(lags),
		maxOf(lags),
		lags[len(lags)-1]-lags[len(lags)-2],
		(lags[len(lags)-1]-lags[0])/float64(window),
	)
	return features
}

// trainingSet converts the series into supervised examples for the horizon:
// each window predicts the value horizon steps past its end.
func trainingSet(series []float64, window, horizon int) (features [][]float64, targets []float64) {
	for end := window; end+horizon-1 < len(series); end++ {
		features = append(features, windowFeatures(series, end, window))
		targets = append(targets, series[end+horizon-1])
	}
	return features, targets
}

// latestFeatures is the prediction input: the window ending at the last
// observation.
func latestFeatures(series []float64, window int) []float64 {
	return windowFeatures(series, len(series), window)
}

// splitTrainTest shuffles example indices with a fixed seed and holds out
// 20% for evaluation.
func splitTrainTest(n int) (train, test []int) {
	idx := rand.New(rand.NewSource(trainSeed)).Perm(n)
	cut := n - n/5
	if cut == n {
		cut = n - 1
	}
	return idx[:cut], idx[cut:]
}

// evaluate computes R-squared and mean absolute error of model predictions
// over the held-out indices.
func evaluate(model Regressor, features [][]float64, targets []float64, test []int) (r2, mae float64) {
	if len(test) == 0 {
		return 0, 0
	}
	actual := make([]float64, 0, len(test))
	predicted := make([]float64, 0, len(test))
	for _, i := range test {
		p, err := model.Predict(features[i])
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		actual = append(actual, targets[i])
		predicted = append(predicted, p)
	}
	if len(actual) == 0 {
		return 0, 0
	}

	mean := stat.Mean(actual, nil)
	var ssRes, ssTot, absErr float64
	for i := range actual {
		d := actual[i] - predicted[i]
		ssRes += d * d
		ssTot += (actual[i] - mean) * (actual[i] - mean)
		absErr += math.Abs(d)
	}
	mae = absErr / float64(len(actual))
	if ssTot == 0 {
		return 0, mae
	}
	return 1 - ssRes/ssTot, mae
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
