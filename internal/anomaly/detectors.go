// Package anomaly scores environmental feature tables for unusual behavior,
// via per-column statistics when no baseline exists and an ensemble of
// unsupervised outlier detectors once trained on historical data.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Detector is one unsupervised outlier detector in the ensemble. Fit learns
// from scaled historical rows; Score returns a continuous outlier score
// (higher is more outlying) and a binary flag per input row.
type Detector interface {
	Name() string
	Fit(rows [][]float64) error
	Score(rows [][]float64) (scores []float64, flags []bool, err error)
}

// newDetectorBattery builds the standard battery: distance, density, margin,
// and covariance based detectors, each thresholded at the (1-contamination)
// quantile of its own training scores.
func newDetectorBattery(contamination float64) []Detector {
	return []Detector{
		&knnDistanceDetector{k: 5, contamination: contamination},
		&lofDetector{k: 5, contamination: contamination},
		&centroidMarginDetector{contamination: contamination},
		&mahalanobisDetector{contamination: contamination},
	}
}

// --- distance-based: mean distance to k nearest training neighbors ---

type knnDistanceDetector struct {
	k             int
	contamination float64
	train         [][]float64
	threshold     float64
}

func (d *knnDistanceDetector) Name() string { return "knn_distance" }

func (d *knnDistanceDetector) Fit(rows [][]float64) error {
	if len(rows) < d.k+1 {
		return fmt.Errorf("knn_distance: need at least %d samples, got %d", d.k+1, len(rows))
	}
	d.train = rows

	// Leave-one-out training scores set the decision threshold.
	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = d.meanKNNDistance(row, i)
	}
	d.threshold = scoreThreshold(scores, d.contamination)
	return nil
}

func (d *knnDistanceDetector) Score(rows [][]float64) ([]float64, []bool, error) {
	if d.train == nil {
		return nil, nil, errors.New("knn_distance: not fitted")
	}
	scores := make([]float64, len(rows))
	flags := make([]bool, len(rows))
	for i, row := range rows {
		scores[i] = d.meanKNNDistance(row, -1)
		flags[i] = scores[i] > d.threshold
	}
	return scores, flags, nil
}

// meanKNNDistance averages the distances from row to its k nearest training
// rows, skipping index skip (for leave-one-out fitting).
func (d *knnDistanceDetector) meanKNNDistance(row []float64, skip int) float64 {
	dists := make([]float64, 0, len(d.train))
	for j, tr := range d.train {
		if j == skip {
			continue
		}
		dists = append(dists, euclidean(row, tr))
	}
	sort.Float64s(dists)
	k := d.k
	if k > len(dists) {
		k = len(dists)
	}
	sum := 0.0
	for _, v := range dists[:k] {
		sum += v
	}
	return sum / float64(k)
}

// --- density-based: simplified local outlier factor ---

type lofDetector struct {
	k             int
	contamination float64
	train         [][]float64
	kDist         []float64 // k-distance of each training row
	threshold     float64
}

func (d *lofDetector) Name() string { return "local_outlier_factor" }

func (d *lofDetector) Fit(rows [][]float64) error {
	if len(rows) < d.k+2 {
		return fmt.Errorf("local_outlier_factor: need at least %d samples, got %d", d.k+2, len(rows))
	}
	d.train = rows
	d.kDist = make([]float64, len(rows))
	for i, row := range rows {
		_, dists := d.neighbors(row, i)
		d.kDist[i] = dists[len(dists)-1]
	}

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = d.factor(row, i)
	}
	d.threshold = scoreThreshold(scores, d.contamination)
	return nil
}

func (d *lofDetector) Score(rows [][]float64) ([]float64, []bool, error) {
	if d.train == nil {
		return nil, nil, errors.New("local_outlier_factor: not fitted")
	}
	scores := make([]float64, len(rows))
	flags := make([]bool, len(rows))
	for i, row := range rows {
		scores[i] = d.factor(row, -1)
		flags[i] = scores[i] > d.threshold
	}
	return scores, flags, nil
}

// factor compares the point's k-distance against its training neighbors'
// k-distances: values well above 1 sit in sparser space than their neighbors.
func (d *lofDetector) factor(row []float64, skip int) float64 {
	idx, dists := d.neighbors(row, skip)
	own := dists[len(dists)-1]

	neighborMean := 0.0
	for _, j := range idx {
		neighborMean += d.kDist[j]
	}
	neighborMean /= float64(len(idx))
	if neighborMean <= 0 {
		if own <= 0 {
			return 1
		}
		return math.Inf(1)
	}
	return own / neighborMean
}

// neighbors returns the indices and sorted distances of the k nearest
// training rows.
func (d *lofDetector) neighbors(row []float64, skip int) ([]int, []float64) {
	type nd struct {
		idx  int
		dist float64
	}
	all := make([]nd, 0, len(d.train))
	for j, tr := range d.train {
		if j == skip {
			continue
		}
		all = append(all, nd{j, euclidean(row, tr)})
	}
	sort.Slice(all, func(a, b int) bool { return all[a].dist < all[b].dist })
	k := d.k
	if k > len(all) {
		k = len(all)
	}
	idx := make([]int, k)
	dists := make([]float64, k)
	for i := 0; i < k; i++ {
		idx[i] = all[i].idx
		dists[i] = all[i].dist
	}
	return idx, dists
}

// --- margin-based: distance from the robust center ---

type centroidMarginDetector struct {
	contamination float64
	center        []float64
	threshold     float64
}

func (d *centroidMarginDetector) Name() string { return "centroid_margin" }

func (d *centroidMarginDetector) Fit(rows [][]float64) error {
	if len(rows) < 3 {
		return fmt.Errorf("centroid_margin: need at least 3 samples, got %d", len(rows))
	}
	width := len(rows[0])
	d.center = make([]float64, width)
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		d.center[j] = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = euclidean(row, d.center)
	}
	d.threshold = scoreThreshold(scores, d.contamination)
	return nil
}

func (d *centroidMarginDetector) Score(rows [][]float64) ([]float64, []bool, error) {
	if d.center == nil {
		return nil, nil, errors.New("centroid_margin: not fitted")
	}
	scores := make([]float64, len(rows))
	flags := make([]bool, len(rows))
	for i, row := range rows {
		scores[i] = euclidean(row, d.center)
		flags[i] = scores[i] > d.threshold
	}
	return scores, flags, nil
}

// --- covariance-based: Mahalanobis distance from the fitted distribution ---

type mahalanobisDetector struct {
	contamination float64
	mean          []float64
	chol          *mat.Cholesky
	threshold     float64
}

func (d *mahalanobisDetector) Name() string { return "mahalanobis" }

func (d *mahalanobisDetector) Fit(rows [][]float64) error {
	n, width := len(rows), 0
	if n > 0 {
		width = len(rows[0])
	}
	if n < width+2 {
		return fmt.Errorf("mahalanobis: need at least %d samples for %d features, got %d", width+2, width, n)
	}

	data := mat.NewDense(n, width, nil)
	for i, row := range rows {
		data.SetRow(i, row)
	}
	d.mean = make([]float64, width)
	col := make([]float64, n)
	for j := 0; j < width; j++ {
		mat.Col(col, j, data)
		d.mean[j] = stat.Mean(col, nil)
	}

	cov := mat.NewSymDense(width, nil)
	stat.CovarianceMatrix(cov, data, nil)
	// Small ridge keeps near-degenerate covariance factorizable.
	for j := 0; j < width; j++ {
		cov.SetSym(j, j, cov.At(j, j)+1e-9)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return errors.New("mahalanobis: covariance matrix is not positive definite")
	}
	d.chol = &chol

	scores := make([]float64, n)
	for i, row := range rows {
		scores[i] = d.distance(row)
	}
	d.threshold = scoreThreshold(scores, d.contamination)
	return nil
}

func (d *mahalanobisDetector) Score(rows [][]float64) ([]float64, []bool, error) {
	if d.chol == nil {
		return nil, nil, errors.New("mahalanobis: not fitted")
	}
	scores := make([]float64, len(rows))
	flags := make([]bool, len(rows))
	for i, row := range rows {
		scores[i] = d.distance(row)
		flags[i] = scores[i] > d.threshold
	}
	return scores, flags, nil
}

func (d *mahalanobisDetector) distance(row []float64) float64 {
	diff := make([]float64, len(row))
	for j, v := range row {
		diff[j] = v - d.mean[j]
	}
	v := mat.NewVecDense(len(diff), diff)
	var solved mat.VecDense
	if err := d.chol.SolveVecTo(&solved, v); err != nil {
		return math.Inf(1)
	}
	return math.Sqrt(mat.Dot(v, &solved))
}

// --- helpers ---

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// scoreThreshold returns the (1-contamination) quantile of training scores,
// so roughly a contamination fraction of training points would be flagged.
func scoreThreshold(scores []float64, contamination float64) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	p := 1 - contamination
	if p < 0.5 {
		p = 0.5
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}
