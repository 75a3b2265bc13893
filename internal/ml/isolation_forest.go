// Package ml implements the isolation forest used by the CPU anomaly detector.
package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// eulerGamma is the Euler-Mascheroni constant used by the harmonic approximation
const eulerGamma = 0.5772156649

// ErrNoData is returned when fitting on an empty sample set
var ErrNoData = errors.New("ml: no training data")

// Point is one observation with one or more features
type Point []float64

type isolationTree struct {
	splitFeature int
	splitValue   float64
	left         *isolationTree
	right        *isolationTree
	size         int
	isLeaf       bool
}

// IsolationForest scores points by how quickly random splits isolate them
type IsolationForest struct {
	trees         []*isolationTree
	numTrees      int
	subSampleSize int
	maxDepth      int
	sampleSize    int
	rng           *rand.Rand
}

// NewIsolationForest builds an untrained forest. maxDepth <= 0 derives the
// depth limit from the sub-sample size as log2(n).
func NewIsolationForest(numTrees, subSampleSize, maxDepth int, seed int64) *IsolationForest {
	if numTrees <= 0 {
		numTrees = 100
	}
	if subSampleSize <= 0 {
		subSampleSize = 256
	}
	return &IsolationForest{
		numTrees:      numTrees,
		subSampleSize: subSampleSize,
		maxDepth:      maxDepth,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Fit trains the forest, replacing any previous trees
func (f *IsolationForest) Fit(data []Point) error {
	if len(data) == 0 {
		return ErrNoData
	}
	width := len(data[0])
	if width == 0 {
		return errors.New("ml: points have no features")
	}
	for _, p := range data {
		if len(p) != width {
			return errors.New("ml: points have mismatched feature counts")
		}
	}

	f.sampleSize = f.subSampleSize
	if f.sampleSize > len(data) {
		f.sampleSize = len(data)
	}
	depth := f.maxDepth
	if depth <= 0 {
		depth = int(math.Ceil(math.Log2(float64(max(f.sampleSize, 2)))))
	}

	f.trees = make([]*isolationTree, 0, f.numTrees)
	for i := 0; i < f.numTrees; i++ {
		f.trees = append(f.trees, f.buildTree(f.sample(data), 0, depth))
	}
	return nil
}

// Score returns the anomaly score in (0,1]; higher is more anomalous.
// An untrained forest scores every point 0.5.
func (f *IsolationForest) Score(p Point) float64 {
	if len(f.trees) == 0 {
		return 0.5
	}
	total := 0.0
	for _, t := range f.trees {
		total += pathLength(t, p, 0)
	}
	avg := total / float64(len(f.trees))
	c := averagePathLength(f.sampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

// Scores scores every point
func (f *IsolationForest) Scores(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = f.Score(p)
	}
	return out
}

// sample draws a sub-sample without replacement (Fisher-Yates)
func (f *IsolationForest) sample(data []Point) []Point {
	shuffled := make([]Point, len(data))
	copy(shuffled, data)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := f.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:f.sampleSize]
}

func (f *IsolationForest) buildTree(data []Point, depth, maxDepth int) *isolationTree {
	if len(data) <= 1 || depth >= maxDepth || allIdentical(data) {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	feature := f.rng.Intn(len(data[0]))
	lo, hi := featureRange(data, feature)
	if lo == hi {
		return &isolationTree{size: len(data), isLeaf: true}
	}
	split := lo + f.rng.Float64()*(hi-lo)

	var left, right []Point
	for _, p := range data {
		if p[feature] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	return &isolationTree{
		splitFeature: feature,
		splitValue:   split,
		left:         f.buildTree(left, depth+1, maxDepth),
		right:        f.buildTree(right, depth+1, maxDepth),
		size:         len(data),
	}
}

func pathLength(t *isolationTree, p Point, depth int) float64 {
	if t.isLeaf {
		return float64(depth) + averagePathLength(t.size)
	}
	if p[t.splitFeature] < t.splitValue {
		return pathLength(t.left, p, depth+1)
	}
	return pathLength(t.right, p, depth+1)
}

// averagePathLength is c(n), the mean unsuccessful-search depth of a BST
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

func allIdentical(data []Point) bool {
	first := data[0]
	for _, p := range data[1:] {
		for j := range first {
			if math.Abs(p[j]-first[j]) > 1e-10 {
				return false
			}
		}
	}
	return true
}

func featureRange(data []Point, feature int) (float64, float64) {
	lo, hi := data[0][feature], data[0][feature]
	for _, p := range data[1:] {
		v := p[feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Percentile returns the q-th percentile (0..100) of values using linear
// interpolation between closest ranks.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := q / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
