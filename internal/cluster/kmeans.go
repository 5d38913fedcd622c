// Package cluster implements seeded k-means over dense feature vectors.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Defaults applied when KMeans fields are zero.
const (
	DefaultMaxIterations = 100
	DefaultRestarts      = 1
)

// ErrEmptyInput is returned when no points are supplied.
var ErrEmptyInput = errors.New("cluster: no points")

// KMeans is a Lloyd's algorithm clusterer with k-means++ seeding. Output is a
// deterministic function of the points, k and seed.
type KMeans struct {
	MaxIterations int
	// Restarts runs the full algorithm several times from derived seeds and
	// keeps the assignment with the lowest inertia.
	Restarts int
}

// Result captures one clustering run.
type Result struct {
	Assignments []int
	Centroids   [][]float64
	Inertia     float64
	Iterations  int
}

// Cluster partitions points into k groups and returns the raw group index of
// each point. Group indices carry no meaning beyond identity.
func (km KMeans) Cluster(points [][]float64, k int, seed uint64) ([]int, error) {
	res, err := km.Run(points, k, seed)
	if err != nil {
		return nil, err
	}
	return res.Assignments, nil
}

// Run is Cluster with centroids and inertia exposed.
func (km KMeans) Run(points [][]float64, k int, seed uint64) (Result, error) {
	if len(points) == 0 {
		return Result{}, ErrEmptyInput
	}
	if k <= 0 {
		return Result{}, fmt.Errorf("cluster: k must be positive, got %d", k)
	}
	if k > len(points) {
		return Result{}, fmt.Errorf("cluster: k=%d exceeds %d points", k, len(points))
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return Result{}, fmt.Errorf("cluster: point %d has %d dimensions, want %d", i, len(p), dim)
		}
	}
	maxIter := km.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	restarts := km.Restarts
	if restarts <= 0 {
		restarts = DefaultRestarts
	}

	var best Result
	for r := 0; r < restarts; r++ {
		rng := rand.New(rand.NewPCG(seed, uint64(r)))
		res := lloyd(points, seedPlusPlus(points, k, rng), maxIter)
		if r == 0 || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// seedPlusPlus picks k initial centroids with D² weighting. When every
// remaining point coincides with a chosen centroid the pick falls back to
// uniform.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clonePoint(points[rng.IntN(len(points))]))
	dist := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centroids {
				if v := sqDist(p, c); v < d {
					d = v
				}
			}
			dist[i] = d
			total += d
		}
		if total == 0 {
			centroids = append(centroids, clonePoint(points[rng.IntN(len(points))]))
			continue
		}
		target := rng.Float64() * total
		pick := len(points) - 1
		var acc float64
		for i, d := range dist {
			acc += d
			if acc >= target && d > 0 {
				pick = i
				break
			}
		}
		centroids = append(centroids, clonePoint(points[pick]))
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64, maxIter int) Result {
	k := len(centroids)
	dim := len(points[0])
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}
	iter := 0
	for iter < maxIter {
		iter++
		changed := false
		for i, p := range points {
			c := nearest(p, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for d, v := range p {
				sums[c][d] += v
			}
		}
		for c := range centroids {
			// an empty group keeps its previous centroid
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	var inertia float64
	for i, p := range points {
		inertia += sqDist(p, centroids[assign[i]])
	}
	return Result{Assignments: assign, Centroids: centroids, Inertia: inertia, Iterations: iter}
}

// nearest returns the closest centroid, ties resolved to the lowest index.
func nearest(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clonePoint(p []float64) []float64 {
	return append([]float64(nil), p...)
}
