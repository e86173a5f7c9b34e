package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"

	"solar-impact-insights/dataset"
)

// ClusterFeatures are the columns k-means partitions on.
var ClusterFeatures = []dataset.Column{dataset.SEPIntensity, dataset.Temperature, dataset.IceExtent}

// ErrTooFewRows is returned when there are fewer eligible rows than clusters.
var ErrTooFewRows = errors.New("fewer eligible rows than clusters")

// KMeans configures Lloyd's algorithm with k-means++ seeding.
type KMeans struct {
	K             int
	MaxIterations int
	// Tolerance bounds the summed squared centroid shift that counts as converged.
	Tolerance float64
	Seed      uint64
}

// DefaultKMeans returns three clusters, a 300 iteration cap and a fixed seed.
func DefaultKMeans() KMeans {
	return KMeans{K: 3, MaxIterations: 300, Tolerance: 1e-4, Seed: 42}
}

// Clustering is the outcome of a k-means run. Labels are ordered by ascending mean SEP
// intensity, so label 0 is always the lowest-intensity group.
type Clustering struct {
	Table      *dataset.Table   `json:"-"`
	K          int              `json:"k"`
	Features   []dataset.Column `json:"features"`
	Centroids  [][]float64      `json:"centroids"`
	Sizes      []int            `json:"sizes"`
	Iterations int              `json:"iterations"`
	Converged  bool             `json:"converged"`
	Labeled    int              `json:"labeled"`
	Unlabeled  int              `json:"unlabeled"`
}

// Cluster partitions the rows of t that have every feature present. It returns a copy of t
// with Cluster set on those rows; other rows keep a nil label.
func (km KMeans) Cluster(t *dataset.Table) dataset.Result[Clustering] {
	if km.K <= 0 {
		return dataset.Fail[Clustering](fmt.Errorf("kmeans: k must be positive, got %d", km.K))
	}
	if km.MaxIterations <= 0 {
		km.MaxIterations = DefaultKMeans().MaxIterations
	}
	if t.IsEmpty() {
		return dataset.Empty[Clustering]("no records")
	}

	out := t.Clone()
	var points [][]float64
	var rows []int
	for i := range out.Records {
		out.Records[i].Cluster = nil
		p, ok := featureVector(out.Records[i])
		if !ok {
			continue
		}
		points = append(points, p)
		rows = append(rows, i)
	}
	if len(points) < km.K {
		return dataset.Fail[Clustering](fmt.Errorf("kmeans: %w: %d rows, k=%d", ErrTooFewRows, len(points), km.K))
	}

	rng := rand.New(rand.NewPCG(km.Seed, km.Seed^0x9e3779b97f4a7c15))
	centroids := seedCentroids(points, km.K, rng)
	labels := make([]int, len(points))

	iterations, converged := 0, false
	for iterations < km.MaxIterations {
		iterations++
		assign(points, centroids, labels)
		next := recompute(points, labels, centroids)

		shift := 0.0
		for c := range centroids {
			d := floats.Distance(centroids[c], next[c], 2)
			shift += d * d
		}
		centroids = next
		if shift <= km.Tolerance {
			converged = true
			break
		}
	}
	assign(points, centroids, labels)
	centroids = recompute(points, labels, centroids)

	order := relabelBySEP(centroids)
	sizes := make([]int, km.K)
	for i, label := range labels {
		l := order[label]
		sizes[l]++
		out.Records[rows[i]].Cluster = dataset.Int(l)
	}
	ordered := make([][]float64, km.K)
	for old, l := range order {
		ordered[l] = centroids[old]
	}

	return dataset.Ok(Clustering{
		Table:      out,
		K:          km.K,
		Features:   ClusterFeatures,
		Centroids:  ordered,
		Sizes:      sizes,
		Iterations: iterations,
		Converged:  converged,
		Labeled:    len(points),
		Unlabeled:  out.Len() - len(points),
	})
}

func featureVector(r dataset.Record) ([]float64, bool) {
	p := make([]float64, len(ClusterFeatures))
	for i, c := range ClusterFeatures {
		v, ok := r.Value(c)
		if !ok || math.IsNaN(v) {
			return nil, false
		}
		p[i] = v
	}
	return p, true
}

// seedCentroids picks k initial centroids with k-means++ weighting.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), points[rng.IntN(len(points))]...))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			dist[i] = math.Inf(1)
			for _, c := range centroids {
				d := floats.Distance(p, c, 2)
				dist[i] = math.Min(dist[i], d*d)
			}
			total += dist[i]
		}

		pick := rng.IntN(len(points))
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target <= 0 {
					pick = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), points[pick]...))
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := floats.Distance(p, centroid, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func assign(points, centroids [][]float64, labels []int) {
	for i, p := range points {
		labels[i], _ = nearest(p, centroids)
	}
}

// recompute returns the mean of each cluster. An empty cluster first takes over the point
// that lies farthest from its own centroid, so the donor's mean excludes that point.
func recompute(points [][]float64, labels []int, current [][]float64) [][]float64 {
	k, dims := len(current), len(current[0])
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	for c := range counts {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] <= 1 {
				continue
			}
			if d := floats.Distance(p, current[labels[i]], 2); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue
		}
		counts[labels[far]]--
		labels[far] = c
		counts[c] = 1
	}

	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, p := range points {
		floats.Add(sums[labels[i]], p)
	}
	for c := range sums {
		if counts[c] == 0 {
			copy(sums[c], current[c])
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
	}
	return sums
}

// relabelBySEP maps raw cluster indexes to labels ordered by ascending SEP centroid.
func relabelBySEP(centroids [][]float64) []int {
	idx := make([]int, len(centroids))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return centroids[idx[a]][0] < centroids[idx[b]][0] })

	order := make([]int, len(centroids))
	for label, old := range idx {
		order[old] = label
	}
	return order
}
