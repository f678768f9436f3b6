package homography

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"thumblocate/pkg/geometry"
)

// ErrDegenerateGeometry reports that the correspondences did not agree on a
// consistent, numerically stable homography. It is a normal pipeline outcome,
// not a programming error.
var ErrDegenerateGeometry = errors.New("homography: no consistent transform among correspondences")

// Config holds configuration for robust estimation.
type Config struct {
	Iterations      int     // RANSAC sampling iterations
	InlierThreshold float64 // max reprojection distance in pixels for an inlier
	Seed            int64   // seed for the sampling source; estimation is deterministic per seed
}

// DefaultConfig returns the estimator defaults.
func DefaultConfig() Config {
	return Config{
		Iterations:      2000,
		InlierThreshold: 5.0,
		Seed:            1,
	}
}

// Estimator computes a best-fit homography from noisy correspondences using
// RANSAC with a least-squares refit over the winning consensus set.
type Estimator struct {
	config Config
}

// New creates an Estimator with default configuration.
func New() *Estimator {
	return &Estimator{config: DefaultConfig()}
}

// NewWithConfig creates an Estimator with custom configuration.
func NewWithConfig(config Config) *Estimator {
	return &Estimator{config: config}
}

// Estimate computes the homography mapping src points onto dst points and an
// inlier mask aligned with the input order. It requires at least
// MinCorrespondences pairs and fails fast otherwise. When no consensus can be
// found, or the fitted matrix is numerically rank-deficient, it returns
// ErrDegenerateGeometry together with the (near-empty) mask.
func (e *Estimator) Estimate(src, dst []geometry.Point2D) (Matrix, []bool, error) {
	if len(src) != len(dst) {
		return Matrix{}, nil, fmt.Errorf("homography: point count mismatch: %d vs %d", len(src), len(dst))
	}
	n := len(src)
	if n < MinCorrespondences {
		return Matrix{}, nil, fmt.Errorf("homography: need at least %d correspondences, got %d", MinCorrespondences, n)
	}

	rng := rand.New(rand.NewSource(e.config.Seed))

	bestCount := 0
	var bestH Matrix
	for iter := 0; iter < e.config.Iterations; iter++ {
		idx := rng.Perm(n)[:MinCorrespondences]

		sampleSrc := make([]geometry.Point2D, MinCorrespondences)
		sampleDst := make([]geometry.Point2D, MinCorrespondences)
		for i, j := range idx {
			sampleSrc[i] = src[j]
			sampleDst[i] = dst[j]
		}

		h, err := fit(sampleSrc, sampleDst)
		if err != nil {
			continue
		}

		count := 0
		for i := range src {
			if reprojectionOK(h, src[i], dst[i], e.config.InlierThreshold) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestH = h
		}
	}

	// A consensus no larger than the minimal sample means the model explains
	// nothing beyond the points it was fit to.
	minConsensus := MinCorrespondences
	if n > MinCorrespondences {
		minConsensus = MinCorrespondences + 1
	}
	if bestCount < minConsensus {
		return Matrix{}, make([]bool, n), ErrDegenerateGeometry
	}

	// Refit with all inliers of the winning candidate for numerical stability.
	var inSrc, inDst []geometry.Point2D
	for i := range src {
		if reprojectionOK(bestH, src[i], dst[i], e.config.InlierThreshold) {
			inSrc = append(inSrc, src[i])
			inDst = append(inDst, dst[i])
		}
	}
	refined, err := fit(inSrc, inDst)
	if err != nil {
		refined = bestH
	}

	mask := make([]bool, n)
	if !wellConditioned(refined) {
		return Matrix{}, mask, ErrDegenerateGeometry
	}

	inliers := 0
	for i := range src {
		if reprojectionOK(refined, src[i], dst[i], e.config.InlierThreshold) {
			mask[i] = true
			inliers++
		}
	}
	if inliers < MinCorrespondences {
		return Matrix{}, mask, ErrDegenerateGeometry
	}

	return refined, mask, nil
}

func reprojectionOK(h Matrix, src, dst geometry.Point2D, threshold float64) bool {
	p := h.Apply(src)
	return p.IsFinite() && p.Distance(dst) < threshold
}

// fit solves for the homography by the normalized direct linear transform:
// both point sets are translated and scaled for conditioning, the 2n x 9
// system is solved by SVD, and the normalization is undone afterwards.
func fit(src, dst []geometry.Point2D) (Matrix, error) {
	n := len(src)
	if n < MinCorrespondences {
		return Matrix{}, fmt.Errorf("homography: need at least %d points", MinCorrespondences)
	}

	tSrc, normSrc, err := normalizePoints(src)
	if err != nil {
		return Matrix{}, err
	}
	tDst, normDst, err := normalizePoints(dst)
	if err != nil {
		return Matrix{}, err
	}

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := normSrc[i].X, normSrc[i].Y
		u, v := normDst[i].X, normDst[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return Matrix{}, errors.New("homography: SVD factorization failed")
	}
	var v mat.Dense
	svd.VTo(&v)

	// The null-space direction is the right singular vector of the smallest
	// singular value.
	h := Matrix{
		{v.At(0, 8), v.At(1, 8), v.At(2, 8)},
		{v.At(3, 8), v.At(4, 8), v.At(5, 8)},
		{v.At(6, 8), v.At(7, 8), v.At(8, 8)},
	}

	return tDst.inverse().Mul(h).Mul(tSrc.matrix()).normalized(), nil
}

// normalization is the similarity transform used to condition the DLT system.
type normalization struct {
	scale  float64
	cx, cy float64
}

func (t normalization) matrix() Matrix {
	return Matrix{
		{t.scale, 0, -t.scale * t.cx},
		{0, t.scale, -t.scale * t.cy},
		{0, 0, 1},
	}
}

func (t normalization) inverse() Matrix {
	return Matrix{
		{1 / t.scale, 0, t.cx},
		{0, 1 / t.scale, t.cy},
		{0, 0, 1},
	}
}

// normalizePoints translates the centroid to the origin and scales the mean
// distance to sqrt(2). Coincident point sets cannot be normalized.
func normalizePoints(pts []geometry.Point2D) (normalization, []geometry.Point2D, error) {
	n := float64(len(pts))
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= n
	cy /= n

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= n
	if meanDist < 1e-9 {
		return normalization{}, nil, errors.New("homography: coincident points")
	}

	t := normalization{scale: math.Sqrt2 / meanDist, cx: cx, cy: cy}
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point2D{X: t.scale * (p.X - cx), Y: t.scale * (p.Y - cy)}
	}
	return t, out, nil
}

// wellConditioned rejects matrices whose singular value spread indicates a
// rank-deficient (collapsing) transform.
func wellConditioned(h Matrix) bool {
	d := mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
	var svd mat.SVD
	if !svd.Factorize(d, mat.SVDFull) {
		return false
	}
	sv := svd.Values(nil)
	return sv[0] > 0 && sv[2]/sv[0] > 1e-8
}
