package homography

import (
	"errors"
	"math/rand"
	"testing"

	"thumblocate/pkg/geometry"
)

// syntheticPairs generates correspondences that follow truth exactly, plus
// the requested number of gross outliers.
func syntheticPairs(truth Matrix, inliers, outliers int, seed int64) (src, dst []geometry.Point2D, isOutlier []bool) {
	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < inliers; i++ {
		p := geometry.NewPoint2D(rng.Float64()*300, rng.Float64()*300)
		src = append(src, p)
		dst = append(dst, truth.Apply(p))
		isOutlier = append(isOutlier, false)
	}
	for i := 0; i < outliers; i++ {
		p := geometry.NewPoint2D(rng.Float64()*300, rng.Float64()*300)
		mapped := truth.Apply(p)
		src = append(src, p)
		dst = append(dst, geometry.NewPoint2D(mapped.X+150, mapped.Y+120))
		isOutlier = append(isOutlier, true)
	}
	return src, dst, isOutlier
}

func TestEstimateRecoversTransform(t *testing.T) {
	truth := Matrix{
		{1.1, 0.05, 20},
		{-0.03, 0.95, 10},
		{0.0001, -0.0002, 1},
	}
	src, dst, isOutlier := syntheticPairs(truth, 30, 6, 42)

	estimator := New()
	h, mask, err := estimator.Estimate(src, dst)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	if len(mask) != len(src) {
		t.Fatalf("Mask length %d does not match input length %d", len(mask), len(src))
	}

	for i := range src {
		if isOutlier[i] {
			if mask[i] {
				t.Errorf("Outlier %d classified as inlier", i)
			}
			continue
		}
		if !mask[i] {
			t.Errorf("Inlier %d classified as outlier", i)
		}
		if d := h.Apply(src[i]).Distance(dst[i]); d > 0.1 {
			t.Errorf("Inlier %d reprojection error %f exceeds tolerance", i, d)
		}
	}
}

func TestEstimateGeneralizes(t *testing.T) {
	// Correspondences far from the origin force a non-trivial conditioning
	// transform; the returned matrix must still act in original coordinates,
	// verified on points that were never part of the input.
	truth := Matrix{{1.3, -0.1, 500}, {0.2, 0.8, 900}, {0.00005, 0.0001, 1}}
	src, dst, _ := syntheticPairs(truth, 25, 0, 3)
	for i := range src {
		src[i].X += 700
		src[i].Y += 1100
		dst[i] = truth.Apply(src[i])
	}

	estimator := New()
	h, _, err := estimator.Estimate(src, dst)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	for _, p := range []geometry.Point2D{{X: 750, Y: 1150}, {X: 990, Y: 1390}, {X: 805, Y: 1275}} {
		if d := h.Apply(p).Distance(truth.Apply(p)); d > 0.1 {
			t.Errorf("Held-out point %v maps %f away from the true transform", p, d)
		}
	}
}

func TestEstimateMinimumFour(t *testing.T) {
	truth := Matrix{{1, 0, 25}, {0, 1, -13}, {0, 0, 1}}
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	dst := make([]geometry.Point2D, len(src))
	for i, p := range src {
		dst[i] = truth.Apply(p)
	}

	estimator := New()
	h, mask, err := estimator.Estimate(src, dst)
	if err != nil {
		t.Fatalf("Estimate failed with exactly 4 pairs: %v", err)
	}

	for i := range src {
		if !mask[i] {
			t.Errorf("Pair %d not an inlier", i)
		}
		if d := h.Apply(src[i]).Distance(dst[i]); d > 0.1 {
			t.Errorf("Pair %d reprojection error %f exceeds tolerance", i, d)
		}
	}
}

func TestEstimateFailsFastBelowMinimum(t *testing.T) {
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}
	dst := []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}

	estimator := New()
	_, _, err := estimator.Estimate(src, dst)
	if err == nil {
		t.Fatal("Expected an error with 3 correspondences")
	}
	if errors.Is(err, ErrDegenerateGeometry) {
		t.Error("Too-few-points must be a contract violation, not degenerate geometry")
	}
}

func TestEstimateLengthMismatch(t *testing.T) {
	src := make([]geometry.Point2D, 5)
	dst := make([]geometry.Point2D, 4)

	estimator := New()
	if _, _, err := estimator.Estimate(src, dst); err == nil {
		t.Fatal("Expected an error on mismatched point arrays")
	}
}

func TestEstimateDuplicatePointsDegenerate(t *testing.T) {
	// A single template point matched against many spread-out candidates
	// cannot constrain a homography.
	var src, dst []geometry.Point2D
	for i := 0; i < 6; i++ {
		src = append(src, geometry.NewPoint2D(50, 50))
		dst = append(dst, geometry.NewPoint2D(float64(i)*60, float64(i%2)*200))
	}

	estimator := New()
	_, mask, err := estimator.Estimate(src, dst)
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Fatalf("Expected ErrDegenerateGeometry, got %v", err)
	}

	for i, v := range mask {
		if v {
			t.Errorf("Degenerate estimate marked pair %d as inlier", i)
		}
	}
}

func TestEstimateDeterministicPerSeed(t *testing.T) {
	truth := Matrix{{0.9, 0.1, 40}, {-0.1, 1.1, 5}, {0, 0, 1}}
	src, dst, _ := syntheticPairs(truth, 20, 5, 9)

	estimator := New()
	h1, mask1, err1 := estimator.Estimate(src, dst)
	h2, mask2, err2 := estimator.Estimate(src, dst)

	if err1 != nil || err2 != nil {
		t.Fatalf("Estimate failed: %v / %v", err1, err2)
	}
	if h1 != h2 {
		t.Error("Repeated estimation with the same seed produced different matrices")
	}
	for i := range mask1 {
		if mask1[i] != mask2[i] {
			t.Fatalf("Repeated estimation produced different masks at %d", i)
		}
	}
}

func BenchmarkEstimate(b *testing.B) {
	truth := Matrix{{1.2, 0, 30}, {0, 1.2, 30}, {0, 0, 1}}
	src, dst, _ := syntheticPairs(truth, 100, 20, 7)

	estimator := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		estimator.Estimate(src, dst)
	}
}
