// Package reconstruct recovers the crop rectangle, orientation and pixel
// region in a source image that a template (thumbnail) was derived from,
// given the homography mapping template space into source space.
package reconstruct

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"thumblocate/pkg/geometry"
	"thumblocate/pkg/homography"
)

var (
	// ErrEmptyRegion reports that the projected crop box, after clamping to
	// the source bounds, has no area left.
	ErrEmptyRegion = errors.New("reconstruct: projected region lies outside the source image")

	// ErrUnstableProjection reports that projecting the template corners
	// produced non-finite coordinates.
	ErrUnstableProjection = errors.New("reconstruct: corner projection is numerically unstable")
)

// Rotation is the coarse orientation of the template relative to the source,
// restricted to quarter turns.
type Rotation int

// Recognized rotation classes in degrees.
const (
	RotationNone Rotation = 0
	Rotation90   Rotation = 90
	Rotation180  Rotation = 180
	Rotation270  Rotation = 270
)

// Config holds configuration for region reconstruction.
type Config struct {
	// FitWithinTemplate downscales the reconstructed region so that it fits
	// within the template's dimensions, preserving aspect ratio. When false
	// the region is returned at full source resolution.
	FitWithinTemplate bool
}

// DefaultConfig returns the reconstructor defaults.
func DefaultConfig() Config {
	return Config{FitWithinTemplate: false}
}

// Result is the outcome of a successful reconstruction.
type Result struct {
	// Image holds the extracted pixels, rotation-normalized to the template's
	// orientation and optionally downscaled.
	Image image.Image
	// Box is the crop rectangle in source coordinates, clamped to the source
	// bounds.
	Box geometry.Box
	// Corners are the template's four corners (top-left, top-right,
	// bottom-right, bottom-left) projected into source coordinates.
	Corners [4]geometry.Point2D
	// Rotation is the detected quarter-turn class.
	Rotation Rotation
	// Classified is false when the projected corner ordering matched none of
	// the recognized rotation patterns; the region is then left unrotated and
	// the caller should surface the anomaly.
	Classified bool
}

// Reconstructor extracts and normalizes the source region under a homography.
type Reconstructor struct {
	config Config
}

// New creates a Reconstructor with default configuration.
func New() *Reconstructor {
	return &Reconstructor{config: DefaultConfig()}
}

// NewWithConfig creates a Reconstructor with custom configuration.
func NewWithConfig(config Config) *Reconstructor {
	return &Reconstructor{config: config}
}

// Reconstruct projects the template's corners through h, extracts the
// bounding region from the source and normalizes its orientation.
func (r *Reconstructor) Reconstruct(template, source image.Image, h homography.Matrix) (Result, error) {
	tb := template.Bounds()
	sb := source.Bounds()
	tw, th := tb.Dx(), tb.Dy()
	sw, sh := sb.Dx(), sb.Dy()

	corners := [4]geometry.Point2D{
		{X: 0, Y: 0},
		{X: float64(tw), Y: 0},
		{X: float64(tw), Y: float64(th)},
		{X: 0, Y: float64(th)},
	}

	var proj [4]geometry.Point2D
	for i, c := range corners {
		proj[i] = h.Apply(c)
		if !proj[i].IsFinite() {
			return Result{}, ErrUnstableProjection
		}
	}

	rotation, classified := classifyRotation(proj)

	x0 := int(math.Round(math.Min(math.Min(proj[0].X, proj[1].X), math.Min(proj[2].X, proj[3].X))))
	x1 := int(math.Round(math.Max(math.Max(proj[0].X, proj[1].X), math.Max(proj[2].X, proj[3].X))))
	y0 := int(math.Round(math.Min(math.Min(proj[0].Y, proj[1].Y), math.Min(proj[2].Y, proj[3].Y))))
	y1 := int(math.Round(math.Max(math.Max(proj[0].Y, proj[1].Y), math.Max(proj[2].Y, proj[3].Y))))

	// Clamp to the source bounds; projection may escape the image.
	x0 = max(x0, 0)
	y0 = max(y0, 0)
	x1 = min(x1, sw)
	y1 = min(y1, sh)

	box := geometry.Box{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
	if box.Empty() {
		return Result{}, ErrEmptyRegion
	}
	region := imaging.Crop(source, image.Rect(x0, y0, x1, y1).Add(sb.Min))

	var normalized image.Image
	switch rotation {
	case Rotation90:
		normalized = imaging.Rotate90(region)
	case Rotation180:
		normalized = imaging.Rotate180(region)
	case Rotation270:
		normalized = imaging.Rotate270(region)
	default:
		normalized = region
	}

	if r.config.FitWithinTemplate {
		normalized = FitWithin(normalized, th, tw)
	}

	return Result{
		Image:      normalized,
		Box:        box,
		Corners:    proj,
		Rotation:   rotation,
		Classified: classified,
	}, nil
}

// classifyRotation infers the quarter-turn class from the ordering of the
// projected corners. Each projected corner is assigned to the nearest corner
// of its own bounding box; a rotation by k quarter turns shows up as a
// consistent cyclic shift of that assignment. Orderings that are not a clean
// cyclic shift (sheared or strongly perspective transforms) are reported as
// unclassified rather than silently treated as upright.
func classifyRotation(proj [4]geometry.Point2D) (Rotation, bool) {
	xMin := math.Min(math.Min(proj[0].X, proj[1].X), math.Min(proj[2].X, proj[3].X))
	xMax := math.Max(math.Max(proj[0].X, proj[1].X), math.Max(proj[2].X, proj[3].X))
	yMin := math.Min(math.Min(proj[0].Y, proj[1].Y), math.Min(proj[2].Y, proj[3].Y))
	yMax := math.Max(math.Max(proj[0].Y, proj[1].Y), math.Max(proj[2].Y, proj[3].Y))

	boxCorners := [4]geometry.Point2D{
		{X: xMin, Y: yMin},
		{X: xMax, Y: yMin},
		{X: xMax, Y: yMax},
		{X: xMin, Y: yMax},
	}

	var assigned [4]int
	var taken [4]bool
	for i, p := range proj {
		best := 0
		bestDist := math.Inf(1)
		for j, c := range boxCorners {
			if d := p.Distance(c); d < bestDist {
				bestDist = d
				best = j
			}
		}
		if taken[best] {
			return RotationNone, false
		}
		taken[best] = true
		assigned[i] = best
	}

	shift := assigned[0]
	for i := 1; i < 4; i++ {
		if assigned[i] != (i+shift)%4 {
			return RotationNone, false
		}
	}

	switch shift {
	case 1:
		return Rotation90, true
	case 2:
		return Rotation180, true
	case 3:
		return Rotation270, true
	default:
		return RotationNone, true
	}
}

// FitWithin downscales an image so it fits within the given bounds while
// preserving aspect ratio. Images already within bounds are returned as-is.
// The scale is the tighter of the two axis ratios, so both output dimensions
// stay within bounds even when only one axis overflows.
func FitWithin(img image.Image, maxHeight, maxWidth int) image.Image {
	b := img.Bounds()
	ch, cw := b.Dy(), b.Dx()
	if ch <= maxHeight && cw <= maxWidth {
		return img
	}

	scale := math.Min(float64(maxHeight)/float64(ch), float64(maxWidth)/float64(cw))

	nw := int(math.Round(float64(cw) * scale))
	nh := int(math.Round(float64(ch) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}
