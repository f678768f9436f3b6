// Package locator sequences feature matching, homography estimation and
// region reconstruction into a single pipeline and shapes the outcome into a
// structured report.
package locator

import (
	"errors"
	"fmt"
	"image"

	"thumblocate/pkg/geometry"
	"thumblocate/pkg/homography"
	"thumblocate/pkg/match"
	"thumblocate/pkg/reconstruct"
)

// Outcome labels how a thumbnail/master pair was resolved. Every processed
// pair yields exactly one outcome.
type Outcome string

// Pipeline outcomes.
const (
	// OutcomeLocated means the thumbnail was located and the region
	// reconstructed.
	OutcomeLocated Outcome = "located"
	// OutcomeInsufficientMatches means fewer correspondences survived
	// filtering than a homography needs; reconstruction was skipped.
	OutcomeInsufficientMatches Outcome = "insufficient_matches"
	// OutcomeDegenerateGeometry means enough raw matches existed but they did
	// not agree on a consistent transform, or the projected region collapsed.
	OutcomeDegenerateGeometry Outcome = "degenerate_geometry"
)

// Dimensions holds image dimensions in pixels.
type Dimensions struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// ImageRef identifies one of the input images.
type ImageRef struct {
	Source     string     `json:"source"`
	Dimensions Dimensions `json:"dimensions"`
}

// BoundingBox is the crop rectangle of the thumbnail within the master image.
type BoundingBox struct {
	Height int `json:"height"`
	Width  int `json:"width"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// Report is the structured record produced for every processed pair.
// Geometry fields are only present for located outcomes.
type Report struct {
	Master               ImageRef     `json:"master"`
	Thumbnail            ImageRef     `json:"thumbnail"`
	Outcome              Outcome      `json:"outcome"`
	MatchCount           int          `json:"match_count"`
	InlierCount          int          `json:"inlier_count,omitempty"`
	BoundingBox          *BoundingBox `json:"bounding_box,omitempty"`
	RotationDegrees      int          `json:"rotation_degrees"`
	RotationUnclassified bool         `json:"rotation_unclassified,omitempty"`
}

// Input is an image together with the identifier it was loaded from.
type Input struct {
	Source string
	Image  image.Image
}

// Result bundles the report with the intermediate pipeline products needed
// for saving the reconstruction or visualizing the match.
type Result struct {
	Report         Report
	Matches        []match.Correspondence
	InlierMask     []bool
	Homography     homography.Matrix
	Reconstruction *reconstruct.Result
}

// Locator runs the full locate pipeline. It owns no mutable state; every
// invocation is independent and the same Locator may be used concurrently.
type Locator struct {
	matcher       *match.Matcher
	estimator     *homography.Estimator
	reconstructor *reconstruct.Reconstructor
}

// New creates a Locator with default components.
func New() *Locator {
	return &Locator{
		matcher:       match.New(),
		estimator:     homography.New(),
		reconstructor: reconstruct.New(),
	}
}

// NewWithComponents creates a Locator from pre-configured components.
func NewWithComponents(matcher *match.Matcher, estimator *homography.Estimator, reconstructor *reconstruct.Reconstructor) *Locator {
	return &Locator{
		matcher:       matcher,
		estimator:     estimator,
		reconstructor: reconstructor,
	}
}

// Locate finds where the thumbnail originated within the master image.
// Insufficient matches and degenerate geometry are reported as outcomes in
// the returned report; the error return is reserved for component failures.
func (l *Locator) Locate(thumbnail, master Input) (Result, error) {
	report := Report{
		Master: ImageRef{
			Source:     master.Source,
			Dimensions: dimensionsOf(master.Image),
		},
		Thumbnail: ImageRef{
			Source:     thumbnail.Source,
			Dimensions: dimensionsOf(thumbnail.Image),
		},
	}

	matches, err := l.matcher.MatchImages(thumbnail.Image, master.Image)
	if err != nil {
		return Result{}, fmt.Errorf("matching failed: %w", err)
	}
	report.MatchCount = len(matches)

	if len(matches) < homography.MinCorrespondences {
		report.Outcome = OutcomeInsufficientMatches
		return Result{Report: report, Matches: matches}, nil
	}

	src := make([]geometry.Point2D, len(matches))
	dst := make([]geometry.Point2D, len(matches))
	for i, m := range matches {
		src[i] = m.Template
		dst[i] = m.Source
	}

	h, mask, err := l.estimator.Estimate(src, dst)
	if err != nil {
		if errors.Is(err, homography.ErrDegenerateGeometry) {
			report.Outcome = OutcomeDegenerateGeometry
			return Result{Report: report, Matches: matches, InlierMask: mask}, nil
		}
		return Result{}, fmt.Errorf("homography estimation failed: %w", err)
	}

	rec, err := l.reconstructor.Reconstruct(thumbnail.Image, master.Image, h)
	if err != nil {
		if errors.Is(err, reconstruct.ErrEmptyRegion) || errors.Is(err, reconstruct.ErrUnstableProjection) {
			report.Outcome = OutcomeDegenerateGeometry
			return Result{Report: report, Matches: matches, InlierMask: mask, Homography: h}, nil
		}
		return Result{}, fmt.Errorf("reconstruction failed: %w", err)
	}

	report.Outcome = OutcomeLocated
	report.InlierCount = countTrue(mask)
	report.BoundingBox = &BoundingBox{
		Height: rec.Box.Height,
		Width:  rec.Box.Width,
		X:      rec.Box.X,
		Y:      rec.Box.Y,
	}
	report.RotationDegrees = int(rec.Rotation)
	report.RotationUnclassified = !rec.Classified

	return Result{
		Report:         report,
		Matches:        matches,
		InlierMask:     mask,
		Homography:     h,
		Reconstruction: &rec,
	}, nil
}

func dimensionsOf(img image.Image) Dimensions {
	b := img.Bounds()
	return Dimensions{Height: b.Dy(), Width: b.Dx()}
}

func countTrue(mask []bool) int {
	n := 0
	for _, v := range mask {
		if v {
			n++
		}
	}
	return n
}
