// Package match establishes point correspondences between two images by
// comparing feature descriptors.
package match

import (
	"image"
	"math"

	"thumblocate/pkg/features"
	"thumblocate/pkg/geometry"
)

// Correspondence pairs a keypoint in the template image with a keypoint in
// the source image that likely depicts the same physical feature.
type Correspondence struct {
	Template geometry.Point2D
	Source   geometry.Point2D
	Distance float64
}

// Config holds configuration for descriptor matching.
type Config struct {
	// RatioThreshold is the Lowe ratio test threshold: a match survives only
	// if its nearest-neighbor distance is below RatioThreshold times the
	// second-nearest distance.
	RatioThreshold float64
}

// DefaultConfig returns the matcher defaults.
func DefaultConfig() Config {
	return Config{RatioThreshold: 0.75}
}

// Matcher finds filtered correspondences between a template and a source
// image using brute-force k-nearest-neighbor descriptor search.
type Matcher struct {
	detector features.Detector
	config   Config
}

// New creates a Matcher with the default detector and configuration.
func New() *Matcher {
	return &Matcher{
		detector: features.New(),
		config:   DefaultConfig(),
	}
}

// NewWithConfig creates a Matcher with custom configuration.
func NewWithConfig(config Config) *Matcher {
	return &Matcher{
		detector: features.New(),
		config:   config,
	}
}

// SetDetector replaces the feature detector.
func (m *Matcher) SetDetector(detector features.Detector) {
	m.detector = detector
}

// MatchImages detects features in both images and returns the filtered
// correspondences. The result preserves template feature enumeration order
// and is empty when nothing survives the ratio test.
func (m *Matcher) MatchImages(template, source image.Image) ([]Correspondence, error) {
	templateFeats, err := m.detector.Detect(template)
	if err != nil {
		return nil, err
	}
	sourceFeats, err := m.detector.Detect(source)
	if err != nil {
		return nil, err
	}
	return m.MatchFeatures(templateFeats, sourceFeats), nil
}

// MatchFeatures matches pre-detected feature sets. For each template feature
// the two nearest source descriptors are found; the nearest is kept only if
// it passes the ratio test against the second-nearest.
func (m *Matcher) MatchFeatures(template, source []features.Feature) []Correspondence {
	if len(source) < 2 {
		return nil
	}

	var matches []Correspondence
	for _, t := range template {
		best, second := math.Inf(1), math.Inf(1)
		bestIdx := -1

		for i, s := range source {
			d := descriptorDistance(t.Descriptor, s.Descriptor)
			if d < best {
				second = best
				best = d
				bestIdx = i
			} else if d < second {
				second = d
			}
		}

		if bestIdx >= 0 && best < m.config.RatioThreshold*second {
			matches = append(matches, Correspondence{
				Template: t.Point,
				Source:   source[bestIdx].Point,
				Distance: best,
			})
		}
	}
	return matches
}

// descriptorDistance is the L2 distance between two descriptors. Length
// mismatches (features from incompatible detectors) compare as infinitely
// far apart.
func descriptorDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
