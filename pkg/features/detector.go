// Package features detects salient keypoints and their descriptors in images.
//
// The Detector interface is the pluggable feature-detection capability used by
// the matcher: any implementation that returns deterministic keypoint and
// descriptor pairs for a given image and configuration satisfies the contract.
// HarrisDetector is the default pure-Go implementation.
package features

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"thumblocate/pkg/geometry"
)

// Feature is a keypoint location in image pixel coordinates together with a
// descriptor vector characterizing the local appearance around it.
type Feature struct {
	Point      geometry.Point2D
	Descriptor []float32
}

// Detector extracts features from an image.
type Detector interface {
	Detect(img image.Image) ([]Feature, error)
}

// DetectionConfig holds configuration for the default Harris detector.
type DetectionConfig struct {
	MaxFeatures       int     // cap per pyramid level
	PyramidLevels     int     // number of half-resolution levels to scan
	HarrisK           float64 // corner response constant
	ResponseThreshold float64 // fraction of the strongest response per level
	PatchRadius       int     // descriptor patch radius in pixels
}

// DefaultDetectionConfig returns the detector defaults.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		MaxFeatures:       500,
		PyramidLevels:     4,
		HarrisK:           0.04,
		ResponseThreshold: 0.01,
		PatchRadius:       4,
	}
}

// HarrisDetector finds corner-like keypoints on an image pyramid and describes
// each with a normalized intensity patch. It is deterministic for a fixed
// image and configuration.
type HarrisDetector struct {
	config DetectionConfig
}

// New creates a HarrisDetector with default configuration.
func New() *HarrisDetector {
	return &HarrisDetector{config: DefaultDetectionConfig()}
}

// NewWithConfig creates a HarrisDetector with custom configuration.
func NewWithConfig(config DetectionConfig) *HarrisDetector {
	return &HarrisDetector{config: config}
}

// Detect returns corner features across all pyramid levels. Keypoint
// coordinates are reported in the coordinate space of the original image.
func (d *HarrisDetector) Detect(img image.Image) ([]Feature, error) {
	bounds := img.Bounds()
	var feats []Feature

	for level := 0; level < d.config.PyramidLevels; level++ {
		scale := 1 << level
		w := bounds.Dx() / scale
		h := bounds.Dy() / scale
		if w < 4*d.config.PatchRadius || h < 4*d.config.PatchRadius {
			break
		}

		var lvl *image.NRGBA
		if level == 0 {
			lvl = imaging.Clone(img)
		} else {
			lvl = imaging.Resize(img, w, h, imaging.Lanczos)
		}

		gray := luminance(lvl)
		corners := d.harrisCorners(gray, w, h)

		for _, c := range corners {
			desc, ok := patchDescriptor(gray, w, h, c.x, c.y, d.config.PatchRadius)
			if !ok {
				continue
			}
			feats = append(feats, Feature{
				Point:      geometry.NewPoint2D(float64(c.x*scale), float64(c.y*scale)),
				Descriptor: desc,
			})
		}
	}

	return feats, nil
}

type corner struct {
	x, y     int
	response float64
}

// harrisCorners computes the Harris corner response over a grayscale level and
// returns the strongest non-maximum-suppressed corners.
func (d *HarrisDetector) harrisCorners(gray []float64, w, h int) []corner {
	if w < 3 || h < 3 {
		return nil
	}

	// Image gradients by central differences.
	ix := make([]float64, w*h)
	iy := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			ix[i] = (gray[i+1] - gray[i-1]) / 2
			iy[i] = (gray[i+w] - gray[i-w]) / 2
		}
	}

	// Corner response from 3x3 windowed gradient products.
	resp := make([]float64, w*h)
	maxResp := 0.0
	for y := 2; y < h-2; y++ {
		for x := 2; x < w-2; x++ {
			var sxx, syy, sxy float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					i := (y+dy)*w + (x + dx)
					sxx += ix[i] * ix[i]
					syy += iy[i] * iy[i]
					sxy += ix[i] * iy[i]
				}
			}
			det := sxx*syy - sxy*sxy
			trace := sxx + syy
			r := det - d.config.HarrisK*trace*trace
			resp[y*w+x] = r
			if r > maxResp {
				maxResp = r
			}
		}
	}
	if maxResp <= 0 {
		return nil
	}

	// Threshold relative to the strongest response, then 3x3 non-maximum
	// suppression.
	threshold := d.config.ResponseThreshold * maxResp
	var corners []corner
	for y := 2; y < h-2; y++ {
		for x := 2; x < w-2; x++ {
			r := resp[y*w+x]
			if r < threshold {
				continue
			}
			suppressed := false
			for dy := -1; dy <= 1 && !suppressed; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					n := resp[(y+dy)*w+(x+dx)]
					if n > r || (n == r && (dy < 0 || (dy == 0 && dx < 0))) {
						suppressed = true
						break
					}
				}
			}
			if !suppressed {
				corners = append(corners, corner{x: x, y: y, response: r})
			}
		}
	}

	sort.Slice(corners, func(i, j int) bool {
		if corners[i].response != corners[j].response {
			return corners[i].response > corners[j].response
		}
		if corners[i].y != corners[j].y {
			return corners[i].y < corners[j].y
		}
		return corners[i].x < corners[j].x
	})

	if d.config.MaxFeatures > 0 && len(corners) > d.config.MaxFeatures {
		corners = corners[:d.config.MaxFeatures]
	}
	return corners
}

// patchDescriptor samples a square intensity patch around a keypoint and
// normalizes it to zero mean and unit length. Flat patches carry no signal
// and are rejected.
func patchDescriptor(gray []float64, w, h, cx, cy, radius int) ([]float32, bool) {
	if cx < radius || cy < radius || cx >= w-radius || cy >= h-radius {
		return nil, false
	}

	side := 2*radius + 1
	patch := make([]float64, 0, side*side)
	mean := 0.0
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			v := gray[(cy+dy)*w+(cx+dx)]
			patch = append(patch, v)
			mean += v
		}
	}
	mean /= float64(len(patch))

	norm := 0.0
	for i := range patch {
		patch[i] -= mean
		norm += patch[i] * patch[i]
	}
	norm = math.Sqrt(norm)
	if norm < 1e-6 {
		return nil, false
	}

	desc := make([]float32, len(patch))
	for i := range patch {
		desc[i] = float32(patch[i] / norm)
	}
	return desc, true
}

// luminance converts an NRGBA image to a flat grayscale buffer in [0,1].
func luminance(img *image.NRGBA) []float64 {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			i := row + x*4
			r := float64(img.Pix[i])
			g := float64(img.Pix[i+1])
			b := float64(img.Pix[i+2])
			gray[y*w+x] = (0.299*r + 0.587*g + 0.114*b) / 255.0
		}
	}
	return gray
}
