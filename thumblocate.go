// Package thumblocate locates where a cropped, scaled or rotated thumbnail
// originated within a larger master image and reconstructs the matching
// region at full master resolution.
//
// The pipeline establishes point correspondences between the thumbnail and
// the master via local feature matching, robustly estimates the projective
// transform (homography) mapping thumbnail space into master space despite
// outlier correspondences, and projects the thumbnail's corners through that
// transform to recover the crop rectangle, the quarter-turn orientation and
// the source pixels.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		"thumblocate"
//	)
//
//	func main() {
//		loc := thumblocate.New()
//
//		result, err := loc.LocateFiles("thumb.jpg", "master.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		report := result.Report
//		if report.Outcome == "located" {
//			box := report.BoundingBox
//			fmt.Printf("crop: %dx%d at (%d,%d), rotated %d°\n",
//				box.Width, box.Height, box.X, box.Y, report.RotationDegrees)
//		} else {
//			fmt.Printf("not located: %s (%d matches)\n", report.Outcome, report.MatchCount)
//		}
//	}
//
// The package consists of four pipeline stages:
//
// 1. Features (pkg/features): pluggable keypoint+descriptor detection
// 2. Match (pkg/match): k-nearest-neighbor matching with ratio-test filtering
// 3. Homography (pkg/homography): RANSAC estimation with inlier refit
// 4. Reconstruct (pkg/reconstruct): crop box, rotation class and pixel region
//
// Data flows strictly forward through the stages; each stage is a pure
// function over its inputs, so independent thumbnail/master pairs can be
// processed concurrently (see LocateBatch).
package thumblocate

import (
	"image"
	"sync"

	"thumblocate/pkg/features"
	"thumblocate/pkg/homography"
	"thumblocate/pkg/imageio"
	"thumblocate/pkg/locator"
	"thumblocate/pkg/match"
	"thumblocate/pkg/reconstruct"
)

// Version of the thumblocate library
const Version = "1.0.0"

// Locator provides a high-level interface for locating thumbnails within
// master images. It is safe for concurrent use.
type Locator struct {
	matcher  *match.Matcher
	pipeline *locator.Locator
}

// New creates a Locator with default configuration.
func New() *Locator {
	matcher := match.New()
	return &Locator{
		matcher:  matcher,
		pipeline: locator.NewWithComponents(matcher, homography.New(), reconstruct.New()),
	}
}

// NewWithConfig creates a Locator with custom per-component configuration.
func NewWithConfig(detectorConfig features.DetectionConfig, matchConfig match.Config, estimatorConfig homography.Config, reconstructConfig reconstruct.Config) *Locator {
	matcher := match.NewWithConfig(matchConfig)
	matcher.SetDetector(features.NewWithConfig(detectorConfig))

	return &Locator{
		matcher: matcher,
		pipeline: locator.NewWithComponents(
			matcher,
			homography.NewWithConfig(estimatorConfig),
			reconstruct.NewWithConfig(reconstructConfig),
		),
	}
}

// SetDetector replaces the feature detector used for matching.
func (l *Locator) SetDetector(detector features.Detector) {
	l.matcher.SetDetector(detector)
}

// LocateImages locates a thumbnail within a master image, both already
// decoded. The names are carried into the report for identification.
func (l *Locator) LocateImages(thumbnailName string, thumbnail image.Image, masterName string, master image.Image) (locator.Result, error) {
	return l.pipeline.Locate(
		locator.Input{Source: thumbnailName, Image: thumbnail},
		locator.Input{Source: masterName, Image: master},
	)
}

// LocateFiles loads both images from file paths or URLs and locates the
// thumbnail within the master.
func (l *Locator) LocateFiles(thumbnailPath, masterPath string) (locator.Result, error) {
	thumbnail, err := imageio.LoadSmart(thumbnailPath)
	if err != nil {
		return locator.Result{}, err
	}
	master, err := imageio.LoadSmart(masterPath)
	if err != nil {
		return locator.Result{}, err
	}
	return l.LocateImages(thumbnailPath, thumbnail, masterPath, master)
}

// BatchPair names one thumbnail/master unit of work for LocateBatch.
type BatchPair struct {
	Thumbnail string
	Master    string
}

// BatchItem is the outcome of one batch pair. Err is set when the pair could
// not be processed at all (for example a load failure); it never aborts the
// rest of the batch.
type BatchItem struct {
	Pair   BatchPair
	Result locator.Result
	Err    error
}

// LocateBatch processes independent pairs on a bounded worker pool. Results
// are returned in input order. workers below 1 runs sequentially.
func (l *Locator) LocateBatch(pairs []BatchPair, workers int) []BatchItem {
	if workers < 1 {
		workers = 1
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	items := make([]BatchItem, len(pairs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result, err := l.LocateFiles(pairs[i].Thumbnail, pairs[i].Master)
				items[i] = BatchItem{Pair: pairs[i], Result: result, Err: err}
			}
		}()
	}

	for i := range pairs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return items
}

// GetVersion returns the library version.
func GetVersion() string {
	return Version
}
