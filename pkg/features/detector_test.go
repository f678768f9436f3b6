package features

import (
	"image"
	"image/color"
	"math/rand"
	"testing"
)

// createNoiseImage creates a deterministic high-texture test image.
func createNoiseImage(width, height int, seed int64) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(rng.Intn(256))
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// createFlatImage creates an image with no texture at all.
func createFlatImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{128, 128, 128, 255})
		}
	}
	return img
}

func TestNew(t *testing.T) {
	detector := New()
	if detector == nil {
		t.Fatal("New() returned nil")
	}

	if detector.config.MaxFeatures != 500 {
		t.Errorf("Expected default MaxFeatures 500, got %d", detector.config.MaxFeatures)
	}
}

func TestDetectFindsFeatures(t *testing.T) {
	detector := New()
	img := createNoiseImage(128, 128, 7)

	feats, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(feats) == 0 {
		t.Fatal("Expected features on a textured image")
	}

	for _, f := range feats {
		if f.Point.X < 0 || f.Point.X >= 128 || f.Point.Y < 0 || f.Point.Y >= 128 {
			t.Errorf("Feature at (%f,%f) outside image bounds", f.Point.X, f.Point.Y)
		}
		if len(f.Descriptor) == 0 {
			t.Error("Feature has empty descriptor")
		}
	}
}

func TestDetectDeterministic(t *testing.T) {
	detector := New()
	img := createNoiseImage(96, 96, 11)

	first, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	second, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("Detection not deterministic: %d vs %d features", len(first), len(second))
	}

	for i := range first {
		if first[i].Point != second[i].Point {
			t.Fatalf("Feature %d moved between runs: %v vs %v", i, first[i].Point, second[i].Point)
		}
		for j := range first[i].Descriptor {
			if first[i].Descriptor[j] != second[i].Descriptor[j] {
				t.Fatalf("Feature %d descriptor differs between runs", i)
			}
		}
	}
}

func TestDetectFlatImage(t *testing.T) {
	detector := New()
	img := createFlatImage(64, 64)

	feats, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(feats) != 0 {
		t.Errorf("Expected no features on a flat image, got %d", len(feats))
	}
}

func TestDetectRespectsMaxFeatures(t *testing.T) {
	cfg := DefaultDetectionConfig()
	cfg.MaxFeatures = 5
	cfg.PyramidLevels = 1
	detector := NewWithConfig(cfg)

	feats, err := detector.Detect(createNoiseImage(128, 128, 3))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(feats) > 5 {
		t.Errorf("Expected at most 5 features, got %d", len(feats))
	}
}

func TestDetectTinyImage(t *testing.T) {
	detector := New()

	feats, err := detector.Detect(createNoiseImage(8, 8, 1))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(feats) != 0 {
		t.Errorf("Expected no features on an image smaller than a patch, got %d", len(feats))
	}
}

func BenchmarkDetect(b *testing.B) {
	detector := New()
	img := createNoiseImage(256, 256, 42)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		detector.Detect(img)
	}
}
