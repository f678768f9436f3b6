package visualize

import (
	"image"
	"image/color"
	"testing"

	"thumblocate/pkg/geometry"
	"thumblocate/pkg/homography"
	"thumblocate/pkg/locator"
	"thumblocate/pkg/match"
	"thumblocate/pkg/reconstruct"
)

func solidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRenderCanvasLayout(t *testing.T) {
	thumbnail := solidImage(100, 80, color.NRGBA{10, 10, 10, 255})
	master := solidImage(300, 200, color.NRGBA{20, 20, 20, 255})

	canvas := Render(thumbnail, master, locator.Result{})

	b := canvas.Bounds()
	if b.Dx() != 400 {
		t.Errorf("Canvas width = %d, want 400", b.Dx())
	}
	if b.Dy() != 200 {
		t.Errorf("Canvas height = %d, want 200", b.Dy())
	}

	// Left panel holds the thumbnail, right panel the master.
	if got := canvas.NRGBAAt(50, 40); got != (color.NRGBA{10, 10, 10, 255}) {
		t.Errorf("Thumbnail panel pixel = %+v", got)
	}
	if got := canvas.NRGBAAt(250, 100); got != (color.NRGBA{20, 20, 20, 255}) {
		t.Errorf("Master panel pixel = %+v", got)
	}
}

func TestRenderMatchMarkers(t *testing.T) {
	thumbnail := solidImage(100, 100, color.NRGBA{0, 0, 0, 255})
	master := solidImage(200, 200, color.NRGBA{0, 0, 0, 255})

	result := locator.Result{
		Matches: []match.Correspondence{
			{Template: geometry.NewPoint2D(20, 20), Source: geometry.NewPoint2D(50, 50)},
			{Template: geometry.NewPoint2D(80, 80), Source: geometry.NewPoint2D(150, 150)},
		},
		InlierMask: []bool{true, false},
	}

	canvas := Render(thumbnail, master, result)

	if got := canvas.NRGBAAt(20, 20); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("Inlier keypoint pixel = %+v, want green", got)
	}
	// Source-side markers sit offset by the thumbnail width.
	if got := canvas.NRGBAAt(150, 50); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("Inlier source keypoint pixel = %+v, want green", got)
	}
	if got := canvas.NRGBAAt(80, 80); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("Outlier keypoint pixel = %+v, want red", got)
	}
}

func TestRenderWithReconstruction(t *testing.T) {
	thumbnail := solidImage(100, 100, color.NRGBA{10, 10, 10, 255})
	master := solidImage(200, 100, color.NRGBA{20, 20, 20, 255})

	rec := reconstruct.Result{
		Image: solidImage(50, 50, color.NRGBA{30, 30, 30, 255}),
		Box:   geometry.Box{X: 50, Y: 25, Width: 50, Height: 50},
		Corners: [4]geometry.Point2D{
			{X: 50, Y: 25}, {X: 100, Y: 25}, {X: 100, Y: 75}, {X: 50, Y: 75},
		},
	}
	result := locator.Result{Homography: homography.Identity(), Reconstruction: &rec}

	canvas := Render(thumbnail, master, result)

	// The preview extends the canvas below the thumbnail.
	if b := canvas.Bounds(); b.Dy() != 150 {
		t.Errorf("Canvas height = %d, want 150", b.Dy())
	}
	if got := canvas.NRGBAAt(25, 125); got != (color.NRGBA{30, 30, 30, 255}) {
		t.Errorf("Preview pixel = %+v", got)
	}

	// The crop outline lands on the master half in box color.
	if got := canvas.NRGBAAt(100+75, 25); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("Outline pixel = %+v, want white", got)
	}
}
