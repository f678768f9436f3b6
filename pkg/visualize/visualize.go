// Package visualize renders a side-by-side view of a processed pair: the
// thumbnail and master adjacent to each other, correspondences drawn between
// them (inliers green, outliers red), the projected crop outline on the
// master and a preview of the reconstructed region under the thumbnail.
package visualize

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"thumblocate/pkg/geometry"
	"thumblocate/pkg/locator"
	"thumblocate/pkg/reconstruct"
)

var (
	inlierColor  = color.NRGBA{0, 255, 0, 255}
	outlierColor = color.NRGBA{255, 0, 0, 255}
	lineColor    = color.NRGBA{0, 192, 0, 255}
	boxColor     = color.NRGBA{255, 255, 255, 255}
)

// Render produces the match visualization for a pipeline result. It works
// for every outcome: non-located pairs simply have no crop outline or
// reconstruction preview.
func Render(thumbnail, master image.Image, result locator.Result) *image.NRGBA {
	tb := thumbnail.Bounds()
	mb := master.Bounds()
	tw, th := tb.Dx(), tb.Dy()
	mw, mh := mb.Dx(), mb.Dy()

	previewH := 0
	var preview image.Image
	if result.Reconstruction != nil {
		preview = reconstruct.FitWithin(result.Reconstruction.Image, th, tw)
		previewH = preview.Bounds().Dy()
	}

	canvas := imaging.New(tw+mw, max(th+previewH, mh), color.NRGBA{0, 0, 0, 255})
	canvas = imaging.Paste(canvas, thumbnail, image.Pt(0, 0))
	canvas = imaging.Paste(canvas, master, image.Pt(tw, 0))
	if preview != nil {
		canvas = imaging.Paste(canvas, preview, image.Pt(0, th))
	}

	if result.Reconstruction != nil {
		drawOutline(canvas, result.Reconstruction.Corners, tw)
	}

	for i, m := range result.Matches {
		x1, y1 := int(m.Template.X), int(m.Template.Y)
		x2, y2 := int(m.Source.X)+tw, int(m.Source.Y)
		if i < len(result.InlierMask) && result.InlierMask[i] {
			drawLine(canvas, x1, y1, x2, y2, lineColor)
			drawDot(canvas, x1, y1, inlierColor)
			drawDot(canvas, x2, y2, inlierColor)
		} else {
			drawDot(canvas, x1, y1, outlierColor)
			drawDot(canvas, x2, y2, outlierColor)
		}
	}

	return canvas
}

// drawOutline draws the projected crop polygon offset onto the master half.
func drawOutline(img *image.NRGBA, corners [4]geometry.Point2D, offsetX int) {
	for i := 0; i < 4; i++ {
		a := corners[i]
		b := corners[(i+1)%4]
		drawLine(img, int(a.X)+offsetX, int(a.Y), int(b.X)+offsetX, int(b.Y), boxColor)
	}
}

// drawDot fills a small disc marking a keypoint.
func drawDot(img *image.NRGBA, cx, cy int, c color.NRGBA) {
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			if dx*dx+dy*dy <= 4 {
				setPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawLine draws a line segment using Bresenham's algorithm.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		setPixel(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
		return
	}
	i := y*img.Stride + x*4
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
