package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/llgcode/draw2d/draw2dimg"

	"github.com/model-collapse/ctseg/annotation"
	"github.com/model-collapse/ctseg/raster"
)

func MinInt(a, b int) int {
	if a > b {
		return b
	}

	return a
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}

// extractBoundingBox returns the smallest rectangle holding every point,
// grown by pad on each side. Max is exclusive.
func extractBoundingBox(pts []image.Point, pad int) (r image.Rectangle) {
	r.Min = image.Point{X: math.MaxInt32, Y: math.MaxInt32}
	r.Max = image.Point{X: math.MinInt32, Y: math.MinInt32}

	for _, p := range pts {
		r.Min.X = MinInt(r.Min.X, p.X)
		r.Min.Y = MinInt(r.Min.Y, p.Y)

		r.Max.X = MaxInt(r.Max.X, p.X)
		r.Max.Y = MaxInt(r.Max.Y, p.Y)
	}

	return image.Rect(r.Min.X-pad, r.Min.Y-pad, r.Max.X+pad+1, r.Max.Y+pad+1)
}

// shapeAlpha draws s into an alpha mask covering bnd: filled for polygons,
// stroked with thickness for polylines.
func shapeAlpha(s annotation.Shape, bnd image.Rectangle, thickness int) *image.RGBA {
	mask := image.NewRGBA(image.Rect(0, 0, bnd.Dx(), bnd.Dy()))
	gc := draw2dimg.NewGraphicContext(mask)
	opaque := color.RGBA{0, 0, 0, 255}

	// pixel centers sit at +0.5 in draw2d's coordinate space
	at := func(p image.Point) (float64, float64) {
		return float64(p.X-bnd.Min.X) + 0.5, float64(p.Y-bnd.Min.Y) + 0.5
	}

	if s.Kind == raster.Polygon {
		gc.SetFillColor(opaque)
		gc.SetStrokeColor(opaque)
		gc.SetLineWidth(1)
		last := s.Points[len(s.Points)-1]
		gc.MoveTo(at(last))
		for _, p := range s.Points {
			gc.LineTo(at(p))
		}
		gc.Close()
		gc.FillStroke()
		return mask
	}

	gc.SetStrokeColor(opaque)
	gc.SetLineWidth(float64(thickness))
	gc.MoveTo(at(s.Points[0]))
	for _, p := range s.Points[1:] {
		gc.LineTo(at(p))
	}
	gc.Stroke()
	return mask
}

// cutPatch copies the shape's bounding box, clipped to img, and takes alpha
// from the shape. The mask is only as large as the clipped box.
func cutPatch(img image.Image, s annotation.Shape, thickness int) (*image.RGBA, image.Rectangle, error) {
	if len(s.Points) == 0 {
		return nil, image.Rectangle{}, fmt.Errorf("shape has no points")
	}

	pad := 0
	if s.Kind == raster.Polyline {
		pad = thickness
	}
	full := extractBoundingBox(s.Points, pad)
	bnd := full.Intersect(img.Bounds())
	if bnd.Empty() {
		return nil, bnd, fmt.Errorf("boundary %v out of image scope %v", full, img.Bounds())
	}

	mask := shapeAlpha(s, bnd, thickness)
	patch := image.NewRGBA(image.Rect(0, 0, bnd.Dx(), bnd.Dy()))
	for y := 0; y < patch.Rect.Max.Y; y++ {
		for x := 0; x < patch.Rect.Max.X; x++ {
			r, g, b, _ := img.At(x+bnd.Min.X, y+bnd.Min.Y).RGBA()
			a := mask.RGBAAt(x, y).A
			patch.SetRGBA(x, y, color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), a})
		}
	}

	return patch, bnd, nil
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	fw, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer fw.Close()

	return png.Encode(fw, img)
}
