// Package cvraster draws mask shapes with OpenCV's fillPoly and polylines,
// producing the same masks as annotation tooling built on cv2. It needs cgo
// and OpenCV; the raster package itself stays pure Go.
package cvraster

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/model-collapse/ctseg/raster"
)

// OpenCV implements raster.Rasterizer.
type OpenCV struct{}

// gocv orders scalars as B, G, R, A; a single-channel Mat reads the first.
var cvOne = color.RGBA{B: 1}

// Fill implements raster.Rasterizer.
func (OpenCV) Fill(l *raster.Layer, pts []image.Point) error {
	if len(pts) == 0 {
		return nil
	}
	return withMat(l, func(m *gocv.Mat) {
		gocv.FillPoly(m, [][]image.Point{pts}, cvOne)
	})
}

// Stroke implements raster.Rasterizer.
func (OpenCV) Stroke(l *raster.Layer, pts []image.Point, thickness int) error {
	if len(pts) == 0 {
		return nil
	}
	if thickness < 1 {
		thickness = 1
	}
	return withMat(l, func(m *gocv.Mat) {
		gocv.Polylines(m, [][]image.Point{pts}, false, cvOne, thickness)
	})
}

func withMat(l *raster.Layer, draw func(m *gocv.Mat)) error {
	if len(l.Pix) == 0 {
		return nil
	}

	m, err := gocv.NewMatFromBytes(l.Height, l.Width, gocv.MatTypeCV8U, l.Pix)
	if err != nil {
		return err
	}
	defer m.Close()

	draw(&m)
	copy(l.Pix, m.ToBytes())
	return nil
}
