// Package raster turns labeled point sequences into binary mask layers.
//
// A Layer is one mask channel. Drawing only ever sets pixels to 1, so shapes
// drawn onto the same layer combine as a logical OR and the order in which
// they are drawn does not matter.
package raster

import (
	"fmt"
	"image"
)

// Kind is the geometric kind of an annotated shape.
type Kind uint8

const (
	// Polygon is a closed contour, filled.
	Polygon Kind = iota
	// Polyline is an open path, stroked.
	Polyline
)

func (k Kind) String() string {
	switch k {
	case Polygon:
		return "polygon"
	case Polyline:
		return "polyline"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps an element name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "polygon":
		return Polygon, true
	case "polyline":
		return Polyline, true
	}
	return 0, false
}

// Layer is a single-channel binary raster. Pix is row-major with one byte
// per pixel holding 0 or 1.
type Layer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewLayer returns a zeroed layer of the given size.
func NewLayer(width, height int) *Layer {
	return &Layer{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the value at (x, y), or 0 outside the layer.
func (l *Layer) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return 0
	}
	return l.Pix[y*l.Width+x]
}

// Set marks (x, y). Coordinates outside the layer are ignored.
func (l *Layer) Set(x, y int) {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return
	}
	l.Pix[y*l.Width+x] = 1
}

// Count returns the number of set pixels.
func (l *Layer) Count() (n int) {
	for _, v := range l.Pix {
		if v != 0 {
			n++
		}
	}
	return
}

// Equal reports whether two layers have the same size and pixels.
func (l *Layer) Equal(o *Layer) bool {
	if l.Width != o.Width || l.Height != o.Height {
		return false
	}
	for i := range l.Pix {
		if l.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// span sets pixels x0..x1 inclusive on row y, clipped to the layer.
func (l *Layer) span(x0, x1, y int) {
	if y < 0 || y >= l.Height {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > l.Width-1 {
		x1 = l.Width - 1
	}
	row := l.Pix[y*l.Width : (y+1)*l.Width]
	for x := x0; x <= x1; x++ {
		row[x] = 1
	}
}

// Rasterizer draws shapes onto a layer. Implementations must only set
// pixels, never clear them, and must ignore pixels outside the layer.
type Rasterizer interface {
	// Fill fills the closed contour through pts, boundary included.
	Fill(l *Layer, pts []image.Point) error
	// Stroke draws the open path through pts with the given width in pixels.
	Stroke(l *Layer, pts []image.Point, thickness int) error
}

// Draw dispatches on kind: polygons are filled, polylines stroked.
func Draw(r Rasterizer, l *Layer, kind Kind, pts []image.Point, thickness int) error {
	switch kind {
	case Polygon:
		return r.Fill(l, pts)
	case Polyline:
		return r.Stroke(l, pts, thickness)
	}
	return fmt.Errorf("raster: unsupported shape kind %v", kind)
}
