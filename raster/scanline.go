package raster

import (
	"image"
	"math"
	"sort"
)

// Scanline is the pure-Go rasterizer. Polygons are filled with the even-odd
// rule sampled at integer pixel positions, then their edges are traced so
// the boundary is always covered. Polylines are traced with a round brush.
type Scanline struct{}

// Fill implements Rasterizer.
func (Scanline) Fill(l *Layer, pts []image.Point) error {
	n := len(pts)
	if n == 0 || len(l.Pix) == 0 {
		return nil
	}

	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	if minY < 0 {
		minY = 0
	}
	if maxY > l.Height-1 {
		maxY = l.Height - 1
	}

	xs := make([]float64, 0, n)
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		for i := 0; i < n; i++ {
			p0, p1 := pts[i], pts[(i+1)%n]
			if p0.Y == p1.Y {
				continue
			}
			if p0.Y > p1.Y {
				p0, p1 = p1, p0
			}
			// half-open in y so a vertex shared by two edges is counted once
			if y < p0.Y || y >= p1.Y {
				continue
			}
			x := float64(p0.X) + float64(y-p0.Y)*float64(p1.X-p0.X)/float64(p1.Y-p0.Y)
			xs = append(xs, x)
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			l.span(int(math.Ceil(xs[i])), int(math.Floor(xs[i+1])), y)
		}
	}

	b := newBrush(1)
	for i := 0; i < n; i++ {
		b.line(l, pts[i], pts[(i+1)%n])
	}
	return nil
}

// Stroke implements Rasterizer. A thickness below 1 is treated as 1.
func (Scanline) Stroke(l *Layer, pts []image.Point, thickness int) error {
	if len(pts) == 0 || len(l.Pix) == 0 {
		return nil
	}

	b := newBrush(thickness)
	if len(pts) == 1 {
		b.stamp(l, pts[0].X, pts[0].Y)
		return nil
	}
	for i := 0; i+1 < len(pts); i++ {
		b.line(l, pts[i], pts[i+1])
	}
	return nil
}

// brush is the set of pixel offsets stamped at every point of a line.
type brush []image.Point

// newBrush builds a disc whose cross-section along either axis is exactly
// thickness pixels. Even widths are centered half a pixel down-right.
func newBrush(thickness int) brush {
	if thickness < 1 {
		thickness = 1
	}
	lo := (thickness - 1) / 2
	hi := thickness - 1 - lo
	c := float64(hi-lo) / 2
	r2 := float64(thickness*thickness) / 4

	var b brush
	for dy := -lo; dy <= hi; dy++ {
		for dx := -lo; dx <= hi; dx++ {
			fx, fy := float64(dx)-c, float64(dy)-c
			if fx*fx+fy*fy <= r2 {
				b = append(b, image.Point{X: dx, Y: dy})
			}
		}
	}
	return b
}

func (b brush) stamp(l *Layer, x, y int) {
	for _, o := range b {
		l.Set(x+o.X, y+o.Y)
	}
}

// line walks p0..p1 with Bresenham's algorithm, both endpoints included.
func (b brush) line(l *Layer, p0, p1 image.Point) {
	dx := absInt(p1.X - p0.X)
	dy := -absInt(p1.Y - p0.Y)
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}

	err := dx + dy
	x, y := p0.X, p0.Y
	for {
		b.stamp(l, x, y)
		if x == p1.X && y == p1.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
