package annotation

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// MaxCoordinate bounds the magnitude of a parsed coordinate. Larger values
// cannot come from a real image and would make stroking unreasonably slow.
const MaxCoordinate = 1 << 24

// ErrMalformedPoints is wrapped by every ParsePoints failure.
var ErrMalformedPoints = errors.New("malformed points")

// ParsePoints parses "x1,y1;x2,y2;..." into pixel coordinates. Components may
// be integer or decimal literals and are truncated toward zero.
func ParsePoints(s string) ([]image.Point, error) {
	parts := strings.Split(s, ";")
	out := make([]image.Point, 0, len(parts))
	for i, part := range parts {
		xy := strings.Split(part, ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("%w: point %d %q: want x,y", ErrMalformedPoints, i, part)
		}
		x, err := parseCoordinate(xy[0])
		if err != nil {
			return nil, fmt.Errorf("%w: point %d x: %v", ErrMalformedPoints, i, err)
		}
		y, err := parseCoordinate(xy[1])
		if err != nil {
			return nil, fmt.Errorf("%w: point %d y: %v", ErrMalformedPoints, i, err)
		}
		out = append(out, image.Point{X: x, Y: y})
	}
	return out, nil
}

func parseCoordinate(s string) (int, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	if math.Abs(f) > MaxCoordinate {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return int(f), nil
}
