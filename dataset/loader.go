package dataset

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for StdLoader
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// ImageLoader reads an image file as 8-bit grayscale.
type ImageLoader interface {
	Load(path string) (*image.Gray, error)
}

// StdLoader decodes with the Go image packages (PNG, JPEG, TIFF, BMP)
// and converts to grayscale using the same luma weights as OpenCV.
type StdLoader struct{}

// Load implements ImageLoader.
func (StdLoader) Load(path string) (*image.Gray, error) {
	src, err := DecodeImage(path)
	if err != nil {
		return nil, err
	}
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g, nil
	}

	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(g, g.Bounds(), src, b.Min, xdraw.Src)
	return g, nil
}

// DecodeImage decodes the file at path in its native color model.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: decode %s: %w", path, err)
	}
	return img, nil
}
