// Package cvload reads dataset images through OpenCV (cgo).
package cvload

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Loader implements dataset.ImageLoader with cv::imread, converting to
// grayscale on decode.
type Loader struct{}

// Load reads path as 8-bit grayscale.
func (Loader) Load(path string) (*image.Gray, error) {
	m := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer m.Close()
	if m.Empty() {
		return nil, fmt.Errorf("cvload: cannot decode %s", path)
	}

	img := image.NewGray(image.Rect(0, 0, m.Cols(), m.Rows()))
	copy(img.Pix, m.ToBytes())
	return img, nil
}
