package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"gocv.io/x/gocv"
	xdraw "golang.org/x/image/draw"

	"github.com/model-collapse/ctseg/annotation"
	"github.com/model-collapse/ctseg/dataset"
	"github.com/model-collapse/ctseg/raster"
)

// overlay colors per channel, cycled when there are more labels
var palette = []color.RGBA{
	{255, 64, 64, 255},
	{64, 160, 255, 255},
	{255, 220, 0, 255},
	{64, 220, 64, 255},
	{220, 64, 255, 255},
}

const maskAlpha = 0.4

func renderPreview(ds *dataset.Dataset, e dataset.Entry, overlay bool) (img gocv.Mat, err error) {
	ann := e.Annotation
	path, err := ds.Resolve(ann.Name)
	if err != nil {
		return
	}

	img = gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return img, fmt.Errorf("cannot decode %s", path)
	}

	if overlay {
		for ch, l := range ann.Mask.Layers {
			blendMask(img, l, palette[ch%len(palette)], maskAlpha)
		}
		drawShapesOnImage(img, ann.Shapes, ds.Labels())
	}
	return
}

// blendMask tints the pixels of bk covered by l. bk is 8-bit BGR.
func blendMask(bk gocv.Mat, l *raster.Layer, c color.RGBA, alpha float32) {
	tint := [3]uint8{c.B, c.G, c.R}
	for y := 0; y < bk.Rows() && y < l.Height; y++ {
		for x := 0; x < bk.Cols() && x < l.Width; x++ {
			if l.At(x, y) == 0 {
				continue
			}
			for ch := 0; ch < 3; ch++ {
				val := float32(tint[ch])*alpha + float32(bk.GetUCharAt(y, x*3+ch))*(1-alpha)
				bk.SetUCharAt(y, x*3+ch, uint8(int(val)))
			}
		}
	}
}

func drawShapesOnImage(img gocv.Mat, shapes []annotation.Shape, vocab *annotation.Vocabulary) {
	for _, s := range shapes {
		if len(s.Points) == 0 {
			continue
		}
		c := palette[s.Label%len(palette)]
		gocv.Polylines(&img, [][]image.Point{s.Points}, s.Kind == raster.Polygon, c, 1)
		gocv.PutText(&img, vocab.Name(s.Label), s.Points[0], gocv.FontHersheyComplex, 0.5, c, 1)
	}
}

// encodeLayer renders a mask channel as a black and white PNG.
func encodeLayer(l *raster.Layer) ([]byte, error) {
	buf := make([]byte, len(l.Pix))
	for i, v := range l.Pix {
		buf[i] = v * 255
	}

	m, err := gocv.NewMatFromBytes(l.Height, l.Width, gocv.MatTypeCV8U, buf)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	return gocv.IMEncode(gocv.PNGFileExt, m)
}

func writeScaled(w io.Writer, img gocv.Mat, scale float64) error {
	src, err := img.ToImage()
	if err != nil {
		return err
	}

	b := src.Bounds()
	dw, dh := int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return png.Encode(w, dst)
}
