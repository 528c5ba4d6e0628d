package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/model-collapse/ctseg/annotation"
	"github.com/model-collapse/ctseg/dataset"
	"github.com/model-collapse/ctseg/raster"
)

func TestExtractBoundingBox(t *testing.T) {
	pts := []image.Point{{3, 7}, {10, 2}, {5, 9}}
	if got := extractBoundingBox(pts, 0); got != image.Rect(3, 2, 11, 10) {
		t.Errorf("bbox = %v", got)
	}
	if got := extractBoundingBox(pts, 2); got != image.Rect(1, 0, 13, 12) {
		t.Errorf("padded bbox = %v", got)
	}
}

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 10), uint8(y * 10), 7, 255})
		}
	}
	return img
}

func TestCutPatchPolygon(t *testing.T) {
	s := annotation.Shape{Kind: raster.Polygon, Points: []image.Point{{2, 2}, {12, 2}, {12, 12}, {2, 12}}}
	patch, bnd, err := cutPatch(testImage(), s, 1)
	if err != nil {
		t.Fatal(err)
	}
	if bnd != image.Rect(2, 2, 13, 13) {
		t.Fatalf("bounds = %v", bnd)
	}

	c := patch.RGBAAt(5, 5)
	if c.A != 255 || c.R != 70 || c.G != 70 || c.B != 7 {
		t.Errorf("interior pixel = %v", c)
	}
}

func TestCutPatchTriangleAlpha(t *testing.T) {
	s := annotation.Shape{Kind: raster.Polygon, Points: []image.Point{{0, 0}, {15, 0}, {0, 15}}}
	patch, _, err := cutPatch(testImage(), s, 1)
	if err != nil {
		t.Fatal(err)
	}
	if patch.RGBAAt(2, 2).A == 0 {
		t.Error("inside pixel is transparent")
	}
	if patch.RGBAAt(14, 14).A != 0 {
		t.Error("outside pixel is opaque")
	}
}

func TestCutPatchClipsAndRejects(t *testing.T) {
	s := annotation.Shape{Kind: raster.Polyline, Points: []image.Point{{-5, 10}, {5, 10}}}
	patch, bnd, err := cutPatch(testImage(), s, 2)
	if err != nil {
		t.Fatal(err)
	}
	if bnd.Min.X != 0 || bnd.Max.X != 8 {
		t.Errorf("clipped bounds = %v", bnd)
	}
	if a := patch.RGBAAt(2, 10-bnd.Min.Y).A; a == 0 {
		t.Error("clipped polyline lost its alpha")
	}

	far := annotation.Shape{Kind: raster.Polygon, Points: []image.Point{{50, 50}, {60, 50}, {60, 60}}}
	if _, _, err := cutPatch(testImage(), far, 1); err == nil {
		t.Error("shape outside the image accepted")
	}
	if _, _, err := cutPatch(testImage(), annotation.Shape{}, 1); err == nil {
		t.Error("empty shape accepted")
	}
}

func TestCutPatchFarVertex(t *testing.T) {
	s := annotation.Shape{Kind: raster.Polygon, Points: []image.Point{{0, 0}, {60000, 0}, {60000, 60000}}}
	img := testImage()

	bnd := extractBoundingBox(s.Points, 0).Intersect(img.Bounds())
	if mask := shapeAlpha(s, bnd, 1); len(mask.Pix) != 4*bnd.Dx()*bnd.Dy() {
		t.Fatalf("mask has %d bytes, want %d", len(mask.Pix), 4*bnd.Dx()*bnd.Dy())
	}

	patch, got, err := cutPatch(img, s, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != img.Bounds() {
		t.Fatalf("bounds = %v, want %v", got, img.Bounds())
	}
	if patch.RGBAAt(15, 3).A == 0 {
		t.Error("pixel above the diagonal is transparent")
	}
	if patch.RGBAAt(3, 15).A != 0 {
		t.Error("pixel below the diagonal is opaque")
	}
}

func TestExtractEntry(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "slice.png"))
	if err != nil {
		t.Fatal(err)
	}
	png.Encode(f, testImage())
	f.Close()

	doc := `<annotations><image id="0" name="slice.png" width="20" height="20">
		<polygon label="pore" points="2,2;8,2;8,8"/>
		<polyline label="crack" points="1,15;18,15"/>
	</image></annotations>`
	d, err := annotation.Parse(strings.NewReader(doc), "d.xml", annotation.NewVocabulary([]string{"pore", "crack"}), annotation.Options{})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := dataset.Compose([]string{dir}, []*annotation.Document{d})
	if err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	n, err := extractEntry(ds, 0, out, 2)
	if err != nil || n != 2 {
		t.Fatalf("extractEntry = %d, %v", n, err)
	}
	for _, p := range []string{"pore/0_0.png", "crack/0_1.png"} {
		if _, err := os.Stat(filepath.Join(out, p)); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}

	if _, err := extractEntry(ds, 1, out, 2); err == nil {
		t.Error("out of range entry accepted")
	}
}
