package dataset

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/model-collapse/ctseg/annotation"
	"github.com/model-collapse/ctseg/augment"
)

const (
	testW = 6
	testH = 4
)

var testLabels = []string{"pore", "crack"}

// docXML returns a document with n images named prefix_<id>.png. Ids are
// written in descending order to exercise sorting. Every image gets a pore
// square in its top-left corner and a crack along its bottom row.
func docXML(prefix string, n int) string {
	var b strings.Builder
	b.WriteString("<annotations>\n")
	for id := n - 1; id >= 0; id-- {
		fmt.Fprintf(&b, `<image id="%d" name="%s_%d.png" width="%d" height="%d">`, id, prefix, id, testW, testH)
		b.WriteString(`<polygon label="pore" points="0,0;1,0;1,1;0,1"/>`)
		fmt.Fprintf(&b, `<polyline label="crack" points="0,%d;%d,%d"/>`, testH-1, testW-1, testH-1)
		b.WriteString("</image>\n")
	}
	b.WriteString("</annotations>")
	return b.String()
}

func parseDoc(t *testing.T, prefix string, n int) *annotation.Document {
	t.Helper()
	d, err := annotation.Parse(strings.NewReader(docXML(prefix, n)), prefix+".xml",
		annotation.NewVocabulary(testLabels), annotation.Options{Thickness: 1})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// writePNG writes a gradient image whose pixel (x, y) is 10*x + y + base.
func writePNG(t *testing.T, dir, name string, base int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, testW, testH))
	for y := 0; y < testH; y++ {
		for x := 0; x < testW; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(10*x + y + base)})
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestPrefixSumsAndLocate(t *testing.T) {
	ds, err := Compose(nil, []*annotation.Document{parseDoc(t, "a", 3), parseDoc(t, "b", 5), parseDoc(t, "c", 2)})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(ds.PrefixSums(), []int{0, 3, 8, 10}) {
		t.Errorf("PrefixSums() = %v", ds.PrefixSums())
	}
	if ds.Len() != 10 {
		t.Errorf("Len() = %d", ds.Len())
	}

	tests := []struct{ global, doc, local int }{
		{0, 0, 0}, {2, 0, 2}, {3, 1, 0}, {7, 1, 4}, {8, 2, 0}, {9, 2, 1}, {-1, 2, 1}, {-10, 0, 0},
	}
	for _, tt := range tests {
		doc, local, err := ds.Locate(tt.global)
		if err != nil {
			t.Errorf("Locate(%d) error: %v", tt.global, err)
			continue
		}
		if doc != tt.doc || local != tt.local {
			t.Errorf("Locate(%d) = (%d,%d), want (%d,%d)", tt.global, doc, local, tt.doc, tt.local)
		}
	}
}

func TestLocateSkipsEmptyDocuments(t *testing.T) {
	ds, err := Compose(nil, []*annotation.Document{parseDoc(t, "e", 0), parseDoc(t, "a", 2), parseDoc(t, "f", 0), parseDoc(t, "b", 1)})
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{1, 0}, {1, 1}, {3, 0}}
	for i, w := range want {
		doc, local, _ := ds.Locate(i)
		if doc != w[0] || local != w[1] {
			t.Errorf("Locate(%d) = (%d,%d), want %v", i, doc, local, w)
		}
	}
}

func TestIndexOutOfRange(t *testing.T) {
	ds, _ := Compose(nil, []*annotation.Document{parseDoc(t, "a", 3), parseDoc(t, "b", 2)})
	for _, i := range []int{5, 6, -6, -100} {
		if _, _, err := ds.Get(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Get(%d) error = %v, want ErrIndexOutOfRange", i, err)
		}
	}

	empty, _ := Compose(nil, nil)
	if empty.Len() != 0 {
		t.Errorf("empty Len() = %d", empty.Len())
	}
	if _, _, err := empty.Get(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("empty Get(0) error = %v", err)
	}
}

func TestEntryOrder(t *testing.T) {
	ds, _ := Compose(nil, []*annotation.Document{parseDoc(t, "a", 2), parseDoc(t, "b", 2)})
	var names []string
	for i := 0; i < ds.Len(); i++ {
		e, err := ds.Entry(i)
		if err != nil {
			t.Fatal(err)
		}
		if e.Index != i {
			t.Errorf("Entry(%d).Index = %d", i, e.Index)
		}
		names = append(names, e.Annotation.Name)
	}
	want := []string{"a_0.png", "a_1.png", "b_0.png", "b_1.png"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestComposeRejectsVocabularyMismatch(t *testing.T) {
	other, err := annotation.Parse(strings.NewReader(docXML("x", 1)), "x.xml",
		annotation.NewVocabulary([]string{"pore"}), annotation.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Compose(nil, []*annotation.Document{parseDoc(t, "a", 1), other}); !errors.Is(err, ErrVocabularyMismatch) {
		t.Errorf("error = %v, want ErrVocabularyMismatch", err)
	}
}

func TestGetResolvesAcrossRoots(t *testing.T) {
	rootA, rootB := t.TempDir(), t.TempDir()
	writePNG(t, rootA, "a_0.png", 0)
	writePNG(t, rootB, "a_1.png", 100)
	writePNG(t, rootA, "a_1.png", 50) // earlier root wins

	ds, err := Compose([]string{rootA, rootB}, []*annotation.Document{parseDoc(t, "a", 3)}, WithLoader(StdLoader{}))
	if err != nil {
		t.Fatal(err)
	}

	p, err := ds.Resolve("a_1.png")
	if err != nil || p != filepath.Join(rootA, "a_1.png") {
		t.Errorf("Resolve = %q, %v", p, err)
	}

	os.Remove(filepath.Join(rootA, "a_1.png"))
	img, _, err := ds.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if img.At(0, 0, 0) != 100 {
		t.Errorf("expected root B's copy, got pixel %v", img.At(0, 0, 0))
	}

	_, _, err = ds.Get(2)
	if !errors.Is(err, ErrImageNotFound) || !strings.Contains(err.Error(), "a_2.png") {
		t.Errorf("Get(2) error = %v, want ErrImageNotFound naming a_2.png", err)
	}
}

func TestResolveSkipsDirectories(t *testing.T) {
	rootA, rootB := t.TempDir(), t.TempDir()
	if err := os.Mkdir(filepath.Join(rootA, "a_0.png"), 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, rootB, "a_0.png", 30)

	ds, err := Compose([]string{rootA, rootB}, []*annotation.Document{parseDoc(t, "a", 1)})
	if err != nil {
		t.Fatal(err)
	}

	p, err := ds.Resolve("a_0.png")
	if err != nil || p != filepath.Join(rootB, "a_0.png") {
		t.Errorf("Resolve = %q, %v, want root B's file", p, err)
	}
	img, _, err := ds.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if img.At(0, 0, 0) != 30 {
		t.Errorf("pixel = %v, want 30", img.At(0, 0, 0))
	}

	for _, name := range []string{"", "."} {
		if _, err := ds.Resolve(name); !errors.Is(err, ErrImageNotFound) {
			t.Errorf("Resolve(%q) error = %v, want ErrImageNotFound", name, err)
		}
	}
}

func TestGetTensors(t *testing.T) {
	root := t.TempDir()
	writePNG(t, root, "a_0.png", 0)
	writePNG(t, root, "a_1.png", 1)

	ds, err := Compose([]string{root}, []*annotation.Document{parseDoc(t, "a", 2)}, WithLoader(StdLoader{}))
	if err != nil {
		t.Fatal(err)
	}

	img, mask, err := ds.Get(-1)
	if err != nil {
		t.Fatal(err)
	}
	if img.Shape() != [3]int{3, testH, testW} {
		t.Fatalf("image shape = %v", img.Shape())
	}
	if mask.Shape() != [3]int{2, testH, testW} {
		t.Fatalf("mask shape = %v", mask.Shape())
	}
	for c := 0; c < 3; c++ {
		if img.At(c, 2, 3) != 10*3+2+1 {
			t.Errorf("channel %d pixel = %v", c, img.At(c, 2, 3))
		}
	}

	crack, _ := ds.Labels().Index("crack")
	pore, _ := ds.Labels().Index("pore")
	for x := 0; x < testW; x++ {
		if mask.At(crack, testH-1, x) != 1 {
			t.Errorf("crack missing at x=%d", x)
		}
	}
	if mask.At(pore, 1, 1) != 1 || mask.At(pore, 2, 2) != 0 || mask.At(crack, 0, 0) != 0 {
		t.Error("pore mask wrong")
	}
	for _, v := range mask.Data {
		if v != 0 && v != 1 {
			t.Fatalf("mask value %v is not binary", v)
		}
	}

	last, lastMask, err := ds.Get(ds.Len() - 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(last, img) || !reflect.DeepEqual(lastMask, mask) {
		t.Error("Get(-1) differs from Get(Len()-1)")
	}
}

func TestGetAppliesJointTransform(t *testing.T) {
	root := t.TempDir()
	writePNG(t, root, "a_0.png", 0)

	ds, err := Compose([]string{root}, []*annotation.Document{parseDoc(t, "a", 1)}, WithLoader(StdLoader{}))
	if err != nil {
		t.Fatal(err)
	}
	img, mask, err := ds.Get(0)
	if err != nil {
		t.Fatal(err)
	}

	flipped := ds.WithTransform(augment.HorizontalFlip{})
	fimg, fmask, err := flipped.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if fimg.C != 3 || fmask.C != 2 {
		t.Fatalf("split wrong: %v %v", fimg.Shape(), fmask.Shape())
	}
	for c := 0; c < fmask.C; c++ {
		for y := 0; y < testH; y++ {
			for x := 0; x < testW; x++ {
				if fmask.At(c, y, testW-1-x) != mask.At(c, y, x) {
					t.Fatalf("mask channel %d not flipped at (%d,%d)", c, x, y)
				}
				if c == 0 && fimg.At(0, y, testW-1-x) != img.At(0, y, x) {
					t.Fatalf("image not flipped at (%d,%d)", x, y)
				}
			}
		}
	}

	// the original view is unaffected
	again, _, _ := ds.Get(0)
	if !reflect.DeepEqual(again, img) {
		t.Error("WithTransform modified the original dataset")
	}
}

func TestGetSizeMismatch(t *testing.T) {
	root := t.TempDir()
	big := image.NewGray(image.Rect(0, 0, testW+1, testH))
	f, _ := os.Create(filepath.Join(root, "a_0.png"))
	png.Encode(f, big)
	f.Close()

	ds, _ := Compose([]string{root}, []*annotation.Document{parseDoc(t, "a", 1)}, WithLoader(StdLoader{}))
	if _, _, err := ds.Get(0); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("error = %v, want ErrSizeMismatch", err)
	}
}

func TestNewLoadsDocuments(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, n := range []int{2, 3} {
		p := filepath.Join(dir, fmt.Sprintf("doc%d.xml", i))
		if err := os.WriteFile(p, []byte(docXML(fmt.Sprintf("d%d", i), n)), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	ds, err := New([]string{dir}, paths, []string{"crack", "pore", "crack"}, WithThickness(3), WithLoader(StdLoader{}))
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 5 || ds.Labels().Len() != 2 {
		t.Fatalf("Len=%d labels=%v", ds.Len(), ds.Labels().Names())
	}

	e, _ := ds.Entry(0)
	crack, _ := ds.Labels().Index("crack")
	// thickness 3 on the bottom row covers rows H-2 and H-1
	if e.Annotation.Mask.At(2, testH-2, crack) != 1 {
		t.Error("thickness option not applied")
	}

	var pe *annotation.ParseError
	bad := filepath.Join(dir, "bad.xml")
	os.WriteFile(bad, []byte("<annotations><image"), 0o644)
	if _, err := New(nil, []string{paths[0], bad}, testLabels); !errors.As(err, &pe) {
		t.Errorf("error = %v, want ParseError", err)
	}
}
