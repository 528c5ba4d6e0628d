// Package annotation parses labeled-shape annotation documents and
// rasterizes every image's shapes into a per-label mask.
//
// A document looks like
//
//	<annotations>
//	  <image id="0" name="slice_000.png" width="512" height="512">
//	    <polygon label="pore" points="10,10;20,10.5;15,22"/>
//	    <polyline label="crack" points="0,0;40,40"/>
//	  </image>
//	</annotations>
//
// Only top-level image elements are read. Shapes whose label is not in the
// vocabulary are skipped.
package annotation

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/model-collapse/ctseg/raster"
)

// DefaultThickness is the polyline width used when Options leaves it unset.
const DefaultThickness = 1

// ErrTrailingData reports content after the document's root element.
var ErrTrailingData = errors.New("content after root element")

// Options control how shapes are rasterized.
type Options struct {
	// Thickness is the polyline stroke width in pixels.
	Thickness int
	// Rasterizer draws the shapes. Nil selects raster.Scanline.
	Rasterizer raster.Rasterizer
}

func (o Options) withDefaults() Options {
	if o.Thickness < 1 {
		o.Thickness = DefaultThickness
	}
	if o.Rasterizer == nil {
		o.Rasterizer = raster.Scanline{}
	}
	return o
}

// Shape is one retained polygon or polyline.
type Shape struct {
	Kind  raster.Kind
	Label int
	// Raw is the points attribute as written in the document.
	Raw    string
	Points []image.Point
}

// Mask holds one binary layer per vocabulary channel.
type Mask struct {
	Width  int
	Height int
	Layers []*raster.Layer
}

func newMask(width, height, channels int) *Mask {
	m := &Mask{Width: width, Height: height, Layers: make([]*raster.Layer, channels)}
	for c := range m.Layers {
		m.Layers[c] = raster.NewLayer(width, height)
	}
	return m
}

// Channels returns the number of layers.
func (m *Mask) Channels() int { return len(m.Layers) }

// At returns the value of channel c at (x, y).
func (m *Mask) At(x, y, c int) uint8 { return m.Layers[c].At(x, y) }

// Image is the annotation of one image. Its fields are shared with every
// caller and must be treated as read-only.
type Image struct {
	ID     int
	Name   string
	Width  int
	Height int
	// Attrs holds every attribute of the image element, including the ones
	// above.
	Attrs  map[string]string
	Shapes []Shape
	Mask   *Mask
}

// Document is the parsed content of one annotation file, ordered by
// ascending image id. Its length never changes after Load returns.
type Document struct {
	path   string
	vocab  *Vocabulary
	images []*Image
}

// Path returns the file the document was read from.
func (d *Document) Path() string { return d.path }

// Vocabulary returns the vocabulary the masks were built with.
func (d *Document) Vocabulary() *Vocabulary { return d.vocab }

// Len returns the number of images.
func (d *Document) Len() int { return len(d.images) }

// Get returns the i-th image in id order.
func (d *Document) Get(i int) (*Image, error) {
	if i < 0 || i >= len(d.images) {
		return nil, fmt.Errorf("annotation: index %d out of range [0,%d)", i, len(d.images))
	}
	return d.images[i], nil
}

// ParseError reports a document that could not be loaded.
type ParseError struct {
	Path string
	// Image is the id attribute of the offending image, if known.
	Image string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Image != "" {
		return fmt.Sprintf("annotation: %s: image %s: %v", e.Path, e.Image, e.Err)
	}
	return fmt.Sprintf("annotation: %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type xmlDocument struct {
	Images []xmlElement `xml:"image"`
}

type xmlElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr   `xml:",any,attr"`
	Children []xmlElement `xml:",any"`
}

func (e *xmlElement) attrs() map[string]string {
	m := make(map[string]string, len(e.Attrs))
	for _, a := range e.Attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

// Load reads and rasterizes the document at path.
func Load(path string, vocab *Vocabulary, opts Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f, path, vocab, opts)
}

// Parse is Load over an already open reader; path is used in errors.
func Parse(r io.Reader, path string, vocab *Vocabulary, opts Options) (*Document, error) {
	opts = opts.withDefaults()

	var doc xmlDocument
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if err := expectEOF(dec); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	type keyed struct {
		id int
		el *xmlElement
	}
	elems := make([]keyed, len(doc.Images))
	for i := range doc.Images {
		el := &doc.Images[i]
		id, err := intAttr(el.attrs(), "id")
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		elems[i] = keyed{id: id, el: el}
	}
	sort.SliceStable(elems, func(i, j int) bool { return elems[i].id < elems[j].id })

	d := &Document{path: path, vocab: vocab, images: make([]*Image, 0, len(elems))}
	for _, k := range elems {
		img, err := parseImage(k.el, vocab, opts)
		if err != nil {
			return nil, &ParseError{Path: path, Image: strconv.Itoa(k.id), Err: err}
		}
		d.images = append(d.images, img)
	}
	return d, nil
}

func parseImage(el *xmlElement, vocab *Vocabulary, opts Options) (img *Image, err error) {
	attrs := el.attrs()
	img = &Image{Attrs: attrs, Name: attrs["name"]}

	if img.ID, err = intAttr(attrs, "id"); err != nil {
		return nil, err
	}
	if img.Width, err = intAttr(attrs, "width"); err != nil {
		return nil, err
	}
	if img.Height, err = intAttr(attrs, "height"); err != nil {
		return nil, err
	}
	if img.Width < 0 || img.Height < 0 {
		return nil, fmt.Errorf("negative size %dx%d", img.Width, img.Height)
	}

	img.Mask = newMask(img.Width, img.Height, vocab.Len())
	for i := range el.Children {
		child := &el.Children[i]
		ca := child.attrs()

		label, ok := vocab.Index(ca["label"])
		if !ok {
			continue
		}
		kind, ok := raster.ParseKind(child.XMLName.Local)
		if !ok {
			continue
		}

		raw, ok := ca["points"]
		if !ok {
			return nil, fmt.Errorf("%s %d: missing points", kind, i)
		}
		points, err := ParsePoints(raw)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", kind, i, err)
		}

		img.Shapes = append(img.Shapes, Shape{Kind: kind, Label: label, Raw: raw, Points: points})
		if err := raster.Draw(opts.Rasterizer, img.Mask.Layers[label], kind, points, opts.Thickness); err != nil {
			return nil, fmt.Errorf("%s %d: %w", kind, i, err)
		}
	}
	return img, nil
}

func intAttr(attrs map[string]string, name string) (int, error) {
	s, ok := attrs[name]
	if !ok {
		return 0, fmt.Errorf("missing %s attribute", name)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s attribute: %w", name, err)
	}
	return v, nil
}

// expectEOF consumes the rest of the input, allowing only whitespace,
// comments and processing instructions after the root element.
func expectEOF(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return ErrTrailingData
			}
		default:
			return ErrTrailingData
		}
	}
}
