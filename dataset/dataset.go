// Package dataset stitches annotation documents and image directories into
// one indexable sequence of (image, mask) tensor pairs.
//
// Global index i addresses the documents in the order given: the first
// document's images come first, in id order, then the second document's, and
// so on. Negative indices count from the end. Each image is looked up by
// name in the image roots in order; the first root holding it wins.
//
// A Dataset is immutable after construction and safe for concurrent use as
// long as its ImageLoader and Transform are.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/model-collapse/ctseg/annotation"
	"github.com/model-collapse/ctseg/augment"
	"github.com/model-collapse/ctseg/raster"
	"github.com/model-collapse/ctseg/tensor"
)

// ImageChannels is the channel count of every image tensor.
const ImageChannels = 3

// DefaultThickness is the polyline width used when none is configured.
const DefaultThickness = 2

type options struct {
	thickness  int
	transform  augment.Transform
	loader     ImageLoader
	rasterizer raster.Rasterizer
}

// Option configures New and Compose.
type Option func(*options)

// WithThickness sets the polyline stroke width in pixels.
func WithThickness(n int) Option { return func(o *options) { o.thickness = n } }

// WithTransform sets the joint augmentation applied by Get.
func WithTransform(t augment.Transform) Option { return func(o *options) { o.transform = t } }

// WithLoader replaces the default StdLoader.
func WithLoader(l ImageLoader) Option { return func(o *options) { o.loader = l } }

// WithRasterizer selects the shape rasterizer used when loading documents.
func WithRasterizer(r raster.Rasterizer) Option { return func(o *options) { o.rasterizer = r } }

func buildOptions(opts []Option) options {
	o := options{thickness: DefaultThickness, loader: StdLoader{}, rasterizer: raster.Scanline{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Dataset is the concatenation of several annotation documents.
type Dataset struct {
	roots     []string
	docs      []*annotation.Document
	vocab     *annotation.Vocabulary
	prefix    []int
	transform augment.Transform
	loader    ImageLoader
}

// New loads every document in docPaths with one vocabulary built from labels.
func New(roots, docPaths, labels []string, opts ...Option) (*Dataset, error) {
	o := buildOptions(opts)
	vocab := annotation.NewVocabulary(labels)
	aopts := annotation.Options{Thickness: o.thickness, Rasterizer: o.rasterizer}

	docs := make([]*annotation.Document, 0, len(docPaths))
	for _, p := range docPaths {
		d, err := annotation.Load(p, vocab, aopts)
		if err != nil {
			return nil, err
		}
		logger().Debug("loaded annotation document", "path", p, "images", d.Len())
		docs = append(docs, d)
	}
	return compose(roots, docs, vocab, o)
}

// Compose builds a Dataset over documents that are already loaded. All
// documents must share one vocabulary.
func Compose(roots []string, docs []*annotation.Document, opts ...Option) (*Dataset, error) {
	if len(docs) == 0 {
		return compose(roots, docs, annotation.NewVocabulary(nil), buildOptions(opts))
	}
	vocab := docs[0].Vocabulary()
	for _, d := range docs[1:] {
		if !d.Vocabulary().Equal(vocab) {
			return nil, fmt.Errorf("%w: %s has %v, %s has %v", ErrVocabularyMismatch,
				docs[0].Path(), vocab.Names(), d.Path(), d.Vocabulary().Names())
		}
	}
	return compose(roots, docs, vocab, buildOptions(opts))
}

func compose(roots []string, docs []*annotation.Document, vocab *annotation.Vocabulary, o options) (*Dataset, error) {
	prefix := make([]int, len(docs)+1)
	for i, d := range docs {
		prefix[i+1] = prefix[i] + d.Len()
	}
	return &Dataset{
		roots:     append([]string(nil), roots...),
		docs:      append([]*annotation.Document(nil), docs...),
		vocab:     vocab,
		prefix:    prefix,
		transform: o.transform,
		loader:    o.loader,
	}, nil
}

// WithTransform returns a view over the same documents that applies t
// instead of the configured transform. Nil disables augmentation.
func (d *Dataset) WithTransform(t augment.Transform) *Dataset {
	v := *d
	v.transform = t
	return &v
}

// Len returns the total number of images.
func (d *Dataset) Len() int { return d.prefix[len(d.prefix)-1] }

// Labels returns the vocabulary shared by every document.
func (d *Dataset) Labels() *annotation.Vocabulary { return d.vocab }

// Documents returns the composed documents in order.
func (d *Dataset) Documents() []*annotation.Document {
	return append([]*annotation.Document(nil), d.docs...)
}

// Roots returns the image roots in lookup order.
func (d *Dataset) Roots() []string { return append([]string(nil), d.roots...) }

// PrefixSums returns the cumulative document lengths, starting at 0.
func (d *Dataset) PrefixSums() []int { return append([]int(nil), d.prefix...) }

// Normalize maps a possibly negative index into [0, Len).
func (d *Dataset) Normalize(i int) (int, error) {
	n := d.Len()
	j := i
	if j < 0 {
		j += n
	}
	if j < 0 || j >= n {
		return 0, fmt.Errorf("%w: %d not in [%d,%d)", ErrIndexOutOfRange, i, -n, n)
	}
	return j, nil
}

// Locate returns the document holding global index i and the index within it.
func (d *Dataset) Locate(i int) (doc, local int, err error) {
	if i, err = d.Normalize(i); err != nil {
		return 0, 0, err
	}
	// first document whose range ends past i; empty documents are skipped
	doc = sort.Search(len(d.docs), func(k int) bool { return d.prefix[k+1] > i })
	return doc, i - d.prefix[doc], nil
}

// Entry is the annotation at one global index.
type Entry struct {
	Index      int
	Document   int
	Local      int
	Annotation *annotation.Image
}

// Entry returns the annotation at global index i.
func (d *Dataset) Entry(i int) (Entry, error) {
	doc, local, err := d.Locate(i)
	if err != nil {
		return Entry{}, err
	}
	img, err := d.docs[doc].Get(local)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Index: d.prefix[doc] + local, Document: doc, Local: local, Annotation: img}, nil
}

// Resolve returns the path of the first root holding a file called name.
// Directories with that name are skipped.
func (d *Dataset) Resolve(name string) (string, error) {
	for _, root := range d.roots {
		p := filepath.Join(root, name)
		fi, err := os.Stat(p)
		switch {
		case err == nil && !fi.IsDir():
			return p, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			logger().Debug("image root lookup failed", "root", root, "name", name, "err", err)
		}
	}
	logger().Warn("image not found", "name", name, "roots", len(d.roots))
	return "", fmt.Errorf("%w: %q in any of %d roots", ErrImageNotFound, name, len(d.roots))
}

// Get returns the image tensor [3, H, W] and mask tensor [labels, H, W] at
// global index i, jointly augmented when a transform is configured.
func (d *Dataset) Get(i int) (img, mask *tensor.Tensor, err error) {
	e, err := d.Entry(i)
	if err != nil {
		return nil, nil, err
	}
	ann := e.Annotation

	path, err := d.Resolve(ann.Name)
	if err != nil {
		return nil, nil, err
	}
	gray, err := d.loader.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if b := gray.Bounds(); b.Dx() != ann.Width || b.Dy() != ann.Height {
		return nil, nil, fmt.Errorf("%w: %s is %dx%d, annotated %dx%d",
			ErrSizeMismatch, path, b.Dx(), b.Dy(), ann.Width, ann.Height)
	}

	img = tensor.FromGray(gray, ImageChannels)
	planes := make([][]uint8, len(ann.Mask.Layers))
	for c, l := range ann.Mask.Layers {
		planes[c] = l.Pix
	}
	if mask, err = tensor.FromPlanes(ann.Height, ann.Width, planes); err != nil {
		return nil, nil, err
	}
	return augment.Joint(d.transform, img, mask)
}
