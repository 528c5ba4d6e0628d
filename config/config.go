// Package config loads the JSON configuration shared by the preview server
// and the patch extractor.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/model-collapse/ctseg/augment"
	"github.com/model-collapse/ctseg/dataset"
	"github.com/model-collapse/ctseg/dataset/cvload"
	"github.com/model-collapse/ctseg/raster"
	"github.com/model-collapse/ctseg/raster/cvraster"
)

type AugmentParameter struct {
	HFlip bool `json:"hflip"`
	VFlip bool `json:"vflip"`
	// Crop is [height, width]; empty disables cropping.
	Crop []int `json:"crop"`
}

type SplitParameter struct {
	TrainRatio float64 `json:"train_ratio"`
	Seed       int64   `json:"seed"`
}

type Config struct {
	ImageRoots      []string         `json:"image_roots"`
	AnnotationPaths []string         `json:"annotation_paths"`
	AnnotationDir   string           `json:"annotation_dir"`
	Labels          []string         `json:"labels"`
	Thickness       int              `json:"thickness"`
	Rasterizer      string           `json:"rasterizer"`
	Augment         AugmentParameter `json:"augment"`
	Split           SplitParameter   `json:"split"`
	Listen          string           `json:"listen"`
}

// Defaults applied by Load to fields left unset.
const (
	DefaultListen     = "0.0.0.0:8093"
	DefaultTrainRatio = 0.8
)

func LoadConfig(path string) (ret *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	ret = &Config{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err = ret.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return
}

func (c *Config) validate() error {
	if c.Thickness == 0 {
		c.Thickness = dataset.DefaultThickness
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Split.TrainRatio == 0 {
		c.Split.TrainRatio = DefaultTrainRatio
	}

	if c.Thickness < 1 {
		return fmt.Errorf("thickness %d must be positive", c.Thickness)
	}
	if _, ok := rasterizerByName(c.Rasterizer); !ok {
		return fmt.Errorf("unknown rasterizer %q", c.Rasterizer)
	}
	if n := len(c.Augment.Crop); n != 0 && (n != 2 || c.Augment.Crop[0] < 1 || c.Augment.Crop[1] < 1) {
		return fmt.Errorf("augment.crop must be [height, width], got %v", c.Augment.Crop)
	}
	if c.Split.TrainRatio < 0 || c.Split.TrainRatio > 1 {
		return fmt.Errorf("split.train_ratio %v not in [0,1]", c.Split.TrainRatio)
	}
	if len(c.Labels) == 0 {
		return fmt.Errorf("no labels configured")
	}
	if len(c.ImageRoots) == 0 {
		return fmt.Errorf("no image roots configured")
	}
	return nil
}

// DocumentPaths returns AnnotationPaths followed by every file in
// AnnotationDir whose name contains ".xml", sorted by name.
func (c *Config) DocumentPaths() ([]string, error) {
	paths := append([]string(nil), c.AnnotationPaths...)
	if c.AnnotationDir == "" {
		return paths, nil
	}

	fsl, err := os.ReadDir(c.AnnotationDir)
	if err != nil {
		return nil, err
	}
	var found []string
	for _, f := range fsl {
		if f.IsDir() || !strings.Contains(f.Name(), ".xml") {
			continue
		}
		found = append(found, filepath.Join(c.AnnotationDir, f.Name()))
	}
	sort.Strings(found)
	return append(paths, found...), nil
}

// Transform builds the training augmentation, or nil when none is enabled.
// Flips happen before cropping.
func (c *Config) Transform() augment.Transform {
	src := augment.NewSource(c.Split.Seed)
	var tr augment.Compose
	if c.Augment.HFlip {
		tr = append(tr, augment.RandomHorizontalFlip(0.5, src))
	}
	if c.Augment.VFlip {
		tr = append(tr, augment.RandomVerticalFlip(0.5, src))
	}
	if len(c.Augment.Crop) == 2 {
		tr = append(tr, &augment.RandomCrop{Height: c.Augment.Crop[0], Width: c.Augment.Crop[1], Source: src})
	}
	if len(tr) == 0 {
		return nil
	}
	return tr
}

// OpenDataset loads every configured document. The returned dataset has no
// transform; use WithTransform(c.Transform()) for the training view.
func (c *Config) OpenDataset(opts ...dataset.Option) (*dataset.Dataset, error) {
	paths, err := c.DocumentPaths()
	if err != nil {
		return nil, err
	}
	r, _ := rasterizerByName(c.Rasterizer)
	base := []dataset.Option{
		dataset.WithThickness(c.Thickness),
		dataset.WithRasterizer(r),
		dataset.WithLoader(cvload.Loader{}),
	}
	return dataset.New(c.ImageRoots, paths, c.Labels, append(base, opts...)...)
}

// rasterizerByName maps the "rasterizer" setting; empty selects scanline.
func rasterizerByName(name string) (raster.Rasterizer, bool) {
	switch name {
	case "", "scanline":
		return raster.Scanline{}, true
	case "opencv":
		return cvraster.OpenCV{}, true
	}
	return nil, false
}
