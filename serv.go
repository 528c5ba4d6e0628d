package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"strconv"

	http "github.com/valyala/fasthttp"
	"gocv.io/x/gocv"

	"github.com/model-collapse/ctseg/config"
	"github.com/model-collapse/ctseg/dataset"
	"github.com/model-collapse/ctseg/manifest"
)

var (
	conf *config.Config
	ds   *dataset.Dataset
)

func initialize(path string) (err error) {
	if conf, err = config.LoadConfig(path); err != nil {
		return
	}

	if ds, err = conf.OpenDataset(); err != nil {
		return
	}

	return
}

func writeManifest(path string) error {
	train, val, err := dataset.RandomSplit(ds.Len(), conf.Split.TrainRatio, conf.Split.Seed)
	if err != nil {
		return err
	}

	db, err := manifest.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	return manifest.Write(context.Background(), db, ds, &manifest.Split{Train: train, Val: val})
}

type documentInfo struct {
	Path   string `json:"path"`
	Length int    `json:"length"`
}

type datasetInfo struct {
	Length    int            `json:"length"`
	Labels    []string       `json:"labels"`
	Roots     []string       `json:"roots"`
	Documents []documentInfo `json:"documents"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, dataset.ErrIndexOutOfRange), errors.Is(err, dataset.ErrImageNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func intArg(c *http.RequestCtx, name string, def int) (int, error) {
	v := c.QueryArgs().Peek(name)
	if len(v) == 0 {
		return def, nil
	}
	return strconv.Atoi(string(v))
}

func writeJSON(c *http.RequestCtx, v interface{}) {
	c.SetContentType("application/json")
	if err := json.NewEncoder(c).Encode(v); err != nil {
		log.Printf("Err [encode] %v", err)
	}
}

func serveInfo(c *http.RequestCtx, ds *dataset.Dataset) {
	info := datasetInfo{Length: ds.Len(), Labels: ds.Labels().Names(), Roots: ds.Roots()}
	for _, d := range ds.Documents() {
		info.Documents = append(info.Documents, documentInfo{Path: d.Path(), Length: d.Len()})
	}
	writeJSON(c, info)
}

func serveSplit(c *http.RequestCtx, ds *dataset.Dataset, split config.SplitParameter) {
	train, val, err := dataset.RandomSplit(ds.Len(), split.TrainRatio, split.Seed)
	if err != nil {
		c.Error(err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(c, map[string][]int{"train": train, "val": val})
}

func serveMask(c *http.RequestCtx, ds *dataset.Dataset) {
	idx, err := intArg(c, "index", 0)
	if err != nil {
		c.Error("bad index", http.StatusBadRequest)
		return
	}
	ch, err := intArg(c, "channel", 0)
	if err != nil {
		c.Error("bad channel", http.StatusBadRequest)
		return
	}
	if label := c.QueryArgs().Peek("label"); len(label) > 0 {
		var ok bool
		if ch, ok = ds.Labels().Index(string(label)); !ok {
			c.Error("unknown label", http.StatusBadRequest)
			return
		}
	}
	if ch < 0 || ch >= ds.Labels().Len() {
		c.Error("bad channel", http.StatusBadRequest)
		return
	}

	e, err := ds.Entry(idx)
	if err != nil {
		c.Error(err.Error(), statusOf(err))
		return
	}

	data, err := encodeLayer(e.Annotation.Mask.Layers[ch])
	if err != nil {
		log.Printf("Err [encode] %v", err)
		c.Error(err.Error(), http.StatusInternalServerError)
		return
	}

	c.SetContentType("image/png")
	c.Write(data)
}

func serveImage(c *http.RequestCtx, ds *dataset.Dataset) {
	idx, err := intArg(c, "index", 0)
	if err != nil {
		c.Error("bad index", http.StatusBadRequest)
		return
	}
	scale := 1.0
	if s := c.QueryArgs().Peek("scale"); len(s) > 0 {
		if scale, err = strconv.ParseFloat(string(s), 64); err != nil || scale <= 0 || scale > 1 {
			c.Error("bad scale", http.StatusBadRequest)
			return
		}
	}
	overlay := string(c.QueryArgs().Peek("overlay")) == "true"

	e, err := ds.Entry(idx)
	if err != nil {
		c.Error(err.Error(), statusOf(err))
		return
	}
	img, err := renderPreview(ds, e, overlay)
	if err != nil {
		c.Error(err.Error(), statusOf(err))
		return
	}
	defer img.Close()

	c.SetContentType("image/png")
	if scale < 1 {
		err = writeScaled(c, img, scale)
	} else {
		var data []byte
		if data, err = gocv.IMEncode(gocv.PNGFileExt, img); err == nil {
			c.Write(data)
		}
	}
	if err != nil {
		log.Printf("Err [encode] %v", err)
		c.Error(err.Error(), http.StatusInternalServerError)
	}
}

func newHandler(ds *dataset.Dataset, split config.SplitParameter) http.RequestHandler {
	return func(c *http.RequestCtx) {
		switch string(c.Path()) {
		case "/info":
			serveInfo(c, ds)
		case "/split":
			serveSplit(c, ds, split)
		case "/mask":
			serveMask(c, ds)
		case "/image":
			serveImage(c, ds)
		default:
			c.Error("not found", http.StatusNotFound)
		}
	}
}

func main() {
	confPath := flag.String("conf", "./conf.json", "configuration file")
	manifestPath := flag.String("manifest", "", "write the dataset manifest to this SQLite file and exit")
	flag.Parse()

	if err := initialize(*confPath); err != nil {
		log.Fatal(err)
	}

	log.Printf("Initialized, #images = %d, #documents = %d, labels = %v", ds.Len(), len(ds.Documents()), ds.Labels().Names())

	if *manifestPath != "" {
		if err := writeManifest(*manifestPath); err != nil {
			log.Fatal(err)
		}
		log.Printf("Manifest written to %s", *manifestPath)
		return
	}

	log.Printf("Serving on %s...", conf.Listen)
	if err := http.ListenAndServe(conf.Listen, newHandler(ds, conf.Split)); err != nil {
		log.Fatal(err)
	}
}
