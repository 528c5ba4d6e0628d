package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/model-collapse/ctseg/config"
	"github.com/model-collapse/ctseg/dataset"
)

// extractEntry writes one patch per shape of the entry at global index idx.
// It returns the number of patches written.
func extractEntry(ds *dataset.Dataset, idx int, outDir string, thickness int) (n int, err error) {
	defer func() {
		if e := recover(); e != nil {
			log.Printf("Panic = %v, stack = %s", e, debug.Stack())
			err = fmt.Errorf("entry %d: panic: %v", idx, e)
		}
	}()

	e, err := ds.Entry(idx)
	if err != nil {
		return
	}
	ann := e.Annotation
	if len(ann.Shapes) == 0 {
		return
	}

	path, err := ds.Resolve(ann.Name)
	if err != nil {
		return
	}
	img, err := dataset.DecodeImage(path)
	if err != nil {
		return
	}

	for seq, s := range ann.Shapes {
		patch, _, perr := cutPatch(img, s, thickness)
		if perr != nil {
			log.Printf("entry %d shape %d (%s): %v", idx, seq, ann.Name, perr)
			continue
		}

		fn := filepath.Join(outDir, ds.Labels().Name(s.Label), fmt.Sprintf("%d_%d.png", idx, seq))
		if err = writePNG(fn, patch); err != nil {
			return
		}
		n++
	}
	return
}

func main() {
	confPath := flag.String("conf", "./conf.json", "configuration file")
	outDir := flag.String("out", "patches", "output directory")
	workers := flag.Int("workers", 10, "number of extraction workers")
	flag.Parse()

	conf, err := config.LoadConfig(*confPath)
	if err != nil {
		log.Fatal(err)
	}
	ds, err := conf.OpenDataset()
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("#images = %d", ds.Len())
	log.Printf("#documents = %d", len(ds.Documents()))

	chIdx := make(chan int, 100)
	go func() {
		for i := 0; i < ds.Len(); i++ {
			chIdx <- i
		}

		close(chIdx)
	}()

	var mu sync.Mutex
	total := 0

	wg := sync.WaitGroup{}
	wg.Add(*workers)

	for i := 0; i < *workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range chIdx {
				n, err := extractEntry(ds, idx, *outDir, conf.Thickness)
				if err != nil {
					log.Print(err)
				}
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	log.Printf("#patches = %d", total)
}
