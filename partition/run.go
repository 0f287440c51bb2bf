// Package partition runs the counting pipeline over a stream of bundles,
// optionally split across parallel workers by cell barcode.
package partition

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/dge/barcode"
	"github.com/grailbio/dge/bundle"
	"github.com/grailbio/dge/dge"
	"github.com/grailbio/dge/quant"
)

// Worker counts the bundles of one partition. It owns the partition's
// UniqueSet, Stats and Store; a Counter is created per reference on first
// use. A Worker is not safe for concurrent use.
type Worker struct {
	flavors  *quant.Flavors
	uniq     *quant.UniqueSet
	stats    *quant.Stats
	store    *dge.Store
	counters map[string]*quant.Counter
}

// NewWorker creates a worker whose store holds all channels of flavors.
func NewWorker(flavors *quant.Flavors, allowed map[string]struct{}) (*Worker, error) {
	store, err := dge.NewStore(flavors.Channels(), allowed)
	if err != nil {
		return nil, err
	}
	return &Worker{
		flavors:  flavors,
		uniq:     quant.NewUniqueSet(),
		stats:    quant.NewStats(),
		store:    store,
		counters: map[string]*quant.Counter{},
	}, nil
}

// Process counts one bundle.
func (w *Worker) Process(b quant.Bundle) {
	c, ok := w.counters[b.Ref]
	if !ok {
		c = w.flavors.For(b.Ref).NewCounter(w.uniq, w.stats.Ref(b.Ref))
		w.counters[b.Ref] = c
	}
	gene, channels := c.Process(b)
	if gene == "" || len(channels) == 0 {
		return
	}
	w.store.Add(gene, b.Cell, channels)
	w.store.SetSource(gene, b.Ref)
}

// Store returns the worker's count store.
func (w *Worker) Store() *dge.Store { return w.store }

// Stats returns the worker's statistics.
func (w *Worker) Stats() *quant.Stats { return w.stats }

// Opts controls Run.
type Opts struct {
	// Partitions is the number of parallel workers. Values < 1 mean 1.
	Partitions int
	// Partitioner routes bundles to workers. Nil means ByPrefix(Partitions).
	Partitioner Partitioner
	// QueueLength is the number of bundles buffered per worker.
	QueueLength int
	// Allowed, if non-nil, restricts cells to an allow-list.
	Allowed map[string]struct{}
	// Barcodes, if non-nil, corrects cell barcodes before they are routed,
	// so that all reads of a corrected cell meet in one partition.
	Barcodes *barcode.Corrector
	// ProgressInterval logs progress every so many bundles; 0 disables it.
	ProgressInterval int64
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	Partitions:       1,
	QueueLength:      1024,
	ProgressInterval: 1000000,
}

// Result is the merged outcome of all partitions.
type Result struct {
	Store *dge.Store
	Stats *quant.Stats
	// Bundles is the number of bundles routed to workers.
	Bundles int64
}

// Run reads src to the end, routing every bundle to the worker chosen by
// opts.Partitioner, and merges the workers' stores and statistics.
//
// If ctx is canceled, Run stops between bundles and returns the merged
// partial result together with the context's error. Every count in a
// partial result stems from a fully processed bundle.
func Run(ctx context.Context, src bundle.Source, flavors *quant.Flavors, opts Opts) (*Result, error) {
	n := opts.Partitions
	if n < 1 {
		n = 1
	}
	part := opts.Partitioner
	if part == nil {
		part = ByPrefix(n)
	}
	workers := make([]*Worker, n)
	queues := make([]chan quant.Bundle, n)
	for i := range workers {
		var err error
		if workers[i], err = NewWorker(flavors, opts.Allowed); err != nil {
			return nil, err
		}
		queues[i] = make(chan quant.Bundle, opts.QueueLength)
	}

	var (
		nBundles    int64
		routeErr    = make(chan error, 1)
		routerStats = quant.NewStats()
		t0          = time.Now()
	)
	go func() {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for src.Scan() {
			if err := ctx.Err(); err != nil {
				routeErr <- err
				return
			}
			b := src.Bundle()
			if opts.Barcodes != nil {
				correctCell(opts.Barcodes, &b, routerStats)
			}
			p := part(b.Cell)
			if p < 0 || p >= n {
				routeErr <- errors.E(errors.Invalid, fmt.Sprintf("partitioner mapped cell %q to %d, want [0,%d)", b.Cell, p, n))
				return
			}
			select {
			case queues[p] <- b:
			case <-ctx.Done():
				routeErr <- ctx.Err()
				return
			}
			if nb := atomic.AddInt64(&nBundles, 1); opts.ProgressInterval > 0 && nb%opts.ProgressInterval == 0 {
				log.Printf("routed %d bundles in %v", nb, time.Since(t0))
			}
		}
		routeErr <- src.Err()
	}()

	err := traverse.Each(n, func(i int) error {
		for b := range queues[i] {
			workers[i].Process(b)
		}
		log.Debug.Printf("partition %d: %d molecules, %d (gene, cell) pairs", i, workers[i].uniq.Len(), workers[i].store.Len())
		return nil
	})
	var once errors.Once
	once.Set(<-routeErr)
	once.Set(err)

	res := &Result{
		Store:   workers[0].store,
		Stats:   workers[0].stats,
		Bundles: atomic.LoadInt64(&nBundles),
	}
	for _, w := range workers[1:] {
		if err := res.Store.Merge(w.store); err != nil {
			once.Set(err)
		}
		res.Stats.Merge(w.stats)
	}
	res.Stats.Merge(routerStats)
	log.Printf("counted %d bundles over %d partitions in %v: %d cells, %d genes",
		res.Bundles, n, time.Since(t0), res.Store.NumCells(), res.Store.NumGenes())
	return res, once.Err()
}

func correctCell(c *barcode.Corrector, b *quant.Bundle, stats *quant.Stats) {
	cell, result := c.Correct(b.Cell)
	switch result {
	case barcode.Corrected:
		stats.Count(b.Ref, quant.EventCellCorrected)
		b.Cell = cell
	case barcode.Ambiguous:
		stats.Count(b.Ref, quant.EventCellAmbiguous)
	}
}
