package dge

import (
	"strings"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// UnassignedCell replaces cell barcodes missing from the allow-list.
const UnassignedCell = "NA"

// Key identifies one cell of the DGE matrix.
type Key struct {
	Gene, Cell string
}

// name is an llrb element ordering cell and gene ids lexicographically.
type name string

// Compare compares two name objects for use in llrb.
func (n name) Compare(c llrb.Comparable) int {
	return strings.Compare(string(n), string(c.(name)))
}

// nameSet is a sorted set of ids.
type nameSet struct {
	tree llrb.Tree
}

func (s *nameSet) add(id string) {
	if s.tree.Get(name(id)) == nil {
		s.tree.Insert(name(id))
	}
}

func (s *nameSet) len() int { return s.tree.Len() }

// sorted returns the ids in lexicographic order.
func (s *nameSet) sorted() []string {
	ids := make([]string, 0, s.tree.Len())
	s.tree.Do(func(c llrb.Comparable) bool {
		ids = append(ids, string(c.(name)))
		return false
	})
	return ids
}

// Store accumulates per-(gene, cell) counts for a fixed set of channels.
// Counts only ever grow, by exactly one per counted molecule and channel, so
// a Store abandoned mid-stream is incomplete but consistent.
//
// A Store is not safe for concurrent use. Parallel runs keep one Store per
// partition and Merge them at the end.
type Store struct {
	channels []string
	index    map[string]int
	counts   map[Key][]uint32
	cells    nameSet
	genes    nameSet
	allowed  map[string]struct{}
	sources  map[string]string
	unknown  map[string]bool
}

// NewStore creates an empty store for the given channels. If allowed is
// non-nil, cells outside it are counted as UnassignedCell.
func NewStore(channels []string, allowed map[string]struct{}) (*Store, error) {
	s := &Store{
		index:   make(map[string]int, len(channels)),
		counts:  map[Key][]uint32{},
		allowed: allowed,
		sources: map[string]string{},
		unknown: map[string]bool{},
	}
	for _, c := range channels {
		if _, ok := s.index[c]; ok {
			return nil, errors.E(errors.Invalid, "duplicate channel", c)
		}
		s.index[c] = len(s.channels)
		s.channels = append(s.channels, c)
	}
	return s, nil
}

// Channels returns the channels of s, in construction order.
func (s *Store) Channels() []string { return s.channels }

// Add counts one molecule of gene in cell into each of channels. An empty
// channel list counts nothing. Channels the store was not created with are
// ignored.
func (s *Store) Add(gene, cell string, channels []string) {
	if len(channels) == 0 {
		return
	}
	if s.allowed != nil {
		if _, ok := s.allowed[cell]; !ok {
			cell = UnassignedCell
		}
	}
	s.cells.add(cell)
	s.genes.add(gene)

	k := Key{gene, cell}
	v := s.counts[k]
	if v == nil {
		v = make([]uint32, len(s.channels))
		s.counts[k] = v
	}
	for _, c := range channels {
		i, ok := s.index[c]
		if !ok {
			if !s.unknown[c] {
				log.Debug.Printf("dge: ignoring unconfigured channel %q", c)
				s.unknown[c] = true
			}
			continue
		}
		v[i]++
	}
}

// Get returns the count of (gene, cell) in channel.
func (s *Store) Get(gene, cell, channel string) uint32 {
	i, ok := s.index[channel]
	if !ok {
		return 0
	}
	if v := s.counts[Key{gene, cell}]; v != nil {
		return v[i]
	}
	return 0
}

// SetSource records the reference gene was counted from.
func (s *Store) SetSource(gene, ref string) { s.sources[gene] = ref }

// Source returns the reference gene was counted from.
func (s *Store) Source(gene string) string { return s.sources[gene] }

// NumCells returns the number of distinct cells observed.
func (s *Store) NumCells() int { return s.cells.len() }

// NumGenes returns the number of distinct genes observed.
func (s *Store) NumGenes() int { return s.genes.len() }

// Len returns the number of (gene, cell) pairs with counts.
func (s *Store) Len() int { return len(s.counts) }

// Merge adds the counts of o to s. Both stores must have the same channels.
func (s *Store) Merge(o *Store) error {
	if len(s.channels) != len(o.channels) {
		return errors.E(errors.Invalid, "merge: channel sets differ")
	}
	for i, c := range s.channels {
		if o.channels[i] != c {
			return errors.E(errors.Invalid, "merge: channel sets differ at", c)
		}
	}
	for k, ov := range o.counts {
		v := s.counts[k]
		if v == nil {
			v = make([]uint32, len(s.channels))
			s.counts[k] = v
		}
		for i, n := range ov {
			v[i] += n
		}
		s.cells.add(k.Cell)
		s.genes.add(k.Gene)
	}
	for gene, ref := range o.sources {
		s.sources[gene] = ref
	}
	return nil
}
