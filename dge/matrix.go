package dge

import (
	"sort"

	"github.com/grailbio/base/log"
)

// Matrix is an immutable cells x genes count matrix in compressed sparse
// row form. Row i holds the non-zero entries Indices[Indptr[i]:Indptr[i+1]]
// (column numbers, ascending) with values Data[Indptr[i]:Indptr[i+1]].
type Matrix struct {
	Rows, Cols int
	Indptr     []int
	Indices    []int
	Data       []uint32
}

// At returns the value at row i, column j.
func (m *Matrix) At(i, j int) uint32 {
	lo, hi := m.Indptr[i], m.Indptr[i+1]
	k := lo + sort.SearchInts(m.Indices[lo:hi], j)
	if k < hi && m.Indices[k] == j {
		return m.Data[k]
	}
	return 0
}

// NNZ returns the number of non-zero entries.
func (m *Matrix) NNZ() int { return len(m.Data) }

// Sum returns the sum of all entries.
func (m *Matrix) Sum() uint64 {
	var n uint64
	for _, v := range m.Data {
		n += uint64(v)
	}
	return n
}

// RowSums returns the sum of each row.
func (m *Matrix) RowSums() []uint64 {
	sums := make([]uint64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			sums[i] += uint64(m.Data[k])
		}
	}
	return sums
}

// ColSums returns the sum of each column.
func (m *Matrix) ColSums() []uint64 {
	sums := make([]uint64, m.Cols)
	for k, j := range m.Indices {
		sums[j] += uint64(m.Data[k])
	}
	return sums
}

// RowNNZ returns the number of non-zero entries of each row.
func (m *Matrix) RowNNZ() []int {
	n := make([]int, m.Rows)
	for i := range n {
		n[i] = m.Indptr[i+1] - m.Indptr[i]
	}
	return n
}

// Equal reports whether m and o have the same shape and entries.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols || len(m.Data) != len(o.Data) {
		return false
	}
	for i := range m.Indptr {
		if m.Indptr[i] != o.Indptr[i] {
			return false
		}
	}
	for k := range m.Data {
		if m.Indices[k] != o.Indices[k] || m.Data[k] != o.Data[k] {
			return false
		}
	}
	return true
}

// Matrices is the frozen content of a Store: one matrix per channel, all
// indexed by the same cell (row) and gene (column) lists.
type Matrices struct {
	Channels  []string
	Cells     []string
	Genes     []string
	ByChannel map[string]*Matrix
	// Sources maps each gene to the reference it was counted from.
	Sources map[string]string
}

// Channel returns the matrix of channel c, or nil.
func (m *Matrices) Channel(c string) *Matrix { return m.ByChannel[c] }

type entry struct {
	row, col int
	counts   []uint32
}

// Build converts the counts of s into sparse matrices. Rows and columns are
// the lexicographically sorted cell and gene ids. Every channel of s gets a
// matrix, even if it never received a count. Build does not modify s, and
// building twice from the same Store yields identical results.
func Build(s *Store) *Matrices {
	cells := s.cells.sorted()
	genes := s.genes.sorted()
	cellIdx := make(map[string]int, len(cells))
	for i, c := range cells {
		cellIdx[c] = i
	}
	geneIdx := make(map[string]int, len(genes))
	for j, g := range genes {
		geneIdx[g] = j
	}

	entries := make([]entry, 0, len(s.counts))
	for k, v := range s.counts {
		entries = append(entries, entry{row: cellIdx[k.Cell], col: geneIdx[k.Gene], counts: v})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].row != entries[b].row {
			return entries[a].row < entries[b].row
		}
		return entries[a].col < entries[b].col
	})

	m := &Matrices{
		Channels:  append([]string(nil), s.channels...),
		Cells:     cells,
		Genes:     genes,
		ByChannel: make(map[string]*Matrix, len(s.channels)),
		Sources:   make(map[string]string, len(genes)),
	}
	for _, g := range genes {
		if ref, ok := s.sources[g]; ok {
			m.Sources[g] = ref
		}
	}
	for ci, c := range s.channels {
		mat := &Matrix{
			Rows:   len(cells),
			Cols:   len(genes),
			Indptr: make([]int, len(cells)+1),
		}
		for _, e := range entries {
			if n := e.counts[ci]; n > 0 {
				mat.Indices = append(mat.Indices, e.col)
				mat.Data = append(mat.Data, n)
				mat.Indptr[e.row+1]++
			}
		}
		for i := 0; i < mat.Rows; i++ {
			mat.Indptr[i+1] += mat.Indptr[i]
		}
		log.Debug.Printf("channel %s: shape=%dx%d nnz=%d sum=%d", c, mat.Rows, mat.Cols, mat.NNZ(), mat.Sum())
		m.ByChannel[c] = mat
	}
	return m
}
