package dge

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/dge/quant"
	"github.com/klauspost/compress/gzip"
)

// WriteFile creates path and passes its writer to fn. Paths ending in ".gz"
// are gzip compressed.
func WriteFile(ctx context.Context, path string, fn func(w io.Writer) error) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer func() {
		if e := out.Close(ctx); e != nil && err == nil {
			err = errors.E(e, "close", path)
		}
	}()
	w := out.Writer(ctx)
	if !strings.HasSuffix(path, ".gz") {
		if err = fn(w); err != nil {
			return errors.E(err, "write", path)
		}
		return nil
	}
	gz := gzip.NewWriter(w)
	if err = fn(gz); err != nil {
		return errors.E(err, "write", path)
	}
	if err = gz.Close(); err != nil {
		return errors.E(err, "gzip", path)
	}
	return nil
}

// WriteIDs writes one id per line.
func WriteIDs(w io.Writer, ids []string) error {
	out := tsv.NewWriter(w)
	for _, id := range ids {
		out.WriteString(id)
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// WriteMatrixMarket writes m in MatrixMarket coordinate format with 1-based
// indices, rows sorted, columns ascending within a row.
func WriteMatrixMarket(w io.Writer, m *Matrix) error {
	out := tsv.NewWriter(w)
	out.WriteString("%%MatrixMarket matrix coordinate integer general")
	if err := out.EndLine(); err != nil {
		return err
	}
	out.WriteUint32(uint32(m.Rows))
	out.WriteUint32(uint32(m.Cols))
	out.WriteUint32(uint32(m.NNZ()))
	if err := out.EndLine(); err != nil {
		return err
	}
	for i := 0; i < m.Rows; i++ {
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			out.WriteUint32(uint32(i + 1))
			out.WriteUint32(uint32(m.Indices[k] + 1))
			out.WriteUint32(m.Data[k])
			if err := out.EndLine(); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}

// WriteMatrices writes dir/barcodes.tsv, dir/genes.tsv and one
// dir/<channel>.mtx per channel.
func WriteMatrices(ctx context.Context, dir string, m *Matrices) error {
	dir = strings.TrimSuffix(dir, "/")
	if err := WriteFile(ctx, dir+"/barcodes.tsv", func(w io.Writer) error { return WriteIDs(w, m.Cells) }); err != nil {
		return err
	}
	if err := WriteFile(ctx, dir+"/genes.tsv", func(w io.Writer) error { return WriteIDs(w, m.Genes) }); err != nil {
		return err
	}
	for _, c := range m.Channels {
		mat := m.ByChannel[c]
		if err := WriteFile(ctx, dir+"/"+c+".mtx", func(w io.Writer) error { return WriteMatrixMarket(w, mat) }); err != nil {
			return err
		}
	}
	return nil
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

// WriteCellSummary writes per-cell marginals: the number of genes detected
// in the main channel, the row sum of every channel, and the total reads
// and unique molecules over exonic and intronic channels.
func WriteCellSummary(w io.Writer, m *Matrices) error {
	sums := make([][]uint64, len(m.Channels))
	for ci, c := range m.Channels {
		sums[ci] = m.ByChannel[c].RowSums()
	}
	var nGenes []int
	if main := m.ByChannel[quant.MainChannel]; main != nil {
		nGenes = main.RowNNZ()
	}
	colOf := func(c string) []uint64 {
		for ci, name := range m.Channels {
			if name == c {
				return sums[ci]
			}
		}
		return nil
	}
	addCols := func(a, b string) []uint64 {
		x, y := colOf(a), colOf(b)
		if x == nil && y == nil {
			return nil
		}
		total := make([]uint64, len(m.Cells))
		for i := range total {
			if x != nil {
				total[i] += x[i]
			}
			if y != nil {
				total[i] += y[i]
			}
		}
		return total
	}
	nReads := addCols(quant.ExonicReads, quant.IntronicReads)
	nCounts := addCols(quant.ExonicCounts, quant.IntronicCounts)

	out := tsv.NewWriter(w)
	out.WriteString("cell_bc")
	if nGenes != nil {
		out.WriteString("n_genes")
	}
	for _, c := range m.Channels {
		out.WriteString("n_" + c)
	}
	if nReads != nil {
		out.WriteString("n_reads")
	}
	if nCounts != nil {
		out.WriteString("n_counts_total")
	}
	if err := out.EndLine(); err != nil {
		return err
	}
	for i, cell := range m.Cells {
		out.WriteString(cell)
		if nGenes != nil {
			out.WriteUint32(uint32(nGenes[i]))
		}
		for ci := range m.Channels {
			out.WriteString(formatUint(sums[ci][i]))
		}
		if nReads != nil {
			out.WriteString(formatUint(nReads[i]))
		}
		if nCounts != nil {
			out.WriteString(formatUint(nCounts[i]))
		}
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// WritePseudoBulk writes per-gene column sums of every channel, with the
// gene's reference, sorted by ascending main channel count.
func WritePseudoBulk(w io.Writer, sample string, m *Matrices) error {
	sums := make([][]uint64, len(m.Channels))
	mainIdx := -1
	for ci, c := range m.Channels {
		sums[ci] = m.ByChannel[c].ColSums()
		if c == quant.MainChannel {
			mainIdx = ci
		}
	}
	order := make([]int, len(m.Genes))
	for j := range order {
		order[j] = j
	}
	if mainIdx >= 0 {
		main := sums[mainIdx]
		sort.SliceStable(order, func(a, b int) bool { return main[order[a]] < main[order[b]] })
	}

	out := tsv.NewWriter(w)
	out.WriteString("sample_name")
	out.WriteString("reference")
	out.WriteString("gene")
	for _, c := range m.Channels {
		out.WriteString(c)
	}
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, j := range order {
		gene := m.Genes[j]
		out.WriteString(sample)
		out.WriteString(m.Sources[gene])
		out.WriteString(gene)
		for ci := range m.Channels {
			out.WriteString(formatUint(sums[ci][j]))
		}
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
