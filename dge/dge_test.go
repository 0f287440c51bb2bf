package dge

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/dge/quant"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChannels = []string{quant.MainChannel, quant.ExonicCounts, quant.ExonicReads}

func newTestStore(t *testing.T, allowed map[string]struct{}) *Store {
	s, err := NewStore(testChannels, allowed)
	require.NoError(t, err)
	return s
}

func TestStoreAdd(t *testing.T) {
	s := newTestStore(t, nil)
	s.Add("GeneA", "AAAC", []string{quant.ExonicReads, quant.ExonicCounts, quant.MainChannel})
	s.Add("GeneA", "AAAC", []string{quant.ExonicReads})
	s.Add("GeneB", "CCCA", []string{quant.ExonicReads, "intronic_reads"})
	s.Add("GeneC", "GGGA", nil)

	expect.EQ(t, s.Get("GeneA", "AAAC", quant.ExonicReads), uint32(2))
	expect.EQ(t, s.Get("GeneA", "AAAC", quant.ExonicCounts), uint32(1))
	expect.EQ(t, s.Get("GeneA", "AAAC", quant.MainChannel), uint32(1))
	expect.EQ(t, s.Get("GeneB", "CCCA", quant.ExonicReads), uint32(1))
	expect.EQ(t, s.Get("GeneB", "CCCA", "intronic_reads"), uint32(0))
	expect.EQ(t, s.Get("GeneX", "AAAC", quant.ExonicReads), uint32(0))
	// An empty channel list leaves no trace.
	expect.EQ(t, s.NumGenes(), 2)
	expect.EQ(t, s.NumCells(), 2)
	expect.EQ(t, s.Len(), 2)

	_, err := NewStore([]string{"a", "a"}, nil)
	expect.NotNil(t, err)
}

func TestStoreAllowList(t *testing.T) {
	s := newTestStore(t, map[string]struct{}{"AAAC": {}})
	s.Add("GeneA", "TTTT", []string{quant.ExonicReads})
	s.Add("GeneA", "GGGG", []string{quant.ExonicReads})
	s.Add("GeneA", "AAAC", []string{quant.ExonicReads})

	expect.EQ(t, s.Get("GeneA", UnassignedCell, quant.ExonicReads), uint32(2))
	expect.EQ(t, s.Get("GeneA", "AAAC", quant.ExonicReads), uint32(1))
	expect.EQ(t, s.Get("GeneA", "TTTT", quant.ExonicReads), uint32(0))
	expect.EQ(t, Build(s).Cells, []string{"AAAC", UnassignedCell})
}

func TestStoreMerge(t *testing.T) {
	a := newTestStore(t, nil)
	a.Add("GeneA", "AAAC", []string{quant.ExonicReads})
	a.SetSource("GeneA", "genome")
	b := newTestStore(t, nil)
	b.Add("GeneA", "AAAC", []string{quant.ExonicReads})
	b.Add("mir-21", "CCCA", []string{quant.ExonicCounts})
	b.SetSource("mir-21", "miRNA")

	require.NoError(t, a.Merge(b))
	expect.EQ(t, a.Get("GeneA", "AAAC", quant.ExonicReads), uint32(2))
	expect.EQ(t, a.Get("mir-21", "CCCA", quant.ExonicCounts), uint32(1))
	expect.EQ(t, a.Source("mir-21"), "miRNA")
	expect.EQ(t, a.NumCells(), 2)

	other, err := NewStore([]string{quant.MainChannel}, nil)
	require.NoError(t, err)
	expect.NotNil(t, a.Merge(other))
}

func TestBuild(t *testing.T) {
	s := newTestStore(t, nil)
	s.Add("GeneB", "CCCA", []string{quant.ExonicReads, quant.ExonicCounts, quant.MainChannel})
	s.Add("GeneA", "CCCA", []string{quant.ExonicReads})
	s.Add("GeneA", "AAAC", []string{quant.ExonicReads})
	s.Add("GeneA", "AAAC", []string{quant.ExonicReads})

	m := Build(s)
	expect.EQ(t, m.Cells, []string{"AAAC", "CCCA"})
	expect.EQ(t, m.Genes, []string{"GeneA", "GeneB"})
	expect.EQ(t, m.Channels, testChannels)

	reads := m.Channel(quant.ExonicReads)
	expect.EQ(t, reads.At(0, 0), uint32(2))
	expect.EQ(t, reads.At(0, 1), uint32(0))
	expect.EQ(t, reads.At(1, 0), uint32(1))
	expect.EQ(t, reads.At(1, 1), uint32(1))
	expect.EQ(t, reads.NNZ(), 3)
	expect.EQ(t, reads.Sum(), uint64(4))
	expect.EQ(t, reads.RowSums(), []uint64{2, 2})
	expect.EQ(t, reads.ColSums(), []uint64{3, 1})

	counts := m.Channel(quant.MainChannel)
	expect.EQ(t, counts.Rows, 2)
	expect.EQ(t, counts.Cols, 2)
	expect.EQ(t, counts.NNZ(), 1)
	expect.EQ(t, counts.RowNNZ(), []int{0, 1})

	// Building again from the same store gives the same matrices.
	again := Build(s)
	for _, c := range testChannels {
		assert.True(t, m.Channel(c).Equal(again.Channel(c)), c)
	}
}

func TestBuildEmptyChannel(t *testing.T) {
	s, err := NewStore([]string{quant.ExonicReads, "never"}, nil)
	require.NoError(t, err)
	s.Add("GeneA", "AAAC", []string{quant.ExonicReads})
	m := Build(s)
	never := m.Channel("never")
	require.NotNil(t, never)
	expect.EQ(t, never.Rows, 1)
	expect.EQ(t, never.Cols, 1)
	expect.EQ(t, never.NNZ(), 0)
	expect.EQ(t, never.Indptr, []int{0, 0})
	expect.True(t, m.Channel("missing") == nil)
}

func testMatrices(t *testing.T) *Matrices {
	s, err := NewStore([]string{quant.MainChannel, quant.ExonicCounts, quant.ExonicReads, quant.IntronicCounts, quant.IntronicReads}, nil)
	require.NoError(t, err)
	s.Add("GeneA", "AAAC", []string{quant.ExonicReads, quant.ExonicCounts, quant.MainChannel})
	s.Add("GeneA", "AAAC", []string{quant.ExonicReads})
	s.Add("GeneB", "AAAC", []string{quant.IntronicReads, quant.IntronicCounts, quant.MainChannel})
	s.Add("GeneB", "CCCA", []string{quant.IntronicReads, quant.IntronicCounts, quant.MainChannel})
	s.Add("GeneB", "CCCA", []string{quant.IntronicReads, quant.IntronicCounts, quant.MainChannel})
	s.SetSource("GeneA", "genome")
	s.SetSource("GeneB", "genome")
	return Build(s)
}

func TestWriteMatrixMarket(t *testing.T) {
	m := testMatrices(t)
	var buf bytes.Buffer
	require.NoError(t, WriteMatrixMarket(&buf, m.Channel(quant.MainChannel)))
	expect.EQ(t, buf.String(), "%%MatrixMarket matrix coordinate integer general\n"+
		"2\t2\t3\n"+
		"1\t1\t1\n"+
		"1\t2\t1\n"+
		"2\t2\t2\n")
}

func TestWriteCellSummary(t *testing.T) {
	m := testMatrices(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCellSummary(&buf, m))
	expect.EQ(t, buf.String(),
		"cell_bc\tn_genes\tn_counts\tn_exonic_counts\tn_exonic_reads\tn_intronic_counts\tn_intronic_reads\tn_reads\tn_counts_total\n"+
			"AAAC\t2\t2\t1\t2\t1\t1\t3\t2\n"+
			"CCCA\t1\t2\t0\t0\t2\t2\t2\t2\n")
}

func TestWritePseudoBulk(t *testing.T) {
	m := testMatrices(t)
	var buf bytes.Buffer
	require.NoError(t, WritePseudoBulk(&buf, "s1", m))
	expect.EQ(t, buf.String(),
		"sample_name\treference\tgene\tcounts\texonic_counts\texonic_reads\tintronic_counts\tintronic_reads\n"+
			"s1\tgenome\tGeneA\t1\t1\t2\t0\t0\n"+
			"s1\tgenome\tGeneB\t3\t0\t0\t3\t3\n")
}

func TestWriteMatrices(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	m := testMatrices(t)
	dir := filepath.Join(tempDir, "s1.mtx")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, WriteMatrices(ctx, dir, m))
	for _, name := range []string{"barcodes.tsv", "genes.tsv", "counts.mtx", "exonic_reads.mtx", "intronic_counts.mtx"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	data, err := ioutil.ReadFile(filepath.Join(dir, "barcodes.tsv"))
	require.NoError(t, err)
	expect.EQ(t, string(data), "AAAC\nCCCA\n")
}

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	defer shutdown()
	os.Exit(m.Run())
}
