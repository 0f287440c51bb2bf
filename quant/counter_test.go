package quant

import (
	"bytes"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(t *testing.T, o Opts) (*Counter, *Stats) {
	c, err := o.Compile()
	require.NoError(t, err)
	stats := NewStats()
	return c.NewCounter(NewUniqueSet(), stats.Ref("genome")), stats
}

func TestCounterUniqueAlignment(t *testing.T) {
	c, stats := newTestCounter(t, DefaultOpts)
	gene, channels := c.Process(Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "GGTT",
		Candidates: []Candidate{cand("chr1", []string{"GeneA"}, CodingExon)},
	})
	expect.EQ(t, gene, "GeneA")
	expect.EQ(t, channels, NewChannelSet(ExonicReads, ExonicCounts, MainChannel))
	for _, event := range []string{EventAlnUnique, EventAlnCountable, "N_aln_+", EventGeneUnique,
		EventAlnCounted, EventAlnSense, "N_channel_exonic_reads", "N_channel_exonic_counts", "N_channel_counts"} {
		assert.EqualValues(t, 1, stats.Get("genome", event), event)
	}
	expect.EQ(t, stats.Get("genome", EventAlnMulti), int64(0))
}

func TestCounterAlignmentTie(t *testing.T) {
	c, stats := newTestCounter(t, DefaultOpts)
	gene, channels := c.Process(Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "GGTT",
		Candidates: []Candidate{
			cand("chr1", []string{"GeneA"}, CodingExon),
			cand("chr2", []string{"GeneB"}, CodingExon),
		},
	})
	expect.EQ(t, gene, "")
	expect.EQ(t, len(channels), 0)
	expect.EQ(t, stats.Get("genome", EventAlnMulti), int64(1))
	expect.EQ(t, stats.Get("genome", EventAlnSelectionFailed), int64(1))
	expect.EQ(t, stats.Get("genome", EventAlnCountable), int64(0))

	// A failed bundle must not consume the molecule.
	gene, channels = c.Process(Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "GGTT",
		Candidates: []Candidate{cand("chr1", []string{"GeneA"}, CodingExon)},
	})
	expect.EQ(t, gene, "GeneA")
	expect.True(t, channels.Has(ExonicCounts))
}

func TestCounterExonIntronConflict(t *testing.T) {
	c, _ := newTestCounter(t, DefaultOpts)
	gene, channels := c.Process(Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "GGTT",
		Candidates: []Candidate{cand("chr1", []string{"GeneA", "GeneA"}, CodingExon, Intron)},
	})
	expect.EQ(t, gene, "GeneA")
	expect.EQ(t, channels, NewChannelSet(ExonicReads, ExonicCounts, MainChannel))

	o := DefaultOpts
	o.ExonIntron = "count_both"
	c, _ = newTestCounter(t, o)
	_, channels = c.Process(Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "GGTT",
		Candidates: []Candidate{cand("chr1", []string{"GeneA", "GeneA"}, CodingExon, Intron)},
	})
	expect.EQ(t, channels, NewChannelSet(ExonicReads, ExonicCounts, IntronicReads, IntronicCounts, MainChannel))
}

func TestCounterDuplicateMolecule(t *testing.T) {
	c, stats := newTestCounter(t, DefaultOpts)
	b := Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "GGTT",
		Candidates: []Candidate{cand("chr1", []string{"GeneA"}, UTRExon)},
	}
	_, first := c.Process(b)
	_, second := c.Process(b)
	expect.EQ(t, first, NewChannelSet(ExonicReads, ExonicCounts, MainChannel))
	expect.EQ(t, second, NewChannelSet(ExonicReads))
	expect.EQ(t, stats.Get("genome", "N_channel_exonic_reads"), int64(2))
	expect.EQ(t, stats.Get("genome", "N_channel_exonic_counts"), int64(1))

	// Same UMI in another cell is another molecule.
	_, other := c.Process(Bundle{Ref: "genome", Cell: "CCCA", UMI: "GGTT", Candidates: b.Candidates})
	expect.True(t, other.Has(ExonicCounts))
}

func TestCounterGeneSelection(t *testing.T) {
	c, stats := newTestCounter(t, DefaultOpts)
	gene, _ := c.Process(Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "A",
		Candidates: []Candidate{cand("chr1", []string{"GeneA", "GeneB"}, IntronAntisense, CodingExonAntisense)},
	})
	expect.EQ(t, gene, "GeneB")
	expect.EQ(t, stats.Get("genome", EventGeneMulti), int64(1))
	expect.EQ(t, stats.Get("genome", EventGeneSelected), int64(1))
	expect.EQ(t, stats.Get("genome", EventAlnAntisense), int64(1))

	gene, _ = c.Process(Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "B",
		Candidates: []Candidate{cand("chr1", []string{"GeneA", "GeneB"}, Intron, Intron)},
	})
	expect.EQ(t, gene, "")
	expect.EQ(t, stats.Get("genome", EventGeneSelectionFailed), int64(1))
}

func TestCounterUnannotated(t *testing.T) {
	c, stats := newTestCounter(t, DefaultOpts)
	gene, channels := c.Process(Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "A",
		Candidates: []Candidate{cand("chr1", []string{"-"}, NoFeature)},
	})
	expect.EQ(t, gene, "-")
	expect.EQ(t, len(channels), 0)
	expect.EQ(t, stats.Get("genome", EventChannelNone), int64(1))
}

func TestCounterChromFlavor(t *testing.T) {
	o := DefaultOpts
	o.GeneSelection = "chrom"
	c, stats := newTestCounter(t, o)
	gene, channels := c.Process(Bundle{
		Ref: "rRNA", Cell: "AAAC", UMI: "A",
		Candidates: []Candidate{cand("RNA45S", []string{"GeneA", "GeneB"}, Intron, IntronAntisense)},
	})
	expect.EQ(t, gene, "RNA45S")
	expect.EQ(t, channels, NewChannelSet(ExonicReads, ExonicCounts, MainChannel))
	expect.EQ(t, stats.Get("genome", EventGeneSelected), int64(1))

	// One gene name is kept as is, with its own code.
	gene, channels = c.Process(Bundle{
		Ref: "rRNA", Cell: "AAAC", UMI: "B",
		Candidates: []Candidate{cand("RNA45S", []string{"GeneA"}, Intron)},
	})
	expect.EQ(t, gene, "GeneA")
	expect.EQ(t, channels, NewChannelSet(IntronicReads, IntronicCounts, MainChannel))
	expect.EQ(t, stats.Get("genome", EventGeneUnique), int64(1))
}

func TestCounterSingleGeneUsesFirstCode(t *testing.T) {
	o := DefaultOpts
	o.ExonIntron = "intron_wins"
	c, _ := newTestCounter(t, o)
	gene, channels := c.Process(Bundle{
		Ref: "genome", Cell: "AAAC", UMI: "A",
		Candidates: []Candidate{cand("chr1", []string{"-"}, CodingExon, Intron)},
	})
	expect.EQ(t, gene, "-")
	expect.EQ(t, channels, NewChannelSet(ExonicReads, ExonicCounts, MainChannel))
}

func TestStats(t *testing.T) {
	a := NewStats()
	a.Count("genome", EventRecords)
	a.Count("genome", EventRecords)
	a.Count("miRNA", EventFrags)
	b := NewStats()
	b.Count("genome", EventRecords)
	b.Count("genome", EventUnmapped)
	a.Merge(b)
	expect.EQ(t, a.Refs(), []string{"genome", "miRNA"})
	expect.EQ(t, a.Get("genome", EventRecords), int64(3))
	expect.EQ(t, a.Get("rRNA", EventRecords), int64(0))

	var buf bytes.Buffer
	require.NoError(t, a.WriteTSV(&buf))
	expect.EQ(t, buf.String(), "ref\tevent\tcount\n"+
		"genome\tN_records\t3\n"+
		"genome\tN_unmapped\t1\n"+
		"miRNA\tN_frags\t1\n")
}
