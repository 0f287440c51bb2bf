package main

/*
bio-dge counts annotated, cell-barcoded alignments into per-cell digital gene
expression matrices, one per count channel.

Each input BAM is named after its reference (genome.bam, miRNA.bam, ...);
records must carry CB (cell), MI (UMI), gn (genes) and gf (feature codes)
tags, and alternative alignments of a read must be adjacent.
*/

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/dge/barcode"
	"github.com/grailbio/dge/bundle"
	"github.com/grailbio/dge/dge"
	"github.com/grailbio/dge/partition"
	"github.com/grailbio/dge/quant"
)

var (
	output              = flag.String("output", "dge", "Output directory")
	sample              = flag.String("sample", "sample", "Sample name, used for output file names")
	flavor              = flag.String("flavor", "default", "Counting flavor, or a per-reference mapping such as 'first@miRNA,chrom@rRNA,default'")
	channels            = flag.String("channels", strings.Join(quant.DefaultOpts.Channels, ","), "Comma separated channels to count")
	mainContributors    = flag.String("x-counts", strings.Join(quant.DefaultOpts.MainContributors, ","), "Channels that also count into the main 'counts' channel")
	alignmentPriorities = flag.String("alignment-priorities", quant.DefaultOpts.AlignmentPriorities.String(), "Feature code priorities for alignment disambiguation")
	genePriorities      = flag.String("gene-priorities", quant.DefaultOpts.GenePriorities.String(), "Feature code priorities for gene disambiguation")
	exonicTags          = flag.String("exonic-tags", joinCodes(quant.DefaultOpts.ExonicTags), "Feature codes counted as exonic")
	intronicTags        = flag.String("intronic-tags", joinCodes(quant.DefaultOpts.IntronicTags), "Feature codes counted as intronic")
	exonIntron          = flag.String("exon-intron", quant.DefaultOpts.ExonIntron, "Exon/intron conflict policy: exon_wins, intron_wins or count_both")
	alignmentSelection  = flag.String("alignment-selection", quant.DefaultOpts.AlignmentSelection, "Alignment selection strategy of the default flavor: priority or take_first")
	geneSelection       = flag.String("gene-selection", quant.DefaultOpts.GeneSelection, "Gene selection strategy of the default flavor: priority or chrom")
	allowList           = flag.String("cell-bc-allowlist", "", "File with allowed cell barcodes, one per line. Other barcodes are counted as 'NA'")
	correctBarcodes     = flag.Bool("cell-bc-correct", false, "Snap cell barcodes one substitution away from exactly one allowed barcode onto it. Requires -cell-bc-allowlist")
	partitions          = flag.Int("partitions", 1, "Number of parallel counting partitions")
	partitioner         = flag.String("partitioner", "prefix", "How barcodes are routed to partitions: prefix (first base) or hash")
	queueLength         = flag.Int("queue-length", partition.DefaultOpts.QueueLength, "Bundles buffered per partition")
	skim                = flag.Int("skim", 1, "Inspect only every n-th record (1 = all)")
	bamThreads          = flag.Int("bam-threads", runtime.NumCPU(), "BGZF decompression goroutines per input")
)

func joinCodes(codes []quant.FeatureCode) string {
	s := make([]string, len(codes))
	for i, c := range codes {
		s[i] = string(c)
	}
	return strings.Join(s, ",")
}

func splitList(s string) []string {
	var out []string
	for _, x := range strings.Split(s, ",") {
		if x = strings.TrimSpace(x); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func bioDGEUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bam...\n", os.Args[0])
	flag.PrintDefaults()
}

func baseOpts() quant.Opts {
	opts := quant.Opts{
		Channels:           splitList(*channels),
		ExonicTags:         quant.ParseFeatureCodes(strings.Join(splitList(*exonicTags), ",")),
		IntronicTags:       quant.ParseFeatureCodes(strings.Join(splitList(*intronicTags), ",")),
		MainContributors:   splitList(*mainContributors),
		ExonIntron:         *exonIntron,
		AlignmentSelection: *alignmentSelection,
		GeneSelection:      *geneSelection,
	}
	var err error
	if opts.AlignmentPriorities, err = quant.ParsePriorityTable(*alignmentPriorities); err != nil {
		log.Fatalf("-alignment-priorities: %v", err)
	}
	if opts.GenePriorities, err = quant.ParsePriorityTable(*genePriorities); err != nil {
		log.Fatalf("-gene-priorities: %v", err)
	}
	return opts
}

func main() {
	flag.Usage = bioDGEUsage
	shutdown := grail.Init()
	defer shutdown()

	inputs := flag.Args()
	if len(inputs) == 0 {
		log.Fatalf("no input BAM given; please check flag syntax")
	}
	ctx := vcontext.Background()

	flavors, err := quant.ParseFlavors(*flavor, quant.BuiltinFlavors(baseOpts()))
	if err != nil {
		log.Fatalf("-flavor %s: %v", *flavor, err)
	}
	part, err := partition.NewPartitioner(*partitioner, *partitions)
	if err != nil {
		log.Fatalf("-partitioner: %v", err)
	}
	runOpts := partition.DefaultOpts
	runOpts.Partitions = *partitions
	runOpts.Partitioner = part
	runOpts.QueueLength = *queueLength
	if *allowList != "" {
		if runOpts.Allowed, err = barcode.ReadAllowList(ctx, *allowList); err != nil {
			log.Fatalf("%v", err)
		}
		if *correctBarcodes {
			runOpts.Barcodes = barcode.NewCorrector(runOpts.Allowed)
		}
	} else if *correctBarcodes {
		log.Fatalf("-cell-bc-correct requires -cell-bc-allowlist")
	}

	readerStats := quant.NewStats()
	src := bundle.NewFileSource(ctx, inputs, *skim, *bamThreads, readerStats)
	res, err := partition.Run(ctx, src, flavors, runOpts)
	if err != nil {
		log.Fatalf("counting: %v", err)
	}
	res.Stats.Merge(readerStats)

	m := dge.Build(res.Store)
	prefix := strings.TrimSuffix(*output, "/") + "/" + *sample
	if err := dge.WriteMatrices(ctx, prefix+".mtx", m); err != nil {
		log.Fatalf("%v", err)
	}
	writes := []struct {
		path string
		fn   func(io.Writer) error
	}{
		{prefix + ".stats.tsv", res.Stats.WriteTSV},
		{prefix + ".summary.tsv", func(w io.Writer) error { return dge.WriteCellSummary(w, m) }},
		{prefix + ".pseudo_bulk.tsv", func(w io.Writer) error { return dge.WritePseudoBulk(w, *sample, m) }},
	}
	for _, wr := range writes {
		if err := dge.WriteFile(ctx, wr.path, wr.fn); err != nil {
			log.Fatalf("%v", err)
		}
	}
	log.Printf("wrote %d cells x %d genes, %d channels to %s.*", len(m.Cells), len(m.Genes), len(m.Channels), prefix)
	log.Debug.Printf("exiting")
}
