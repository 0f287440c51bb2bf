package quant

// Candidate is one alignment of a molecule, reduced to the fields that
// matter for counting.
type Candidate struct {
	// Chrom is the reference sequence name.
	Chrom string
	// Strand is '+' or '-'.
	Strand byte
	// GeneNames lists the genes overlapping the alignment ("gn" tag).
	GeneNames []string
	// GeneFeatures is parallel to GeneNames ("gf" tag).
	GeneFeatures []FeatureCode
	// Score is the alignment score ("AS" tag).
	Score int
}

// Bundle is the set of alternative alignments of one sequenced molecule.
type Bundle struct {
	// Ref names the reference (genome, miRNA, rRNA, ...) the alignments were
	// made against. It selects the counting flavor and statistics scope.
	Ref        string
	Cell       string
	UMI        string
	Candidates []Candidate
}
