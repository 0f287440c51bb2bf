package quant

import (
	"github.com/grailbio/base/errors"
)

// GeneStrategy chooses how the gene of an alignment is determined.
type GeneStrategy int

const (
	// GeneByPriority keeps the single gene with the highest feature priority.
	GeneByPriority GeneStrategy = iota
	// GeneIsChrom credits alignments overlapping several genes to their
	// chromosome, with a non-coding exon feature. Useful for references
	// such as rRNA where gene identity does not matter.
	GeneIsChrom
)

var geneStrategyNames = map[string]GeneStrategy{
	"priority": GeneByPriority,
	"chrom":    GeneIsChrom,
}

// ParseGeneStrategy parses "priority" or "chrom".
func ParseGeneStrategy(name string) (GeneStrategy, error) {
	s, ok := geneStrategyNames[name]
	if !ok {
		return 0, errors.E(errors.Invalid, "unknown gene selection strategy", name)
	}
	return s, nil
}

func (s GeneStrategy) String() string {
	for name, v := range geneStrategyNames {
		if v == s {
			return name
		}
	}
	return "unknown"
}

// GeneSelector picks the gene an alignment is credited to. A candidate
// with a single gene name always gets that gene and its first feature code,
// whatever the strategy.
type GeneSelector interface {
	// Select returns the gene and the feature codes attributed to it, or
	// false if no single gene can be chosen.
	Select(c Candidate) (string, []FeatureCode, bool)
}

// singleGene returns the gene of a candidate with one gene name. Extra
// codes of a non-parallel "gf" list are ignored.
func singleGene(c Candidate) (string, []FeatureCode, bool) {
	return c.GeneNames[0], []FeatureCode{featureAt(c.GeneFeatures, 0)}, true
}

// NewGeneSelector returns the selector implementing s. The priorities are
// used only by GeneByPriority.
func NewGeneSelector(s GeneStrategy, priorities PriorityTable) GeneSelector {
	switch s {
	case GeneIsChrom:
		return chromGene{}
	default:
		return priorityGene{priorities: priorities}
	}
}

var chromFeatures = []FeatureCode{NoncodingExon}

type chromGene struct{}

func (chromGene) Select(c Candidate) (string, []FeatureCode, bool) {
	if len(c.GeneNames) == 1 {
		return singleGene(c)
	}
	return c.Chrom, chromFeatures, true
}

type priorityGene struct {
	priorities PriorityTable
}

// Select implements GeneSelector. A gene may be listed several times, once
// per overlapping isoform; its priority is the maximum over all of them and
// the returned codes are all of its codes in annotation order.
func (g priorityGene) Select(c Candidate) (string, []FeatureCode, bool) {
	if len(c.GeneNames) == 1 {
		return singleGene(c)
	}
	var (
		genes []string // distinct names, first occurrence order
		prio  = map[string]int{}
		max   = 0
	)
	for i, name := range c.GeneNames {
		p := g.priorities.Priority(featureAt(c.GeneFeatures, i))
		old, seen := prio[name]
		if !seen {
			genes = append(genes, name)
		}
		if !seen || p > old {
			prio[name] = p
		}
		if p > max {
			max = p
		}
	}
	var (
		selected string
		nTop     int
	)
	for _, name := range genes {
		if prio[name] == max {
			selected = name
			nTop++
		}
	}
	if nTop != 1 {
		return "", nil, false
	}
	var codes []FeatureCode
	for i, name := range c.GeneNames {
		if name == selected {
			codes = append(codes, featureAt(c.GeneFeatures, i))
		}
	}
	return selected, codes, true
}

// featureAt returns codes[i], or NoFeature when the annotation lists fewer
// codes than genes.
func featureAt(codes []FeatureCode, i int) FeatureCode {
	if i < len(codes) {
		return codes[i]
	}
	return NoFeature
}
