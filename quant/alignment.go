package quant

import (
	"github.com/grailbio/base/errors"
)

// AlignmentStrategy chooses how one alignment is picked out of a bundle of
// several.
type AlignmentStrategy int

const (
	// AlignmentByPriority keeps the single candidate with the highest
	// feature priority, and gives up on ties.
	AlignmentByPriority AlignmentStrategy = iota
	// AlignmentTakeFirst always keeps the first candidate. Use it when the
	// aligner already reports the preferred alignment first.
	AlignmentTakeFirst
)

var alignmentStrategyNames = map[string]AlignmentStrategy{
	"priority":   AlignmentByPriority,
	"take_first": AlignmentTakeFirst,
}

// ParseAlignmentStrategy parses "priority" or "take_first".
func ParseAlignmentStrategy(name string) (AlignmentStrategy, error) {
	s, ok := alignmentStrategyNames[name]
	if !ok {
		return 0, errors.E(errors.Invalid, "unknown alignment selection strategy", name)
	}
	return s, nil
}

func (s AlignmentStrategy) String() string {
	for name, v := range alignmentStrategyNames {
		if v == s {
			return name
		}
	}
	return "unknown"
}

// AlignmentSelector picks the alignment a multi-mapping molecule is
// credited to.
type AlignmentSelector interface {
	// Select returns the chosen candidate, or false if the candidates cannot
	// be told apart. len(candidates) > 0.
	Select(candidates []Candidate) (Candidate, bool)
}

// NewAlignmentSelector returns the selector implementing s. The priorities
// are used only by AlignmentByPriority.
func NewAlignmentSelector(s AlignmentStrategy, priorities PriorityTable) AlignmentSelector {
	switch s {
	case AlignmentTakeFirst:
		return firstAlignment{}
	default:
		return priorityAlignment{priorities: priorities}
	}
}

type firstAlignment struct{}

func (firstAlignment) Select(candidates []Candidate) (Candidate, bool) {
	return candidates[0], true
}

// priorityAlignment prefers, for example, an exonic alignment over
// alternative intergenic ones, but refuses to choose between exons of two
// different coding genes.
type priorityAlignment struct {
	priorities PriorityTable
}

func (a priorityAlignment) Select(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 1 {
		return candidates[0], true
	}
	var (
		top  = 0
		nTop = 0
		kept Candidate
	)
	for _, c := range candidates {
		p := a.priorities.Max(c.GeneFeatures)
		switch {
		case p > top:
			top, nTop, kept = p, 1, c
		case p == top:
			nTop, kept = nTop+1, c
		}
	}
	if nTop != 1 {
		return Candidate{}, false
	}
	return kept, true
}
