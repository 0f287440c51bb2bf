package quant

import (
	"sort"

	"github.com/grailbio/base/errors"
)

// Names of the channels produced by Classifier.
const (
	MainChannel    = "counts"
	ExonicReads    = "exonic_reads"
	ExonicCounts   = "exonic_counts"
	IntronicReads  = "intronic_reads"
	IntronicCounts = "intronic_counts"
)

// ChannelSet is a sorted set of channel names.
type ChannelSet []string

// Has reports whether s contains c.
func (s ChannelSet) Has(c string) bool {
	i := sort.SearchStrings(s, c)
	return i < len(s) && s[i] == c
}

// Add returns s with c added.
func (s ChannelSet) Add(c string) ChannelSet {
	i := sort.SearchStrings(s, c)
	if i < len(s) && s[i] == c {
		return s
	}
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = c
	return s
}

// Remove returns s without the given channels.
func (s ChannelSet) Remove(cs ...string) ChannelSet {
	out := s[:0]
	for _, c := range s {
		drop := false
		for _, r := range cs {
			if c == r {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, c)
		}
	}
	return out
}

// Intersects reports whether s and o share a channel.
func (s ChannelSet) Intersects(o ChannelSet) bool {
	for _, c := range s {
		if o.Has(c) {
			return true
		}
	}
	return false
}

// NewChannelSet returns the set of the given channel names.
func NewChannelSet(channels ...string) ChannelSet {
	var s ChannelSet
	for _, c := range channels {
		s = s.Add(c)
	}
	return s
}

// ConflictPolicy resolves molecules that carry both exonic and intronic
// annotations, which happens when overlapping isoforms disagree.
type ConflictPolicy int

const (
	// ExonWins drops the intronic channels.
	ExonWins ConflictPolicy = iota
	// IntronWins drops the exonic channels.
	IntronWins
	// CountBoth keeps both.
	CountBoth
)

var conflictPolicyNames = map[string]ConflictPolicy{
	"exon_wins":   ExonWins,
	"intron_wins": IntronWins,
	"count_both":  CountBoth,
}

// ParseConflictPolicy parses "exon_wins", "intron_wins" or "count_both".
func ParseConflictPolicy(name string) (ConflictPolicy, error) {
	p, ok := conflictPolicyNames[name]
	if !ok {
		return 0, errors.E(errors.Invalid, "unknown exon/intron disambiguation policy", name)
	}
	return p, nil
}

func (p ConflictPolicy) String() string {
	for name, v := range conflictPolicyNames {
		if v == p {
			return name
		}
	}
	return "unknown"
}

func (p ConflictPolicy) apply(s ChannelSet) ChannelSet {
	switch p {
	case ExonWins:
		return s.Remove(IntronicReads, IntronicCounts)
	case IntronWins:
		return s.Remove(ExonicReads, ExonicCounts)
	}
	return s
}

// Classifier decides which channels a molecule counts into. It is
// immutable and safe for concurrent use.
type Classifier struct {
	Exonic   FeatureSet
	Intronic FeatureSet
	Policy   ConflictPolicy
	// Main lists the channels that, when hit, also count into MainChannel.
	Main ChannelSet
}

// Classify returns the channels for a molecule annotated with codes. uniq
// tells whether this is the first observation of the molecule's (cell, UMI)
// pair; it must be determined once, before classification.
func (c *Classifier) Classify(codes []FeatureCode, uniq bool) ChannelSet {
	var (
		s            ChannelSet
		exon, intron bool
	)
	for _, f := range codes {
		switch {
		case c.Exonic.Has(f):
			exon = true
			s = s.Add(ExonicReads)
			if uniq {
				s = s.Add(ExonicCounts)
			}
		case c.Intronic.Has(f):
			intron = true
			s = s.Add(IntronicReads)
			if uniq {
				s = s.Add(IntronicCounts)
			}
		}
	}
	if exon && intron {
		s = c.Policy.apply(s)
	}
	if s.Intersects(c.Main) {
		s = s.Add(MainChannel)
	}
	return s
}
