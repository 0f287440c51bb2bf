package quant

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/grailbio/base/errors"
)

// FeatureCode is the annotation tag ("gf" BAM tag entry) describing the
// genomic feature an alignment overlaps. Upper case codes are in sense
// direction with respect to the gene, lower case codes are antisense.
type FeatureCode string

const (
	CodingExon             FeatureCode = "C"
	CodingExonAntisense    FeatureCode = "c"
	UTRExon                FeatureCode = "U"
	UTRExonAntisense       FeatureCode = "u"
	CodingUTRExon          FeatureCode = "CU"
	CodingUTRExonAntisense FeatureCode = "cu"
	NoncodingExon          FeatureCode = "N"
	NoncodingExonAntisense FeatureCode = "n"
	Intron                 FeatureCode = "I"
	IntronAntisense        FeatureCode = "i"
	// NoFeature marks an alignment without any annotation.
	NoFeature FeatureCode = "-"
)

// Antisense reports whether f is an antisense code.
func (f FeatureCode) Antisense() bool {
	for _, r := range f {
		if unicode.IsLetter(r) {
			return unicode.IsLower(r)
		}
	}
	return false
}

// PriorityTable maps feature codes to disambiguation priorities. Codes
// missing from the table have priority 0.
type PriorityTable map[FeatureCode]int

// DefaultPriorities is used for both alignment and gene disambiguation
// unless configured otherwise.
var DefaultPriorities = PriorityTable{
	CodingExon:             101,
	CodingExonAntisense:    100,
	UTRExon:                51,
	UTRExonAntisense:       50,
	CodingUTRExon:          51, // should never occur in practice
	CodingUTRExonAntisense: 50,
	NoncodingExon:          21,
	NoncodingExonAntisense: 20,
	Intron:                 11,
	IntronAntisense:        10,
	NoFeature:              0,
}

// Priority returns the priority of f.
func (t PriorityTable) Priority(f FeatureCode) int {
	return t[f]
}

// Max returns the highest priority among codes, or 0 if codes is empty.
func (t PriorityTable) Max(codes []FeatureCode) int {
	max := 0
	for _, f := range codes {
		if p := t[f]; p > max {
			max = p
		}
	}
	return max
}

// Validate checks that every priority is non-negative.
func (t PriorityTable) Validate() error {
	for f, p := range t {
		if f == "" {
			return errors.E(errors.Invalid, "empty feature code in priority table")
		}
		if p < 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("negative priority %d for feature code %q", p, f))
		}
	}
	return nil
}

// String formats t as accepted by ParsePriorityTable, ordered by descending
// priority.
func (t PriorityTable) String() string {
	codes := make([]FeatureCode, 0, len(t))
	for f := range t {
		codes = append(codes, f)
	}
	sort.Slice(codes, func(i, j int) bool {
		if t[codes[i]] != t[codes[j]] {
			return t[codes[i]] > t[codes[j]]
		}
		return codes[i] < codes[j]
	})
	parts := make([]string, len(codes))
	for i, f := range codes {
		parts[i] = string(f) + "=" + strconv.Itoa(t[f])
	}
	return strings.Join(parts, ",")
}

// ParsePriorityTable parses a comma separated list of code=priority pairs,
// e.g. "C=101,c=100,I=11".
func ParsePriorityTable(s string) (PriorityTable, error) {
	t := PriorityTable{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		kv := strings.SplitN(item, "=", 2)
		if len(kv) != 2 {
			return nil, errors.E(errors.Invalid, "malformed priority entry", item, "(expect code=priority)")
		}
		p, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "priority of", kv[0])
		}
		code := FeatureCode(strings.TrimSpace(kv[0]))
		if _, ok := t[code]; ok {
			return nil, errors.E(errors.Invalid, "duplicate feature code", string(code))
		}
		t[code] = p
	}
	if len(t) == 0 {
		return nil, errors.E(errors.Invalid, "empty priority table")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// FeatureSet is a membership set of feature codes.
type FeatureSet map[FeatureCode]struct{}

// NewFeatureSet returns a set containing codes.
func NewFeatureSet(codes ...FeatureCode) FeatureSet {
	s := make(FeatureSet, len(codes))
	for _, f := range codes {
		s[f] = struct{}{}
	}
	return s
}

// Has reports whether f is in s.
func (s FeatureSet) Has(f FeatureCode) bool {
	_, ok := s[f]
	return ok
}

// ParseFeatureCodes splits a comma separated list of feature codes, as found
// in the "gf" BAM tag.
func ParseFeatureCodes(s string) []FeatureCode {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	codes := make([]FeatureCode, len(parts))
	for i, p := range parts {
		codes[i] = FeatureCode(p)
	}
	return codes
}
