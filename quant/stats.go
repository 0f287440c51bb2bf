package quant

import (
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/tsv"
)

// Event names recorded by Counter, the bundle reader and barcode correction.
const (
	EventRecords             = "N_records"
	EventUnmapped            = "N_unmapped"
	EventFrags               = "N_frags"
	EventAlnUnique           = "N_aln_unique"
	EventAlnMulti            = "N_aln_multi"
	EventAlnSelected         = "N_aln_selected"
	EventAlnSelectionFailed  = "N_aln_selection_failed"
	EventAlnCountable        = "N_aln_countable"
	EventGeneUnique          = "N_gene_unique"
	EventGeneMulti           = "N_gene_multi"
	EventGeneSelected        = "N_gene_selected"
	EventGeneSelectionFailed = "N_gene_selection_failed"
	EventAlnCounted          = "N_aln_counted"
	EventAlnSense            = "N_aln_sense"
	EventAlnAntisense        = "N_aln_antisense"
	EventChannelNone         = "N_channel_NONE"
	EventCellCorrected       = "N_cell_corrected"
	EventCellAmbiguous       = "N_cell_ambiguous"
	eventStrandPrefix        = "N_aln_"
	eventChannelPrefix       = "N_channel_"
)

// RefStats counts events for one reference. It is not safe for concurrent
// use.
type RefStats map[string]int64

// Count increments the named counter.
func (s RefStats) Count(event string) { s[event]++ }

// Stats holds event counters per reference. Counters never influence
// counting; they are kept for diagnostics only. Stats is not safe for
// concurrent use; parallel workers keep their own and Merge them.
type Stats struct {
	byRef map[string]RefStats
}

// NewStats returns an empty Stats.
func NewStats() *Stats {
	return &Stats{byRef: map[string]RefStats{}}
}

// Ref returns the counters for ref, creating them if needed.
func (s *Stats) Ref(ref string) RefStats {
	r, ok := s.byRef[ref]
	if !ok {
		r = RefStats{}
		s.byRef[ref] = r
	}
	return r
}

// Count increments the named counter of ref.
func (s *Stats) Count(ref, event string) { s.Ref(ref).Count(event) }

// Get returns the value of the named counter of ref.
func (s *Stats) Get(ref, event string) int64 { return s.byRef[ref][event] }

// Refs returns the references with counters, sorted.
func (s *Stats) Refs() []string {
	refs := make([]string, 0, len(s.byRef))
	for ref := range s.byRef {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Merge adds the counters of o to s.
func (s *Stats) Merge(o *Stats) {
	for ref, rs := range o.byRef {
		dst := s.Ref(ref)
		for event, n := range rs {
			dst[event] += n
		}
	}
}

// WriteTSV writes one "ref event count" row per counter, sorted by
// reference and event name.
func (s *Stats) WriteTSV(w io.Writer) error {
	out := tsv.NewWriter(w)
	out.WriteString("ref")
	out.WriteString("event")
	out.WriteString("count")
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, ref := range s.Refs() {
		rs := s.byRef[ref]
		events := make([]string, 0, len(rs))
		for event := range rs {
			events = append(events, event)
		}
		sort.Strings(events)
		for _, event := range events {
			out.WriteString(ref)
			out.WriteString(event)
			out.WriteString(strconv.FormatInt(rs[event], 10))
			if err := out.EndLine(); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}
