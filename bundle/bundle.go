// Package bundle groups consecutive alignment records that share a read name
// into quant.Bundles.
package bundle

import (
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/dge/quant"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// Source yields bundles in stream order. Thread compatible.
type Source interface {
	// Scan advances to the next bundle. It returns false at the end of the
	// stream or on error; Err distinguishes the two.
	Scan() bool
	// Bundle returns the current bundle. It must be called only after Scan
	// returned true.
	Bundle() quant.Bundle
	// Err returns the first error encountered, if any.
	Err() error
}

// RecordReader is implemented by *bam.Reader.
type RecordReader interface {
	Read() (*sam.Record, error)
}

var (
	tagCell     = sam.NewTag("CB")
	tagUMI      = sam.NewTag("MI")
	tagGenes    = sam.NewTag("gn")
	tagFeatures = sam.NewTag("gf")
	tagScore    = sam.NewTag("AS")
)

// Opts controls a Reader.
type Opts struct {
	// Ref names the reference the records were aligned to. It is copied into
	// every bundle.
	Ref string
	// Skim > 1 inspects only every Skim-th record, for quick previews.
	Skim int
}

// Reader groups records from a RecordReader into bundles. Read2 of a pair
// and unmapped records are skipped.
type Reader struct {
	r     RecordReader
	opts  Opts
	stats quant.RefStats

	nRead    int
	lastName string
	building quant.Bundle
	cur      quant.Bundle
	done     bool
	err      error
}

// NewReader creates a Reader. Events (N_records, N_unmapped, N_frags) are
// counted into stats.
func NewReader(r RecordReader, opts Opts, stats quant.RefStats) *Reader {
	return &Reader{r: r, opts: opts, stats: stats}
}

// Scan implements Source.
func (b *Reader) Scan() bool {
	for !b.done {
		rec, err := b.r.Read()
		if err == io.EOF {
			b.done = true
			break
		}
		if err != nil {
			b.err = errors.Wrapf(err, "read %s", b.opts.Ref)
			b.done = true
			return false
		}
		b.nRead++
		if b.opts.Skim > 1 && (b.nRead-1)%b.opts.Skim != 0 {
			continue
		}
		b.stats.Count(quant.EventRecords)
		if rec.Flags&sam.Paired != 0 && rec.Flags&sam.Read2 != 0 {
			continue
		}
		if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil {
			b.stats.Count(quant.EventUnmapped)
			continue
		}
		cand, err := candidate(rec)
		if err != nil {
			b.err = errors.Wrapf(err, "record %s", rec.Name)
			b.done = true
			return false
		}
		if rec.Name == b.lastName && len(b.building.Candidates) > 0 {
			b.building.Candidates = append(b.building.Candidates, cand)
			continue
		}
		b.stats.Count(quant.EventFrags)
		cell, err := stringTag(rec, tagCell)
		if err != nil {
			b.err = errors.Wrapf(err, "record %s", rec.Name)
			b.done = true
			return false
		}
		umi, err := stringTag(rec, tagUMI)
		if err != nil {
			b.err = errors.Wrapf(err, "record %s", rec.Name)
			b.done = true
			return false
		}
		prev := b.building
		b.lastName = rec.Name
		b.building = quant.Bundle{
			Ref:        b.opts.Ref,
			Cell:       cell,
			UMI:        umi,
			Candidates: []quant.Candidate{cand},
		}
		if len(prev.Candidates) > 0 {
			b.cur = prev
			return true
		}
	}
	if len(b.building.Candidates) > 0 {
		b.cur = b.building
		b.building = quant.Bundle{}
		return true
	}
	return false
}

// Bundle implements Source.
func (b *Reader) Bundle() quant.Bundle { return b.cur }

// Err implements Source.
func (b *Reader) Err() error { return b.err }

func candidate(rec *sam.Record) (quant.Candidate, error) {
	c := quant.Candidate{
		Chrom:        rec.Ref.Name(),
		Strand:       '+',
		GeneNames:    []string{string(quant.NoFeature)},
		GeneFeatures: []quant.FeatureCode{quant.NoFeature},
	}
	if rec.Flags&sam.Reverse != 0 {
		c.Strand = '-'
	}
	if aux := rec.AuxFields.Get(tagGenes); aux != nil {
		c.GeneNames = strings.Split(fmt.Sprint(aux.Value()), ",")
	}
	if aux := rec.AuxFields.Get(tagFeatures); aux != nil {
		c.GeneFeatures = quant.ParseFeatureCodes(fmt.Sprint(aux.Value()))
	}
	if aux := rec.AuxFields.Get(tagScore); aux != nil {
		score, err := intValue(aux.Value())
		if err != nil {
			return c, err
		}
		c.Score = score
	}
	return c, nil
}

func stringTag(rec *sam.Record, tag sam.Tag) (string, error) {
	aux := rec.AuxFields.Get(tag)
	if aux == nil {
		return "", errors.Errorf("missing %s tag", tag)
	}
	return fmt.Sprint(aux.Value()), nil
}

func intValue(v interface{}) (int, error) {
	switch v := v.(type) {
	case int8:
		return int(v), nil
	case uint8:
		return int(v), nil
	case int16:
		return int(v), nil
	case uint16:
		return int(v), nil
	case int32:
		return int(v), nil
	case uint32:
		return int(v), nil
	case int:
		return v, nil
	case float32:
		return int(v), nil
	}
	return 0, errors.Errorf("AS tag has non-integer value %v", v)
}
