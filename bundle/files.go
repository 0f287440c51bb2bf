package bundle

import (
	"context"
	"path"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/dge/quant"
	"github.com/grailbio/hts/bam"
	"github.com/pkg/errors"
)

// RefName derives the reference name from a BAM path: the file's base name
// up to the first '.', e.g. "out/miRNA.tagged.bam" -> "miRNA".
func RefName(p string) string {
	base := path.Base(p)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// FileSource reads BAM files one after another, opening each lazily.
type FileSource struct {
	ctx     context.Context
	paths   []string
	skim    int
	threads int
	stats   *quant.Stats

	in     file.File
	br     *bam.Reader
	reader *Reader
	err    error
}

// NewFileSource creates a source over the BAM files at paths. Reader
// events are counted into stats under each file's RefName. threads is the
// number of BGZF decompression goroutines per file.
func NewFileSource(ctx context.Context, paths []string, skim, threads int, stats *quant.Stats) *FileSource {
	return &FileSource{ctx: ctx, paths: paths, skim: skim, threads: threads, stats: stats}
}

func (s *FileSource) open(p string) error {
	in, err := file.Open(s.ctx, p)
	if err != nil {
		return errors.Wrapf(err, "open %s", p)
	}
	br, err := bam.NewReader(in.Reader(s.ctx), s.threads)
	if err != nil {
		_ = in.Close(s.ctx)
		return errors.Wrapf(err, "bam header %s", p)
	}
	ref := RefName(p)
	log.Printf("reading %s (reference %s)", p, ref)
	s.in, s.br = in, br
	s.reader = NewReader(br, Opts{Ref: ref, Skim: s.skim}, s.stats.Ref(ref))
	return nil
}

func (s *FileSource) close() error {
	if s.br == nil {
		return nil
	}
	err := s.br.Close()
	if e := s.in.Close(s.ctx); e != nil && err == nil {
		err = e
	}
	s.in, s.br, s.reader = nil, nil, nil
	return err
}

// Scan implements Source.
func (s *FileSource) Scan() bool {
	for s.err == nil {
		if s.reader == nil {
			if len(s.paths) == 0 {
				return false
			}
			p := s.paths[0]
			s.paths = s.paths[1:]
			if s.err = s.open(p); s.err != nil {
				return false
			}
		}
		if s.reader.Scan() {
			return true
		}
		s.err = s.reader.Err()
		if e := s.close(); e != nil && s.err == nil {
			s.err = e
		}
	}
	return false
}

// Bundle implements Source.
func (s *FileSource) Bundle() quant.Bundle { return s.reader.Bundle() }

// Err implements Source.
func (s *FileSource) Err() error { return s.err }

// Close releases the file being read, if any. It is needed only when the
// source is abandoned before Scan returned false.
func (s *FileSource) Close() error { return s.close() }

// SliceSource yields bundles from memory.
type SliceSource struct {
	bundles []quant.Bundle
	cur     quant.Bundle
}

// NewSliceSource returns a source over bundles.
func NewSliceSource(bundles []quant.Bundle) *SliceSource {
	return &SliceSource{bundles: bundles}
}

// Scan implements Source.
func (s *SliceSource) Scan() bool {
	if len(s.bundles) == 0 {
		return false
	}
	s.cur, s.bundles = s.bundles[0], s.bundles[1:]
	return true
}

// Bundle implements Source.
func (s *SliceSource) Bundle() quant.Bundle { return s.cur }

// Err implements Source.
func (s *SliceSource) Err() error { return nil }
