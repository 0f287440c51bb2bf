// Package barcode handles cell barcode allow-lists: reading them and
// snapping barcodes with a single sequencing error onto an allowed barcode.
package barcode

import (
	"github.com/grailbio/base/log"
)

var alphabetWithN = []byte{'A', 'C', 'G', 'T', 'N'}

// Result describes what Correct did with a barcode.
type Result int

const (
	// Exact means the barcode is allowed as is.
	Exact Result = iota
	// Corrected means the barcode was one substitution away from exactly
	// one allowed barcode and was replaced by it.
	Corrected
	// Ambiguous means the barcode was one substitution away from several
	// allowed barcodes and was left unchanged.
	Ambiguous
	// NoMatch means no allowed barcode is within one substitution.
	NoMatch
)

// Corrector implements "snap" correction of cell barcodes. A barcode B is
// snappable if there is exactly one allowed barcode at Hamming distance 1
// from B. Unlike UMIs, cell barcodes are too long to tabulate every k-mer,
// so only the substitution neighborhood of the allowed barcodes is stored.
type Corrector struct {
	allowed map[string]struct{}

	// snap maps every non-allowed neighbor of an allowed barcode to that
	// barcode. Neighbors of more than one allowed barcode map to "".
	snap map[string]string
}

// NewCorrector builds the correction table for the given allow-list.
// Barcodes must be upper case; N is a valid base.
func NewCorrector(allowed map[string]struct{}) *Corrector {
	log.Debug.Printf("building barcode correction table for %d barcodes", len(allowed))
	snap := map[string]string{}
	for bc := range allowed {
		buf := []byte(bc)
		for i, orig := range buf {
			for _, c := range alphabetWithN {
				if c == orig {
					continue
				}
				buf[i] = c
				neighbor := string(buf)
				if _, ok := allowed[neighbor]; ok {
					continue
				}
				if _, ok := snap[neighbor]; ok {
					snap[neighbor] = ""
				} else {
					snap[neighbor] = bc
				}
			}
			buf[i] = orig
		}
	}
	nAmbiguous := 0
	for _, bc := range snap {
		if bc == "" {
			nAmbiguous++
		}
	}
	log.Debug.Printf("done building barcode correction table: %d snappable, %d ambiguous neighbors",
		len(snap)-nAmbiguous, nAmbiguous)
	return &Corrector{allowed: allowed, snap: snap}
}

// Correct returns the allowed barcode cell snaps to. If cell is allowed or
// cannot be corrected, it is returned unchanged.
func (c *Corrector) Correct(cell string) (string, Result) {
	if _, ok := c.allowed[cell]; ok {
		return cell, Exact
	}
	bc, ok := c.snap[cell]
	switch {
	case !ok:
		return cell, NoMatch
	case bc == "":
		return cell, Ambiguous
	}
	return bc, Corrected
}

// Len returns the number of allowed barcodes.
func (c *Corrector) Len() int { return len(c.allowed) }
