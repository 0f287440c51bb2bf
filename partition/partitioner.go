package partition

import (
	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/unsafe"
)

// Partitioner maps a cell barcode to a partition in [0, n). It must be a
// pure function of the barcode: every molecule of a cell has to reach the
// same partition, or uniqueness decisions would be split across workers.
type Partitioner func(cell string) int

// nucleotideRank orders the barcode alphabet so that n=4 partitions receive
// one leading base each.
var nucleotideRank = [256]int{'A': 0, 'C': 1, 'G': 2, 'T': 3, 'N': 4}

// ByPrefix routes by the first character of the barcode: with 4 partitions,
// barcodes starting with A, C, G and T each get their own worker.
func ByPrefix(n int) Partitioner {
	return func(cell string) int {
		if n <= 1 || cell == "" {
			return 0
		}
		c := cell[0]
		switch c {
		case 'A', 'C', 'G', 'T', 'N':
			return nucleotideRank[c] % n
		}
		return int(c) % n
	}
}

// ByHash routes by the seahash of the whole barcode, which balances
// partitions when barcodes do not start uniformly.
func ByHash(n int) Partitioner {
	return func(cell string) int {
		if n <= 1 {
			return 0
		}
		return int(seahash.Sum64(unsafe.StringToBytes(cell)) % uint64(n))
	}
}

// NewPartitioner returns the partitioner called name ("prefix" or "hash")
// for n partitions.
func NewPartitioner(name string, n int) (Partitioner, error) {
	if n < 1 {
		return nil, errors.E(errors.Invalid, "number of partitions must be positive")
	}
	switch name {
	case "prefix":
		return ByPrefix(n), nil
	case "hash":
		return ByHash(n), nil
	}
	return nil, errors.E(errors.Invalid, "unknown partitioner", name)
}
