package quant

type molecule struct {
	cell, umi string
}

// UniqueSet remembers the (cell, UMI) pairs seen so far. Pairs are compared
// by value, never by a digest, so distinct molecules are never merged.
//
// A UniqueSet is not safe for concurrent use. Each partition of a parallel
// run owns one; the partitioning function guarantees that no pair is seen
// by more than one partition.
type UniqueSet struct {
	seen map[molecule]struct{}
}

// NewUniqueSet returns an empty set.
func NewUniqueSet() *UniqueSet {
	return &UniqueSet{seen: map[molecule]struct{}{}}
}

// Observe records the pair and reports whether this was its first
// observation.
func (u *UniqueSet) Observe(cell, umi string) bool {
	k := molecule{cell, umi}
	if _, ok := u.seen[k]; ok {
		return false
	}
	u.seen[k] = struct{}{}
	return true
}

// Len returns the number of distinct pairs observed.
func (u *UniqueSet) Len() int { return len(u.seen) }
