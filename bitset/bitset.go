// Package bitset is a fixed-size set of small non-negative integers.
package bitset

import "fmt"

type BitSet []uint64

// NewBitSet returns a set able to hold the members [0, len).
func NewBitSet(len uint64) BitSet {
	return make(BitSet, (len+63)/64)
}

func (b BitSet) IsSet(index uint64) bool {
	return b[index/64]&(1<<(index%64)) != 0
}

func (b BitSet) Set(index uint64) {
	b[index/64] |= 1 << (index % 64)
}

func (b BitSet) Unset(index uint64) {
	b[index/64] &^= 1 << (index % 64)
}

// SetFrom overwrites b with the members of o. Both sets must have the same size.
func (b BitSet) SetFrom(o BitSet) {
	if len(b) != len(o) {
		panic(fmt.Sprintf("bitsets must be same size: got %d vs %d", len(b), len(o)))
	}
	copy(b, o)
}
