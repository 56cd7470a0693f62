package upbeat

import "fmt"

type BitSet struct {
	size uint32
	data []uint64
}

type BitIndex uint32

//bitsets have to be multiples of 64.
func NewBitSet(size uint32) (*BitSet, error) {
	mask := ^(uint32(0x3f))
	if size&mask != size || size == 0 {
		return nil, fmt.Errorf("bitset size is not a multiple of 64: %d", size)
	}
	return &BitSet{
		data: make([]uint64, size>>6),
		size: size,
	}, nil
}

func (b *BitSet) Size() uint32 {
	return b.size
}

func (b *BitSet) On(bit BitIndex) bool {
	mask := uint64(1) << (bit % 64) //which bit in the word
	return b.data[bit>>6]&mask != 0
}

func (b *BitSet) Set(bit BitIndex) {
	b.data[bit>>6] |= uint64(1) << (bit % 64)
}

func (b *BitSet) Clear(bit BitIndex) {
	b.data[bit>>6] &^= uint64(1) << (bit % 64)
}

func (b *BitSet) ClearAll() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// FirstClear returns the lowest index that is off, starting the search
// at from.  The second result is false when every bit at or above from is on.
func (b *BitSet) FirstClear(from BitIndex) (BitIndex, bool) {
	for i := uint32(from); i < b.size; i++ {
		if b.data[i>>6] == ^uint64(0) {
			i |= 0x3f //skip the rest of a full word
			continue
		}
		if !b.On(BitIndex(i)) {
			return BitIndex(i), true
		}
	}
	return 0, false
}

// Count is the number of bits that are on.
func (b *BitSet) Count() int {
	n := 0
	for _, w := range b.data {
		for w != 0 {
			w &= w - 1
			n++
		}
	}
	return n
}
