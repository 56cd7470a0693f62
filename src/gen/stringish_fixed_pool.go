// This file was automatically generated by genny.
// Any changes will be lost if this file is regenerated.
// see https://github.com/cheekybits/genny

package gen

import (
	"serenity/src/lib/upbeat"
)

// StringishFixedPool is a fixed number of nodes and values, allocated in
// pairs.  Nothing is allocated from the heap after the pool is created.
type StringishFixedPool struct {
	nodes  []StringishNodeDL
	values []Stringish
	bitset *upbeat.BitSet
	num    int
}

// NewStringishFixedPool returns a pool of numElements node/value pairs.
// Maximum allowed size is 2048 and size MUST be a multiple of 64.
func NewStringishFixedPool(numElements uint32) *StringishFixedPool {
	if numElements > 2048 || numElements%64 != 0 {
		panic("requested size is not valid for a pool")
	}
	bits, err := upbeat.NewBitSet(numElements)
	if err != nil {
		panic(err.Error())
	}
	return &StringishFixedPool{
		nodes:  make([]StringishNodeDL, numElements),
		values: make([]Stringish, numElements),
		bitset: bits,
		num:    int(numElements),
	}
}

// Alloc returns a node and value from the pool.  It returns nils
// if the pool is exhausted.  Note that a pool may go from exhausted
// to working if Dealloc() is called.
func (g *StringishFixedPool) Alloc() (*StringishNodeDL, *Stringish) {
	i, ok := g.bitset.FirstClear(0)
	if !ok {
		return nil, nil
	}
	g.bitset.Set(i)
	n := &g.nodes[i]
	*n = StringishNodeDL{value: &g.values[i]}
	return n, n.value
}

// Dealloc returns the pair to the pool.  It panics if n did not come
// from this pool.
func (g *StringishFixedPool) Dealloc(n *StringishNodeDL, v *Stringish) {
	for i := range g.nodes {
		if &g.nodes[i] != n {
			continue
		}
		if v != nil && &g.values[i] != v {
			panic("value passed to Dealloc() does not belong to its node")
		}
		if !g.bitset.On(upbeat.BitIndex(i)) {
			panic("double Dealloc() of pool element")
		}
		var zero Stringish
		g.values[i] = zero
		g.nodes[i] = StringishNodeDL{}
		g.bitset.Clear(upbeat.BitIndex(i))
		return
	}
	panic("pointer passed to Dealloc() that is not from pool")
}

// Full is true when every element is handed out.
func (g *StringishFixedPool) Full() bool {
	_, ok := g.bitset.FirstClear(0)
	return !ok
}

// Empty is true when nothing is handed out.
func (g *StringishFixedPool) Empty() bool {
	return g.bitset.Count() == 0
}

// InUse is the number of elements handed out.
func (g *StringishFixedPool) InUse() int {
	return g.bitset.Count()
}
