// This file was automatically generated by genny.
// Any changes will be lost if this file is regenerated.
// see https://github.com/cheekybits/genny

package gen

// StringishFixedDL is a doubly linked list whose nodes come from a
// StringishFixedPool.
type StringishFixedDL struct {
	pool *StringishFixedPool
	StringishDoublyLinkedList
}

func NewStringishFixedDL(pool *StringishFixedPool) *StringishFixedDL {
	result := &StringishFixedDL{pool: pool}
	result.StringishDoublyLinkedList = NewStringishDoublyLinkedListWithAllocator(
		pool.Alloc, pool.Dealloc)
	return result
}

// Alloc takes a detached node from the pool.  The caller links it in with
// one of the node methods.  Returns nil if the pool is exhausted.
func (g *StringishFixedDL) Alloc() *StringishNodeDL {
	n, _ := g.pool.Alloc()
	return n
}

// Release gives a node that is not on the list back to the pool.
func (g *StringishFixedDL) Release(n *StringishNodeDL) {
	g.pool.Dealloc(n, n.value)
}

func (g *StringishFixedDL) PoolFull() bool {
	return g.pool.Full()
}

func (g *StringishFixedDL) PoolEmpty() bool {
	return g.pool.Empty()
}
