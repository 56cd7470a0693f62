package gen

// GenericFixedDL is a doubly linked list whose nodes come from a
// GenericFixedPool.
type GenericFixedDL struct {
	pool *GenericFixedPool
	GenericDoublyLinkedList
}

func NewGenericFixedDL(pool *GenericFixedPool) *GenericFixedDL {
	result := &GenericFixedDL{pool: pool}
	result.GenericDoublyLinkedList = NewGenericDoublyLinkedListWithAllocator(
		pool.Alloc, pool.Dealloc)
	return result
}

// Alloc takes a detached node from the pool.  The caller links it in with
// one of the node methods.  Returns nil if the pool is exhausted.
func (g *GenericFixedDL) Alloc() *GenericNodeDL {
	n, _ := g.pool.Alloc()
	return n
}

// Release gives a node that is not on the list back to the pool.
func (g *GenericFixedDL) Release(n *GenericNodeDL) {
	g.pool.Dealloc(n, n.value)
}

func (g *GenericFixedDL) PoolFull() bool {
	return g.pool.Full()
}

func (g *GenericFixedDL) PoolEmpty() bool {
	return g.pool.Empty()
}
