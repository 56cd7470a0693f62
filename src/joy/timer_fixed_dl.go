// This file was automatically generated by genny.
// Any changes will be lost if this file is regenerated.
// see https://github.com/cheekybits/genny

package joy

// TimerFixedDL is a doubly linked list whose nodes come from a
// TimerFixedPool.
type TimerFixedDL struct {
	pool *TimerFixedPool
	TimerDoublyLinkedList
}

func NewTimerFixedDL(pool *TimerFixedPool) *TimerFixedDL {
	result := &TimerFixedDL{pool: pool}
	result.TimerDoublyLinkedList = NewTimerDoublyLinkedListWithAllocator(
		pool.Alloc, pool.Dealloc)
	return result
}

// Alloc takes a detached node from the pool.  The caller links it in with
// one of the node methods.  Returns nil if the pool is exhausted.
func (g *TimerFixedDL) Alloc() *TimerNodeDL {
	n, _ := g.pool.Alloc()
	return n
}

// Release gives a node that is not on the list back to the pool.
func (g *TimerFixedDL) Release(n *TimerNodeDL) {
	g.pool.Dealloc(n, n.value)
}

func (g *TimerFixedDL) PoolFull() bool {
	return g.pool.Full()
}

func (g *TimerFixedDL) PoolEmpty() bool {
	return g.pool.Empty()
}
