package gen

import (
	"errors"
	"testing"
)

func TestBasics(t *testing.T) {
	g := NewStringishDoublyLinkedList()
	basicHelper(t, &g)
}
func TestBasicsWithAlloc(t *testing.T) {
	g := NewStringishDoublyLinkedListWithAllocator(nil, nil)
	basicHelper(t, &g)
}

func basicHelper(t *testing.T, g *StringishDoublyLinkedList) {
	t.Helper()

	if !g.Empty() {
		t.Errorf("doubly linked list not empty at start")
	}
	if 0 != g.Length() {
		t.Errorf("doubly linked list not empty at start")
	}
	if g.First() != nil {
		t.Errorf("doubly linked list not empty at start")
	}
	if g.Last() != nil {
		t.Errorf("doubly linked list not empty at start")
	}

	s1 := NewStringish("iansmith")
	s2 := NewStringish("love will tear us apart")
	s3 := NewStringish("the four ladies")

	g.Append(s1)
	if g.Empty() {
		t.Errorf("doubly linked list failed empty test after append")
	}
	if 1 != g.Length() {
		t.Errorf("doubly linked list failed to update length() correct")
	}
	if s1 != g.First().Value() {
		t.Errorf("doubly linked list First() error")
	}
	if s1 != g.Last().Value() {
		t.Errorf("doubly linked list Last() error")
	}

	g.Append(s2)
	if 2 != g.Length() {
		t.Errorf("doubly linked list failed to update length() after 2nd append")
	}
	if s1 != g.First().Value() {
		t.Errorf("doubly linked llist failed to update First() properly")
	}
	if s2 != g.Last().Value() {
		t.Errorf("doubly linked llist failed to update Last() properly")
	}
	if s2 != g.First().Next().Value() {
		t.Errorf("doubly linked llist failed to update Last() properly")
	}

	g.Push(s3)
	if 3 != g.Length() {
		t.Errorf("doubly linked list failed to update Length() after 3rd (push)")
	}
	if s3 != g.First().Value() {
		t.Errorf("doubly linked list failed to update First() correctly after 3rd (push)")
	}
	if s1 != g.First().Next().Value() {
		t.Errorf("doubly linked list failed to update First().Next() correctly after 3rd (push)")
	}
	if s3 != g.Last().Prev().Prev().Value() {
		t.Errorf("doubly linked list failed to update First().Last().Prev().Prev() correctly after 3rd (push)")
	}
	if s2 != g.Last().Value() {
		t.Errorf("doubly linked list failed to update Last() correctly after 3rd (push)")
	}
	if nil != g.Last().Next() {
		t.Errorf("doubly linked list last is not last!")
	}
	if nil != g.First().Prev() {
		t.Errorf("doubly linked list first is not first!")
	}

	total := len(s1.S) + len(s2.S) + len(s3.S)
	count := 0
	g.TraverseStringish(func(v *Stringish) error {
		count += v.L
		return nil
	})
	if total != count {
		t.Errorf("doubly linked list traversal test")
	}
}

func order(g *StringishDoublyLinkedList) string {
	result := ""
	g.TraverseStringish(func(v *Stringish) error {
		result += v.S
		return nil
	})
	return result
}

func TestRemoveEnds(t *testing.T) {
	g := NewStringishDoublyLinkedList()
	a := g.Append(NewStringish("a"))
	b := g.Append(NewStringish("b"))
	c := g.Append(NewStringish("c"))

	g.Remove(a)
	if order(&g) != "bc" || g.First() != b {
		t.Errorf("removing the first node left %q", order(&g))
	}
	g.Remove(c)
	if order(&g) != "b" || g.Last() != b {
		t.Errorf("removing the last node left %q", order(&g))
	}
	g.Remove(b)
	if !g.Empty() {
		t.Errorf("removing the only node left %q", order(&g))
	}
	if a.Next() != nil || a.Prev() != nil {
		t.Errorf("removed node still has links")
	}
	g.AppendNode(a)
	if order(&g) != "a" {
		t.Errorf("removed node could not be reused")
	}
}

func TestInsert(t *testing.T) {
	g := NewStringishDoublyLinkedList()
	b := g.Append(NewStringish("b"))
	g.InsertBefore(b, &StringishNodeDL{value: NewStringish("a")})
	g.InsertAfter(b, &StringishNodeDL{value: NewStringish("d")})
	g.InsertBefore(g.Last(), &StringishNodeDL{value: NewStringish("c")})
	g.InsertBefore(nil, &StringishNodeDL{value: NewStringish("e")})
	if order(&g) != "abcde" {
		t.Errorf("inserts produced %q", order(&g))
	}
	if g.Nth(2).Value().S != "c" || g.Nth(5) != nil {
		t.Errorf("Nth is off")
	}
	back := ""
	g.TraverseBackwardsStringish(func(v *Stringish) error {
		back += v.S
		return nil
	})
	if back != "edcba" {
		t.Errorf("backwards traversal produced %q", back)
	}
}

func TestPopDequeue(t *testing.T) {
	g := NewStringishDoublyLinkedList()
	if g.Pop() != nil || g.Dequeue() != nil {
		t.Errorf("Pop/Dequeue on an empty list returned a node")
	}
	g.Append(NewStringish("x"))
	g.Append(NewStringish("y"))
	g.Append(NewStringish("z"))
	if g.Pop().Value().S != "x" {
		t.Errorf("Pop did not take the first node")
	}
	if g.Dequeue().Value().S != "z" {
		t.Errorf("Dequeue did not take the last node")
	}
	if order(&g) != "y" {
		t.Errorf("list left as %q", order(&g))
	}
}

func TestTraverseNodesAllowsRemove(t *testing.T) {
	g := NewStringishDoublyLinkedList()
	for _, s := range []string{"1", "2", "3", "4"} {
		g.Append(NewStringish(s))
	}
	g.TraverseNodesStringish(func(n *StringishNodeDL) error {
		if n.Value().S == "2" || n.Value().S == "4" {
			g.Remove(n)
		}
		return nil
	})
	if order(&g) != "13" {
		t.Errorf("removing during traversal left %q", order(&g))
	}
	stop := errors.New("stop")
	seen := 0
	err := g.TraverseNodesStringish(func(n *StringishNodeDL) error {
		seen++
		return stop
	})
	if err != stop || seen != 1 {
		t.Errorf("traversal did not halt on error")
	}
}

func TestFixedDL(t *testing.T) {
	pool := NewStringishFixedPool(64)
	g := NewStringishFixedDL(pool)
	for i := 0; i < 64; i++ {
		v := g.AppendNew()
		if v == nil {
			t.Fatalf("pool exhausted after %d", i)
		}
		v.S = "s"
		v.L = i
	}
	if !g.PoolFull() {
		t.Errorf("pool should be full")
	}
	if g.AppendNew() != nil {
		t.Errorf("AppendNew succeeded on a full pool")
	}
	g.PopAndRelease()
	if g.PoolFull() || pool.InUse() != 63 {
		t.Errorf("PopAndRelease did not return the node, in use %d", pool.InUse())
	}
	if g.First().Value().L != 1 {
		t.Errorf("wrong node popped")
	}
	for !g.Empty() {
		g.DequeueAndRelease()
	}
	if !g.PoolEmpty() {
		t.Errorf("pool still has %d in use", pool.InUse())
	}

	n := g.Alloc()
	n.Value().S = "detached"
	g.Release(n)
	if !g.PoolEmpty() {
		t.Errorf("Release did not return the node")
	}
}

func TestFixedPoolRejectsForeignNode(t *testing.T) {
	pool := NewStringishFixedPool(64)
	defer func() {
		if recover() == nil {
			t.Errorf("Dealloc of a foreign node did not panic")
		}
	}()
	pool.Dealloc(&StringishNodeDL{}, nil)
}
