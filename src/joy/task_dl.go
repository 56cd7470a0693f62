// This file was automatically generated by genny.
// Any changes will be lost if this file is regenerated.
// see https://github.com/cheekybits/genny

package joy

type TaskNodeDL struct {
	prev  *TaskNodeDL
	next  *TaskNodeDL
	value *Task
}

// TaskDoublyLinkedList implements a doubly linked list
// that is not concurrent safe.
type TaskDoublyLinkedList struct {
	first       *TaskNodeDL
	last        *TaskNodeDL
	allocator   TaskAllocator
	deallocator TaskDeallocator
}

// TaskAllocator supplies a node and its value for AppendNew and PushNew.
type TaskAllocator func() (*TaskNodeDL, *Task)

// TaskDeallocator takes back what a TaskAllocator handed out.
type TaskDeallocator func(*TaskNodeDL, *Task)

// Next returns the next element of the list.  This is probably only
// needed by people doing specialized traversals that are too complex
// for Traverse and TraverseBackwards.  Returns nil for the last node
// in the list.
func (g *TaskNodeDL) Next() *TaskNodeDL {
	return g.next
}

// Prev returns the previous element of the list.  Returns nil for the
// first node in the list.
func (g *TaskNodeDL) Prev() *TaskNodeDL {
	return g.prev
}

// Value returns the element's value. This is used by traversal
// functions and others because they are given a TaskNodeDL not
// just a Task.
func (g *TaskNodeDL) Value() *Task {
	return g.value
}

// NewTaskDoublyLinkedList returns an empty doubly linked list.
// Note: It returns a value, not a pointer but the methods have
// pointer receivers.
func NewTaskDoublyLinkedList() TaskDoublyLinkedList {
	return TaskDoublyLinkedList{first: nil, last: nil, allocator: nil}
}

// NewTaskDoublyLinkedListWithAllocator returns an empty doubly linked list.
// The allocator provided will be used to create nodes in the lists of this type.
func NewTaskDoublyLinkedListWithAllocator(alloc TaskAllocator,
	dealloc TaskDeallocator) TaskDoublyLinkedList {
	return TaskDoublyLinkedList{first: nil, last: nil,
		allocator: alloc, deallocator: dealloc}
}

// Empty returns true if the list is empty.
func (g *TaskDoublyLinkedList) Empty() bool {
	if g.first == nil {
		if g.last != nil {
			panic("invariant violated checking for Empty")
		}
		return true
	}
	return false
}

// Length returns the number of elements in the list.  This
// requires walking the list.
func (g *TaskDoublyLinkedList) Length() int {
	l := 0
	for curr := g.first; curr != nil; curr = curr.next {
		l++
	}
	return l
}

// First returns the first node in the list or a nil if the list is empty.
func (g *TaskDoublyLinkedList) First() *TaskNodeDL {
	if g.first == nil {
		if g.last != nil {
			panic("invariant violated getting First()")
		}
		return nil
	}
	if g.first.prev != nil {
		panic("invariant of first node violated (First())")
	}
	return g.first
}

// Last returns the last node in the list or a nil if the list is empty.
func (g *TaskDoublyLinkedList) Last() *TaskNodeDL {
	if g.last == nil {
		if g.first != nil {
			panic("invariant violated getting Last()")
		}
		return nil
	}
	if g.last.next != nil {
		panic("invariant of last node violated (Last())")
	}
	return g.last
}

// Contains walks the list looking for n.
func (g *TaskDoublyLinkedList) Contains(n *TaskNodeDL) bool {
	for curr := g.first; curr != nil; curr = curr.next {
		if curr == n {
			return true
		}
	}
	return false
}

// Push creates a node holding v and puts it at the front of the list.
func (g *TaskDoublyLinkedList) Push(v *Task) *TaskNodeDL {
	n := &TaskNodeDL{value: v}
	g.PushNode(n)
	return n
}

// PushNew takes a node from the allocator (or the heap when there is no
// allocator) and puts it at the front of the list.  Returns a pointer to
// the new value so you can fill in the fields, or nil if the allocator
// is exhausted.
func (g *TaskDoublyLinkedList) PushNew() *Task {
	n, v := g.newNode()
	if n == nil {
		return nil
	}
	g.PushNode(n)
	return v
}

// PushNode inserts the given node at the front of the list.
// Traversals that start at the front will see the newly
// pushed node first.  Returns the newly modified list.
func (g *TaskDoublyLinkedList) PushNode(n *TaskNodeDL) *TaskDoublyLinkedList {
	if n.next != nil || n.prev != nil {
		panic("attempt to insert node that is likely a member of " +
			"another list (PushNode)")
	}
	if g.first == nil {
		if g.last != nil {
			panic("invariant of empty list is broken (push)")
		}
		g.first = n
		g.last = n
		return g
	}
	old := g.first
	if old.prev != nil {
		panic("invariant of first node of list is broken (push)")
	}
	g.first = n
	old.prev = n
	n.next = old
	return g
}

// Append creates a node holding v and puts it at the end of the list.
func (g *TaskDoublyLinkedList) Append(v *Task) *TaskNodeDL {
	n := &TaskNodeDL{value: v}
	g.AppendNode(n)
	return n
}

// AppendNew is PushNew for the end of the list.
func (g *TaskDoublyLinkedList) AppendNew() *Task {
	n, v := g.newNode()
	if n == nil {
		return nil
	}
	g.AppendNode(n)
	return v
}

func (g *TaskDoublyLinkedList) newNode() (*TaskNodeDL, *Task) {
	if g.allocator != nil {
		n, v := g.allocator()
		if n == nil {
			return nil, nil
		}
		n.value = v
		return n, v
	}
	v := new(Task)
	return &TaskNodeDL{value: v}, v
}

// AppendNode inserts the given node at the end of the list.  Traversals
// that start at the front will see the newly pushed node last.
// Returns the newly modified list.  This method does a check to insure
// that Next() and Prev() of the new node are nil. If they are not nil,
// it panics.
func (g *TaskDoublyLinkedList) AppendNode(n *TaskNodeDL) *TaskDoublyLinkedList {
	if n.next != nil || n.prev != nil {
		panic("attempt to insert node that is likely a member of " +
			"another list (AppendNode)")
	}
	if g.last == nil {
		if g.first != nil {
			panic("invariant of empty list is broken (AppendNode)")
		}
		g.first = n
		g.last = n
		return g
	}
	old := g.last
	if old.next != nil {
		panic("invariant of last node of list is broken (AppendNode)")
	}
	g.last = n
	old.next = n
	n.prev = old
	return g
}

// TraverseNodesTask walks all the nodes in the list, in order, starting
// at the front.  It is ok to remove the current node during the walk.
// If the iteration function returns an error, the traversal is halted
// and that error is returned.
func (g *TaskDoublyLinkedList) TraverseNodesTask(fn func(v *TaskNodeDL) error) error {
	curr := g.first
	for curr != nil {
		next := curr.next
		if err := fn(curr); err != nil {
			return err
		}
		curr = next
	}
	return nil
}

// TraverseTask walks all the items in the list, in order, starting at the
// front. This passes the _value_ of each node to the function supplied
// and the nodes in the list cannot be modified during traversal.
func (g *TaskDoublyLinkedList) TraverseTask(fn func(v *Task) error) error {
	for curr := g.first; curr != nil; curr = curr.next {
		if err := fn(curr.value); err != nil {
			return err
		}
	}
	return nil
}

// TraverseNodesBackwardsTask walks all the nodes in the list, in
// reverse order, starting at the last element.  It is ok to remove the
// current node during the walk.
func (g *TaskDoublyLinkedList) TraverseNodesBackwardsTask(fn func(v *TaskNodeDL) error) error {
	curr := g.last
	for curr != nil {
		prev := curr.prev
		if err := fn(curr); err != nil {
			return err
		}
		curr = prev
	}
	return nil
}

// TraverseBackwardsTask walks all the _values_ in the list, in reverse
// order, starting at the last element.
func (g *TaskDoublyLinkedList) TraverseBackwardsTask(fn func(v *Task) error) error {
	for curr := g.last; curr != nil; curr = curr.prev {
		if err := fn(curr.value); err != nil {
			return err
		}
	}
	return nil
}

// Nth returns the node that is the Nth element of the list, or nil if there are
// insufficient nodes in the list to reach the Nth.
func (g *TaskDoublyLinkedList) Nth(i int) *TaskNodeDL {
	ct := 0
	for curr := g.first; curr != nil; curr = curr.next {
		if ct == i {
			return curr
		}
		ct++
	}
	return nil
}

// Remove takes a node out of the list.  The caller must be sure n is
// on this list.
func (g *TaskDoublyLinkedList) Remove(n *TaskNodeDL) {
	if n.prev == nil {
		if g.first != n {
			panic("invariant of removing first element violated")
		}
		g.first = n.next
	} else {
		n.prev.next = n.next
	}
	if n.next == nil {
		if g.last != n {
			panic("invariant of removing last element violated")
		}
		g.last = n.prev
	} else {
		n.next.prev = n.prev
	}
	n.next = nil
	n.prev = nil
}

// RemoveAndRelease takes a node out of the list and returns it and its value
// to the deallocator.  If there is no deallocator, this is the same as Remove().
func (g *TaskDoublyLinkedList) RemoveAndRelease(n *TaskNodeDL) {
	g.Remove(n)
	if g.deallocator != nil {
		g.deallocator(n, n.value)
	}
}

// InsertBefore takes in the node before which to insert the second
// parameter.  It is permitted to give nil as the value of target and this
// makes this function perform AppendNode().
func (g *TaskDoublyLinkedList) InsertBefore(target *TaskNodeDL,
	n *TaskNodeDL) {

	if target == nil {
		g.AppendNode(n)
		return
	}
	prev := target.prev
	if prev == nil {
		if g.first != target {
			panic("invariant violated with first element (InsertBefore)")
		}
		g.PushNode(n)
		return
	}
	if prev.next != target {
		panic("invariant violated with intermediate node (InsertBefore)")
	}
	prev.next = n
	n.prev = prev
	target.prev = n
	n.next = target
}

// InsertAfter takes in the node after which to insert the second
// parameter.  It is permitted to give nil as the value of target and this
// makes this function perform PushNode().
func (g *TaskDoublyLinkedList) InsertAfter(target *TaskNodeDL,
	n *TaskNodeDL) {

	if target == nil {
		g.PushNode(n)
		return
	}
	next := target.next
	if next == nil {
		if g.last != target {
			panic("invariant violated with last element (InsertAfter)")
		}
		g.AppendNode(n)
		return
	}
	if next.prev != target {
		panic("invariant violated with intermediate node (InsertAfter)")
	}
	next.prev = n
	n.next = next
	n.prev = target
	target.next = n
}

// Pop is a shorthand for Remove(First()) and it returns the removed
// node, or nil for an empty list.
func (g *TaskDoublyLinkedList) Pop() *TaskNodeDL {
	f := g.First()
	if f != nil {
		g.Remove(f)
	}
	return f
}

// PopAndRelease is a shorthand for RemoveAndRelease(First())
func (g *TaskDoublyLinkedList) PopAndRelease() {
	if f := g.First(); f != nil {
		g.RemoveAndRelease(f)
	}
}

// Dequeue is a shorthand for Remove(Last()) and it returns the removed
// node, or nil for an empty list.
func (g *TaskDoublyLinkedList) Dequeue() *TaskNodeDL {
	f := g.Last()
	if f != nil {
		g.Remove(f)
	}
	return f
}

// DequeueAndRelease is a shorthand for RemoveAndRelease(Last())
func (g *TaskDoublyLinkedList) DequeueAndRelease() {
	if f := g.Last(); f != nil {
		g.RemoveAndRelease(f)
	}
}
