package joy

// WaitQueue is a FIFO of tasks.  The kernel's four global queues and every
// task's wait list are WaitQueues.
type WaitQueue struct {
	kind QueueKind
	list TaskDoublyLinkedList
}

// NewWaitQueue returns an empty queue for a collaborator (pipe, futex,
// filesystem) to suspend tasks on.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{kind: QueueWait, list: NewTaskDoublyLinkedList()}
}

func newQueue(kind QueueKind) *WaitQueue {
	return &WaitQueue{kind: kind, list: NewTaskDoublyLinkedList()}
}

func (q *WaitQueue) Kind() QueueKind {
	return q.kind
}

func (q *WaitQueue) Len() int {
	return q.list.Length()
}

func (q *WaitQueue) Empty() bool {
	return q.list.Empty()
}

// First is the task at the head of the queue, or nil.
func (q *WaitQueue) First() *Task {
	n := q.list.First()
	if n == nil {
		return nil
	}
	return n.Value()
}

// Tasks returns the queue's members, head first.
func (q *WaitQueue) Tasks() []*Task {
	var result []*Task
	q.list.TraverseTask(func(t *Task) error {
		result = append(result, t)
		return nil
	})
	return result
}

// move is the only code that changes queue membership.  The task leaves
// whatever queue it is on and, if to is not nil, goes on the tail of to.
func (k *Kernel) move(t *Task, to *WaitQueue) {
	k.assertLocked("queue change")
	if t.owner != nil {
		t.owner.list.Remove(&t.node)
	}
	t.owner, t.queue = nil, QueueNone
	if to != nil {
		to.list.AppendNode(&t.node)
		t.owner, t.queue = to, to.kind
	}
}

// prohibitPreemption and permitPreemption nest.  Queues, the task table and
// page tables may only change while the current task's count is above
// zero.
func (k *Kernel) prohibitPreemption() {
	k.current.preemptCount++
}

func (k *Kernel) permitPreemption() {
	if k.current.preemptCount <= 0 {
		k.halt("preemption permitted more often than prohibited (task %d)", k.current.tid)
	}
	k.current.preemptCount--
}

func (k *Kernel) assertLocked(op string) {
	if k.current.preemptCount <= 0 {
		k.halt("%s with preemption enabled (task %d)", op, k.current.tid)
	}
}
