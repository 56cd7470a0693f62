package joy

import (
	"serenity/src/hardware/riscv"
	"serenity/src/lib/loader"
)

// SchedAPIDef is what collaborators (filesystem, pipes, futexes) use to
// suspend tasks until an external event.  Every method except Current,
// Lookup and Alive must be called with preemption prohibited, which is
// the case inside any trap handler or syscall.
type SchedAPIDef interface {
	Current() *Task
	SuspendOn(q *WaitQueue)
	Unblock(t *Task)
	WakeAll(q *WaitQueue) int
	Yield()
	Reschedule()
	FileOpQueue() *WaitQueue
	Lookup(tid int) *Task
	Alive(tid int) bool
}

var _ SchedAPIDef = (*Kernel)(nil)

// Current is the task that owns the CPU.
func (k *Kernel) Current() *Task {
	return k.current
}

func (k *Kernel) FileOpQueue() *WaitQueue {
	return k.fileOp
}

// resolve returns the task a handle was made for, or nil if that task's
// slot has been reused since.
func (k *Kernel) resolve(h TaskHandle) *Task {
	if !h.Valid() || int(h.slot) >= len(k.tasks) {
		return nil
	}
	t := &k.tasks[h.slot]
	if t.gen != h.gen {
		return nil
	}
	return t
}

// Lookup finds the live task with the given tid.
func (k *Kernel) Lookup(tid int) *Task {
	if tid == 0 {
		return k.idle
	}
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.tid == tid && t.status != StatusExited {
			return t
		}
	}
	return nil
}

func (k *Kernel) Alive(tid int) bool {
	return k.Lookup(tid) != nil
}

// SuspendOn blocks the current task on q and gives up the CPU in one step.
// It returns once somebody has unblocked the task and it is scheduled.
func (k *Kernel) SuspendOn(q *WaitQueue) {
	k.assertLocked("suspend")
	t := k.current
	if t == k.idle {
		k.halt("the idle task cannot block")
	}
	t.status = StatusBlocked
	k.move(t, q)
	k.schedule()
}

// Unblock moves a blocked task to the tail of the ready queue.  It does not
// switch to it.
func (k *Kernel) Unblock(t *Task) {
	k.assertLocked("unblock")
	if t.status != StatusBlocked {
		k.halt("unblock of task %d which is %s", t.tid, t.status)
	}
	t.status = StatusReady
	k.move(t, k.ready)
}

// WakeAll unblocks every task on q, head first, and returns how many.
func (k *Kernel) WakeAll(q *WaitQueue) int {
	k.assertLocked("wake")
	n := 0
	q.list.TraverseNodesTask(func(node *TaskNodeDL) error {
		if t := node.Value(); t.status != StatusExited {
			k.Unblock(t)
			n++
		}
		return nil
	})
	return n
}

// findFreeSlot takes the first reusable slot from the available queue.
func (k *Kernel) findFreeSlot() *Task {
	for n := k.available.list.First(); n != nil; n = n.Next() {
		if t := n.Value(); t.free() {
			return t
		}
	}
	return nil
}

// claim resets a free slot for a new task.  The caller links it into the
// ready queue once it is fully built.
func (k *Kernel) claim(t *Task, typ TaskType, name string, priority int) {
	k.move(t, nil)
	t.gen++
	t.tid = k.nextTid
	t.pid = t.tid
	k.nextTid++
	t.name = name
	t.typ = typ
	t.mode = AutoCleanupOnExit
	t.priority = priority
	t.tempPriority = priority
	t.mask = allCPUs
	t.parent = NoTask
	t.exitStatus = 0
	t.waitingAllChildren = false
	t.unblockChild = NoTask
	t.sleeping = false
	t.signals = 0
	t.exec = false
	t.utime, t.stime = 0, 0
	t.fds = nil
}

const allCPUs = 0xf

// initFrame sets up t's saved context so that it starts at entry with the
// given stack and a0.
func (k *Kernel) initFrame(t *Task, entry, sp, arg uint64) {
	f := riscv.RegsContext{}
	f.Sepc = entry
	f.Regs[riscv.SP] = sp
	f.Regs[riscv.A0] = arg
	f.Regs[riscv.TP] = uint64(t.tid)
	f.Sstatus = riscv.SstatusSPIE | riscv.SstatusSIE
	if !t.typ.User() {
		f.Sstatus |= riscv.SstatusSPP | riscv.SstatusSUM
	}
	f.Satp = riscv.MakeSatp(uint16(t.slot+1), t.pgdir)
	t.frame = f
	k.saveContext(t)
}

// spawn starts prog as a new process, child of parent (nil for tasks the
// kernel starts itself).
func (k *Kernel) spawn(parent *Task, prog *Program, arg uint64) (*Task, error) {
	k.assertLocked("spawn")
	caller := k.current.tid
	t := k.findFreeSlot()
	if t == nil {
		return nil, MakeError(ErrorTaskNoMoreTasks, caller)
	}
	root, entry, err := k.buildImage(prog)
	if err != nil {
		return nil, err
	}
	kstack, err := k.frames.AllocateFrame()
	if err != nil {
		k.walker.FreeAll(root)
		return nil, MakeError(ErrorMemoryNoFrames, caller)
	}
	k.claim(t, prog.Type, prog.Name, prog.Priority)
	t.pgdir = root
	t.kernelStack = kstack
	t.userStackBase = loader.UserStackBase
	t.body = prog.Body
	if parent != nil {
		t.parent = parent.Handle()
		t.mask = parent.mask
	}
	k.initFrame(t, entry, loader.UserStackTop, arg)
	k.newStrand(t)
	t.status = StatusReady
	k.move(t, k.ready)
	k.log.Infof("spawned %s as task %d (priority %d)", prog.Name, t.tid, t.priority)
	return t, nil
}

// clone starts a thread of parent running body from entry.  The thread gets a private
// copy of the parent's user stack; nothing else of the address space is
// copied or shared.
func (k *Kernel) clone(parent *Task, body func(*Proc), entry, stack, arg uint64) (*Task, error) {
	k.assertLocked("clone")
	t := k.findFreeSlot()
	if t == nil {
		return nil, MakeError(ErrorTaskNoMoreTasks, parent.tid)
	}
	root, err := k.walker.NewRoot()
	if err != nil {
		return nil, MakeError(ErrorMemoryNoFrames, parent.tid)
	}
	if err := k.walker.CopyRange(root, parent.pgdir, parent.userStackBase, loader.UserStackTop); err != nil {
		k.walker.FreeAll(root)
		return nil, k.memoryError(parent, err)
	}
	kstack, err := k.frames.AllocateFrame()
	if err != nil {
		k.walker.FreeAll(root)
		return nil, MakeError(ErrorMemoryNoFrames, parent.tid)
	}
	k.claim(t, parent.typ.thread(), parent.name, parent.priority)
	t.pid = parent.pid
	t.pgdir = root
	t.kernelStack = kstack
	t.userStackBase = parent.userStackBase
	t.parent = parent.Handle()
	t.mask = parent.mask
	t.body = body
	if stack == 0 {
		stack = parent.frame.Regs[riscv.SP]
	}
	k.initFrame(t, entry, stack, arg)
	k.newStrand(t)
	t.status = StatusReady
	k.move(t, k.ready)
	k.log.Debugf("cloned task %d from %d", t.tid, parent.tid)
	return t, nil
}

// execImage replaces the current task's image with prog.  On success it
// does not return: the task starts over at prog's entry when next
// scheduled.
func (k *Kernel) execImage(prog *Program, arg uint64) error {
	k.assertLocked("exec")
	t := k.current
	root, entry, err := k.buildImage(prog)
	if err != nil {
		return err
	}
	old := t.pgdir
	t.pgdir = root
	if err := k.walker.FreeAll(old); err != nil {
		k.halt("releasing the old image of task %d: %v", t.tid, err)
	}
	t.name = prog.Name
	t.typ = prog.Type
	t.body = prog.Body
	t.userStackBase = loader.UserStackBase
	t.signals &^= 1 << SIGSEGV
	k.initFrame(t, entry, loader.UserStackTop, arg)
	t.exec = true
	k.log.Infof("task %d exec %s", t.tid, prog.Name)
	k.schedule()
	k.halt("exec returned in task %d", t.tid)
	return nil
}

// freeproc releases everything t owns and puts its slot on the available
// queue.  The slot is reused only once nobody can wait for t any more.
func (k *Kernel) freeproc(t *Task) {
	t.status = StatusExited
	t.sleeping = false
	if err := k.walker.FreeAll(t.pgdir); err != nil {
		k.halt("freeing the address space of task %d: %v", t.tid, err)
	}
	t.pgdir = 0
	if err := k.frames.FreeFrame(t.kernelStack); err != nil {
		k.halt("freeing the kernel stack of task %d: %v", t.tid, err)
	}
	t.kernelStack = 0
	t.closeFiles()
	k.move(t, k.available)
}

// exit terminates the current task.  It never returns.
func (k *Kernel) exit(status int) {
	k.assertLocked("exit")
	t := k.current
	if t == k.idle {
		k.halt("the idle task tried to exit")
	}
	k.log.Debugf("task %d exits with %d", t.tid, status)
	k.WakeAll(&t.waitList)
	if p := k.resolve(t.parent); p != nil && p.waitingAllChildren {
		p.waitingAllChildren = false
		p.unblockChild = t.Handle()
		k.Unblock(p)
	}
	t.exitStatus = status
	k.freeproc(t)

	h := t.Handle()
	for i := range k.tasks {
		c := &k.tasks[i]
		if c.parent != h {
			continue
		}
		if c.status == StatusExited {
			//nobody will ever wait for it
			c.parent = NoTask
		} else {
			c.mode = EnterZombieOnExit
		}
	}
	if t.mode == EnterZombieOnExit {
		t.parent = NoTask
	}
	k.schedule()
	k.halt("exited task %d was scheduled", t.tid)
}

// wait4 waits for the child pid (> 0) or any child (-1) of the current
// task and returns its tid.  The exit status goes to statusVA if it is not
// zero.
func (k *Kernel) wait4(pid int, statusVA uint64) (int, error) {
	k.assertLocked("wait")
	t := k.current
	if pid == 0 || pid < -1 {
		return 0, MakeError(ErrorTaskBadArgument, t.tid)
	}
	h := t.Handle()
	childRunning := false
	for i := range k.tasks {
		c := &k.tasks[i]
		if c.parent != h {
			continue
		}
		if pid > 0 && c.tid == pid {
			if c.status != StatusExited {
				k.SuspendOn(&c.waitList)
			}
			return k.reap(c, statusVA)
		}
		if pid == -1 {
			if c.status != StatusExited {
				childRunning = true
				continue
			}
			return k.reap(c, statusVA)
		}
	}
	if pid == -1 && childRunning {
		t.waitingAllChildren = true
		t.unblockChild = NoTask
		k.SuspendOn(k.blocked)
		c := k.resolve(t.unblockChild)
		if c == nil {
			return 0, MakeError(ErrorTaskNoChild, t.tid)
		}
		return k.reap(c, statusVA)
	}
	return 0, MakeError(ErrorTaskNoChild, t.tid)
}

// reap reports an exited child and detaches it, which frees its slot.
func (k *Kernel) reap(c *Task, statusVA uint64) (int, error) {
	if statusVA != 0 {
		status := uint32(c.exitStatus&0xff) << 8
		b := []byte{byte(status), byte(status >> 8), byte(status >> 16), byte(status >> 24)}
		if err := k.copyOut(k.current, statusVA, b); err != nil {
			return 0, err
		}
	}
	c.parent = NoTask
	k.log.Debugf("task %d reaped %d (status %d)", k.current.tid, c.tid, c.exitStatus)
	return c.tid, nil
}

// kill marks sig pending on every live task that pid selects: one tid
// (pid > 0), everybody (0), everybody but the sender (-1) or the tid -pid
// (pid < -1).  sig 0 only checks that a target exists.
func (k *Kernel) kill(sender *Task, pid, sig int) error {
	if sig < 0 || sig >= 64 {
		return MakeError(ErrorTaskBadArgument, sender.tid)
	}
	n := 0
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.status == StatusExited {
			continue
		}
		var match bool
		switch {
		case pid > 0:
			match = t.tid == pid
		case pid == 0:
			match = true
		case pid == -1:
			match = t != sender
		default:
			match = t.tid == -pid
		}
		if !match {
			continue
		}
		if sig != 0 {
			t.signals |= 1 << uint(sig)
		}
		n++
	}
	if n == 0 {
		return MakeError(ErrorTaskNoSuchTask, sender.tid)
	}
	k.log.Debugf("task %d sent %d to %d (%d tasks)", sender.tid, sig, pid, n)
	return nil
}

// tgkill signals one thread, checking that it belongs to tgid when tgid is
// positive.
func (k *Kernel) tgkill(sender *Task, tgid, tid, sig int) error {
	t := k.Lookup(tid)
	if t == nil || t == k.idle || (tgid > 0 && t.pid != tgid) {
		return MakeError(ErrorTaskNoSuchTask, sender.tid)
	}
	return k.kill(sender, tid, sig)
}

// taskset changes the cpu affinity of tid (0 for the caller).
func (k *Kernel) taskset(caller *Task, tid int, mask uint64) error {
	if mask == 0 {
		return MakeError(ErrorTaskBadArgument, caller.tid)
	}
	t := caller
	if tid != 0 {
		t = k.Lookup(tid)
	}
	if t == nil || t == k.idle {
		return MakeError(ErrorTaskNoSuchTask, caller.tid)
	}
	t.mask = mask
	return nil
}
