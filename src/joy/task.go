package joy

import (
	"io"

	"serenity/src/hardware/riscv"
)

//go:generate genny -in=../gen/doubly_linked.go -out=task_dl.go -pkg=joy gen "Generic=Task"

// TaskStatus is where a task is in its life.
type TaskStatus int

const (
	StatusReady TaskStatus = iota
	StatusRunning
	StatusBlocked
	StatusZombie //only reported: an exited task its parent has not reaped
	StatusExited
)

var statusNames = []string{"Ready", "Running", "Blocked", "Zombie", "Exited"}

func (s TaskStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

type TaskType int

const (
	KernelProcess TaskType = iota
	KernelThread
	UserProcess
	UserThread
)

var typeNames = []string{"KernelProcess", "KernelThread", "UserProcess", "UserThread"}

func (t TaskType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "Unknown"
	}
	return typeNames[t]
}

// User is true for tasks that run in U mode.
func (t TaskType) User() bool {
	return t == UserProcess || t == UserThread
}

func (t TaskType) thread() TaskType {
	if t.User() {
		return UserThread
	}
	return KernelThread
}

// ExitMode decides what a task does with its parent link when it exits.
type ExitMode int

const (
	AutoCleanupOnExit ExitMode = iota
	EnterZombieOnExit          //the parent is gone: detach at exit
)

// QueueKind names the queue a task is linked into.
type QueueKind int

const (
	QueueNone QueueKind = iota
	QueueReady
	QueueBlocked
	QueueAvailable
	QueueFileOp
	QueueWait //some task's wait list
)

var queueNames = []string{"-", "ready", "blocked", "available", "fileop", "wait"}

func (q QueueKind) String() string {
	if q < 0 || int(q) >= len(queueNames) {
		return "?"
	}
	return queueNames[q]
}

// TaskHandle names a task slot and the generation of the task in it.  A
// handle outlives the task it was made for without ever reaching the
// slot's next occupant.
type TaskHandle struct {
	slot int32
	gen  uint32
}

// NoTask is the handle of nobody.
var NoTask = TaskHandle{}

func (h TaskHandle) Valid() bool {
	return h.gen != 0
}

// Task is the control block of one task.  Slots are reused, so nothing
// outside the kernel should keep a *Task across a reschedule; keep a
// TaskHandle instead.
type Task struct {
	pid, tid int
	name     string
	status   TaskStatus
	typ      TaskType
	mode     ExitMode

	priority     int
	tempPriority int
	mask         uint64 //cpu affinity

	pgdir         uint64 //physical address of the root table
	kernelStack   uint64 //physical frame, saved context at the top
	userStackBase uint64

	node     TaskNodeDL
	queue    QueueKind
	owner    *WaitQueue
	waitList WaitQueue

	parent             TaskHandle
	exitStatus         int
	waitingAllChildren bool
	unblockChild       TaskHandle
	sleeping           bool
	signals            uint64 //pending, one bit per signal
	exec               bool   //image replaced, old context is garbage

	preemptCount int
	frame        riscv.RegsContext //valid only while current
	utime, stime uint64
	fds          []io.Closer

	slot   int
	gen    uint32
	strand *strand
	body   func(*Proc)
}

func (t *Task) Pid() int {
	return t.pid
}

func (t *Task) Tid() int {
	return t.tid
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Status() TaskStatus {
	return t.status
}

func (t *Task) Type() TaskType {
	return t.typ
}

func (t *Task) Priority() int {
	return t.priority
}

func (t *Task) ExitStatus() int {
	return t.exitStatus
}

func (t *Task) Handle() TaskHandle {
	if t.slot < 0 {
		return NoTask
	}
	return TaskHandle{slot: int32(t.slot), gen: t.gen}
}

// free is true when the slot can be handed out again: the task has exited
// and nobody is left to collect its status.
func (t *Task) free() bool {
	return t.status == StatusExited && !t.parent.Valid()
}

// AddFile gives the task a descriptor that is closed when the task's
// resources are released.  Returns the descriptor number.
func (t *Task) AddFile(c io.Closer) int {
	t.fds = append(t.fds, c)
	return len(t.fds) - 1
}

func (t *Task) closeFiles() {
	for i, c := range t.fds {
		if c != nil {
			c.Close()
		}
		t.fds[i] = nil
	}
	t.fds = t.fds[:0]
}

// TaskInfo is a copy of the interesting fields of a task, for listings.
type TaskInfo struct {
	Slot         int
	Pid, Tid     int
	Parent       int //tid, 0 if detached
	Name         string
	Status       TaskStatus
	Type         TaskType
	Priority     int
	TempPriority int
	Mask         uint64
	Queue        QueueKind
	ExitStatus   int
	UTime, STime uint64
}
