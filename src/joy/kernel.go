package joy

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"serenity/src/drivers/blockdev"
	"serenity/src/hardware/console"
	"serenity/src/hardware/riscv"
	"serenity/src/joy/vm"
	"serenity/src/lib/loader"
	"serenity/src/lib/trust"
	"serenity/src/lib/upbeat"
)

// Program is something the kernel can start.  Body is the code the task
// runs; Image, if present, is a RISC-V ELF file whose segments are placed
// in the task's address space before Body starts.
type Program struct {
	Name     string
	Type     TaskType
	Priority int
	Image    []byte
	Body     func(*Proc)
}

// ErrDeadlock is returned by Run when tasks are alive but none can ever
// run again.
var ErrDeadlock = errors.New("joy: every live task is blocked and no timer is armed")

// HaltError is the kernel's panic: an invariant broke and the machine
// stopped.
type HaltError struct {
	Reason string
	Tid    int //task that was current
	Frame  riscv.RegsContext
}

func (h *HaltError) Error() string {
	return fmt.Sprintf("kernel halted in task %d: %s", h.Tid, h.Reason)
}

// Kernel is one hart's worth of kernel: the task table, its queues,
// timers, trap tables and memory.
type Kernel struct {
	cfg      *Config
	log      *trust.Logger
	mem      *upbeat.PhysicalMemory
	frames   *upbeat.BitmapFrames
	walker   *vm.Walker
	hart     hart
	firmware Firmware
	screen   console.Screen
	console  *Console

	tasks     []Task
	idle      *Task
	current   *Task
	ready     *WaitQueue
	blocked   *WaitQueue
	available *WaitQueue
	fileOp    *WaitQueue
	nextTid   int
	quantum   uint64

	timers     *TimerFixedDL
	interrupts [riscv.CauseTableSize]TrapHandler
	exceptions [riscv.CauseTableSize]TrapHandler
	syscalls   [SyscallTableSize]SyscallFunc

	programs map[string]*Program
	entries  map[uint64]func(*Proc)

	ctx     context.Context
	done    chan struct{}
	started bool
	haltErr *HaltError
}

// New boots a kernel.  swap may be nil, in which case pages are never
// evicted and running out of frames kills the faulting task.
func New(cfg *Config, screen console.Screen, swap blockdev.Device) (*Kernel, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if screen == nil {
		screen = &console.Buffer{}
	}
	k := &Kernel{
		cfg:       cfg,
		log:       trust.For("joy"),
		screen:    screen,
		console:   &Console{screen: screen},
		ready:     newQueue(QueueReady),
		blocked:   newQueue(QueueBlocked),
		available: newQueue(QueueAvailable),
		fileOp:    newQueue(QueueFileOp),
		nextTid:   1,
		quantum:   cfg.Quantum(),
		programs:  make(map[string]*Program),
		entries:   make(map[uint64]func(*Proc)),
		ctx:       context.Background(),
		done:      make(chan struct{}),
	}
	k.firmware = &k.hart

	k.mem = upbeat.NewPhysicalMemory(cfg.MemoryBase, cfg.MemoryFrames)
	frames, err := upbeat.NewBitmapFrames(k.mem, cfg.ReservedFrames)
	if err != nil {
		return nil, err
	}
	k.frames = frames
	var area *vm.SwapArea
	if swap != nil && cfg.SwapSlots > 0 {
		area, err = vm.NewSwapArea(swap, cfg.SwapStartBlock, cfg.SwapSlots)
		if err != nil {
			return nil, err
		}
	}
	k.walker = vm.NewWalker(k.mem, frames, area, vm.Options{
		LoadGrantsWrite: cfg.LoadGrantsWrite,
		Flush:           k.firmware.FlushTLB,
	})
	if err := k.walker.InitKernel(); err != nil {
		return nil, fmt.Errorf("building the kernel page table: %w", err)
	}

	idle := &Task{
		name:         "idle",
		status:       StatusRunning,
		typ:          KernelProcess,
		mask:         allCPUs,
		pgdir:        k.walker.KernelRoot(),
		slot:         -1,
		strand:       newStrandChan(),
		parent:       NoTask,
		unblockChild: NoTask,
		waitList:     WaitQueue{kind: QueueWait, list: NewTaskDoublyLinkedList()},
	}
	idle.node = TaskNodeDL{value: idle}
	if idle.kernelStack, err = frames.AllocateFrame(); err != nil {
		return nil, fmt.Errorf("idle kernel stack: %w", err)
	}
	idle.frame.Sstatus = riscv.SstatusSPP | riscv.SstatusSIE
	idle.frame.Satp = riscv.MakeSatp(0, idle.pgdir)
	k.idle = idle
	k.current = idle
	k.hart.regs = idle.frame

	//the table is built as if the idle task held the cpu inside a trap
	k.prohibitPreemption()
	k.tasks = make([]Task, cfg.MaxTasks)
	for i := range k.tasks {
		t := &k.tasks[i]
		t.slot = i
		t.status = StatusExited
		t.parent = NoTask
		t.unblockChild = NoTask
		t.node = TaskNodeDL{value: t}
		t.waitList = WaitQueue{kind: QueueWait, list: NewTaskDoublyLinkedList()}
		k.move(t, k.available)
	}
	k.permitPreemption()

	k.timers = NewTimerFixedDL(NewTimerFixedPool(cfg.MaxTimers))
	k.initTraps()
	k.initSyscalls()
	if err := k.walker.UnmapBootWindow(); err != nil {
		return nil, fmt.Errorf("unmapping the boot window: %w", err)
	}
	k.log.Infof("%d frames of %d free, %d task slots, quantum %d ticks",
		frames.FreeCount(), cfg.MemoryFrames, cfg.MaxTasks, k.quantum)
	return k, nil
}

// Register makes prog available to Start, spawn and execve.
func (k *Kernel) Register(prog *Program) error {
	if prog.Name == "" || prog.Body == nil {
		return fmt.Errorf("program needs a name and a body")
	}
	if _, dup := k.programs[prog.Name]; dup {
		return fmt.Errorf("program %s already registered", prog.Name)
	}
	k.programs[prog.Name] = prog
	return nil
}

func (k *Kernel) program(name string) (*Program, error) {
	prog, ok := k.programs[name]
	if !ok {
		return nil, MakeError(ErrorTaskNoProgram, k.current.tid)
	}
	return prog, nil
}

// Start creates a task with no parent running the named program and
// returns its tid.  It must be called before Run.
func (k *Kernel) Start(name string, arg uint64) (int, error) {
	if k.started {
		return 0, errors.New("joy: Start after Run")
	}
	prog, err := k.program(name)
	if err != nil {
		return 0, err
	}
	k.prohibitPreemption()
	defer k.permitPreemption()
	t, err := k.spawn(nil, prog, arg)
	if err != nil {
		return 0, err
	}
	return t.tid, nil
}

// registerEntry files fn under a text address that clone can jump to.
// clone takes the entry out again, so addresses are reused.
func (k *Kernel) registerEntry(fn func(*Proc)) uint64 {
	va := uint64(loader.UserTextBase + 0x1000)
	for k.entries[va] != nil {
		va += 16
	}
	k.entries[va] = fn
	return va
}

// Run is the idle task.  It schedules until every task has exited, the
// context is done, nothing can ever run again (ErrDeadlock) or the kernel
// halts (*HaltError).  A kernel runs once.
func (k *Kernel) Run(ctx context.Context) (err error) {
	if k.started {
		return errors.New("joy: kernel already ran")
	}
	k.started = true
	k.ctx = ctx
	defer close(k.done)
	defer func() {
		if r := recover(); r != nil {
			k.recordHalt(r)
		}
		if k.haltErr != nil {
			err = k.haltErr
		}
		if ferr := k.screen.Refresh(); ferr != nil && err == nil {
			err = ferr
		}
	}()

	k.firmware.SetTimer(k.Ticks() + k.quantum)
	for {
		if k.haltErr != nil {
			return k.haltErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if k.liveTasks() == 0 {
			k.log.Infof("no tasks left at tick %d", k.Ticks())
			return nil
		}
		if k.runnable() {
			k.prohibitPreemption()
			k.schedule()
			k.permitPreemption()
			continue
		}
		if !k.wfi() {
			k.log.Errorf("deadlock: %d tasks alive, none runnable", k.liveTasks())
			return ErrDeadlock
		}
	}
}

// wfi sleeps until the next timer, which on the simulated hart means
// moving time forward to it and taking the interrupt.
func (k *Kernel) wfi() bool {
	deadline, ok := k.nextDeadline()
	if !ok {
		return false
	}
	if deadline > k.hart.ticks {
		k.hart.ticks = deadline
	}
	k.trap(riscv.Interrupt(riscv.IRQSupervisorTimer), 0)
	return true
}

// checkInterrupts takes the timer interrupt if it is due and enabled.
func (k *Kernel) checkInterrupts() {
	if k.hart.ticks >= k.hart.deadline && k.hart.interruptsEnabled() && k.current.preemptCount == 0 {
		k.trap(riscv.Interrupt(riscv.IRQSupervisorTimer), 0)
	}
}

func (k *Kernel) runnable() bool {
	for n := k.ready.list.First(); n != nil; n = n.Next() {
		if (n.Value().mask>>cpuID)&1 != 0 {
			return true
		}
	}
	return false
}

func (k *Kernel) liveTasks() int {
	n := 0
	for i := range k.tasks {
		if k.tasks[i].status != StatusExited {
			n++
		}
	}
	return n
}

// halt stops the machine.  It does not return.
func (k *Kernel) halt(format string, params ...interface{}) {
	panic(&HaltError{
		Reason: fmt.Sprintf(format, params...),
		Tid:    k.current.tid,
		Frame:  k.hart.regs,
	})
}

// recordHalt keeps the first halt and reports it on the console.
func (k *Kernel) recordHalt(r interface{}) {
	h, ok := r.(*HaltError)
	if !ok {
		h = &HaltError{Reason: fmt.Sprint(r), Tid: k.current.tid, Frame: k.hart.regs}
	}
	if k.haltErr != nil {
		return
	}
	k.haltErr = h
	k.console.Logf("kernel halt: %s\n", h.Reason)
	k.console.DumpRegisters(&h.Frame)
	k.log.Errorf("%v", h)
	k.log.Debugf("%s", debug.Stack())
}

// Tasks lists the idle task and every slot in use.
func (k *Kernel) Tasks() []TaskInfo {
	result := []TaskInfo{k.info(k.idle)}
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.free() || t.tid == 0 {
			continue
		}
		result = append(result, k.info(t))
	}
	return result
}

func (k *Kernel) info(t *Task) TaskInfo {
	ti := TaskInfo{
		Slot:         t.slot,
		Pid:          t.pid,
		Tid:          t.tid,
		Name:         t.name,
		Status:       t.status,
		Type:         t.typ,
		Priority:     t.priority,
		TempPriority: t.tempPriority,
		Mask:         t.mask,
		Queue:        t.queue,
		ExitStatus:   t.exitStatus,
		UTime:        t.utime,
		STime:        t.stime,
	}
	if p := k.resolve(t.parent); p != nil {
		ti.Parent = p.tid
	}
	if t.status == StatusExited {
		ti.Status = StatusZombie
	}
	return ti
}

// Screen is where the kernel console writes.
func (k *Kernel) Screen() console.Screen {
	return k.screen
}

func (k *Kernel) Config() *Config {
	return k.cfg
}
