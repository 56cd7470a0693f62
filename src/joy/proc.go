package joy

import (
	"encoding/binary"
	"fmt"
	"time"

	"serenity/src/hardware/riscv"
	"serenity/src/joy/vm"
)

// Proc is what a program body runs on: the hart as seen from one task.
// Memory goes through the task's page table and kernel services through
// ecall, so a body sees the same faults and preemption a compiled program
// would.  A Proc must only be used from its own task's body.
type Proc struct {
	k   *Kernel
	t   *Task
	arg uint64
}

func newProc(k *Kernel, t *Task) *Proc {
	return &Proc{k: k, t: t, arg: k.hart.regs.Regs[riscv.A0]}
}

// Arg is the value the task was started with (a0 at entry).
func (p *Proc) Arg() uint64 {
	return p.arg
}

// Task is the control block of the task this Proc belongs to.
func (p *Proc) Task() *Task {
	return p.t
}

func (p *Proc) own() {
	if p.k.current != p.t {
		p.k.halt("task %d's body ran while task %d was current", p.t.tid, p.k.current.tid)
	}
}

// Compute burns ticks of user time.  The task can be preempted along the
// way.
func (p *Proc) Compute(ticks uint64) {
	p.own()
	h := &p.k.hart
	for ticks > 0 {
		d := ticks
		if h.deadline > h.ticks && h.deadline-h.ticks < d {
			d = h.deadline - h.ticks
		}
		h.ticks += d
		p.t.utime += d
		ticks -= d
		p.k.checkInterrupts()
	}
}

// Syscall is ecall: number in a7, arguments in a0-a5, result from a0.
func (p *Proc) Syscall(num uint64, args ...uint64) int64 {
	p.own()
	regs := &p.k.hart.regs
	for i := 0; i < 6; i++ {
		var v uint64
		if i < len(args) {
			v = args[i]
		}
		regs.Regs[riscv.A0+i] = v
	}
	regs.Regs[riscv.A7] = num
	cause := uint64(riscv.ExcUserEcall)
	if !regs.UserMode() {
		cause = riscv.ExcSupervisorEcall
	}
	p.k.trap(riscv.Exception(cause), 0)
	return int64(p.k.hart.regs.Regs[riscv.A0])
}

func result(ret int64) (int, error) {
	if ret < 0 {
		return 0, Errno(-ret)
	}
	return int(ret), nil
}

// translate is the MMU: it walks the current page table and takes the
// page fault when the walk fails, then tries again.
func (p *Proc) translate(va uint64, a vm.Access) uint64 {
	k := p.k
	for i := 0; ; i++ {
		regs := &k.hart.regs
		user := regs.UserMode() || !riscv.IsKernelAddress(va)
		if pa, ok := k.walker.Translate(riscv.SatpRoot(regs.Satp), va, a, user); ok {
			return pa
		}
		if i == 2 {
			k.halt("fault at %#x (%s) keeps repeating", va, a)
		}
		k.trap(riscv.Exception(a.Cause()), va)
	}
}

// access runs fn on every page sized piece of [va, va+n), off being the
// offset of the piece from va.
func (p *Proc) access(va uint64, n int, a vm.Access, fn func(off int, b []byte)) {
	p.own()
	off := 0
	for off < n {
		c := int(riscv.PageSize - (va+uint64(off))&(riscv.PageSize-1))
		if c > n-off {
			c = n - off
		}
		pa := p.translate(va+uint64(off), a)
		fn(off, p.k.mem.Bytes(pa, uint64(c)))
		off += c
	}
	p.Compute(1)
}

func (p *Proc) ReadBytes(va uint64, n int) []byte {
	buf := make([]byte, n)
	p.access(va, n, vm.AccessLoad, func(off int, b []byte) {
		copy(buf[off:], b)
	})
	return buf
}

func (p *Proc) WriteBytes(va uint64, data []byte) {
	p.access(va, len(data), vm.AccessStore, func(off int, b []byte) {
		copy(b, data[off:])
	})
}

func (p *Proc) Load64(va uint64) uint64 {
	return binary.LittleEndian.Uint64(p.ReadBytes(va, 8))
}

func (p *Proc) Store64(va uint64, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	p.WriteBytes(va, b[:])
}

// Fetch reads the instruction word at va.
func (p *Proc) Fetch(va uint64) uint32 {
	var w uint32
	p.access(va, 4, vm.AccessFetch, func(off int, b []byte) {
		for i, c := range b {
			w |= uint32(c) << (8 * uint(off+i))
		}
	})
	return w
}

// onStack copies b below the stack pointer, calls fn with its address and
// pops it again.
func (p *Proc) onStack(b []byte, fn func(va uint64) int64) int64 {
	sp := p.k.hart.regs.Regs[riscv.SP]
	va := (sp - uint64(len(b))) &^ 15
	p.WriteBytes(va, b)
	p.k.hart.regs.Regs[riscv.SP] = va
	ret := fn(va)
	p.k.hart.regs.Regs[riscv.SP] = sp
	return ret
}

func cstring(s string) []byte {
	return append([]byte(s), 0)
}

// Exit ends the task.  It does not return.
func (p *Proc) Exit(status int) {
	p.Syscall(SysExit, uint64(status))
	p.k.halt("task %d returned from exit", p.t.tid)
}

func (p *Proc) Yield() {
	p.Syscall(SysSchedYield)
}

func (p *Proc) Sleep(d time.Duration) error {
	var ts [16]byte
	binary.LittleEndian.PutUint64(ts[0:], uint64(d/time.Second))
	binary.LittleEndian.PutUint64(ts[8:], uint64(d%time.Second))
	_, err := result(p.onStack(ts[:], func(va uint64) int64 {
		return p.Syscall(SysNanosleep, va, 0)
	}))
	return err
}

const writeChunk = 256

// Write sends b to the console.
func (p *Proc) Write(b []byte) (int, error) {
	return p.WriteFile(1, b)
}

// WriteFile writes b to descriptor fd.
func (p *Proc) WriteFile(fd int, b []byte) (int, error) {
	total := 0
	for len(b) > 0 {
		c := b
		if len(c) > writeChunk {
			c = c[:writeChunk]
		}
		n, err := result(p.onStack(c, func(va uint64) int64 {
			return p.Syscall(SysWrite, uint64(fd), va, uint64(len(c)))
		}))
		total += n
		if err != nil {
			return total, err
		}
		b = b[len(c):]
	}
	return total, nil
}

func (p *Proc) Printf(format string, params ...interface{}) {
	p.Write([]byte(fmt.Sprintf(format, params...)))
}

// Spawn starts the registered program name as a child and returns its tid.
func (p *Proc) Spawn(name string, arg uint64) (int, error) {
	return result(p.onStack(cstring(name), func(va uint64) int64 {
		return p.Syscall(SysSpawn, va, arg)
	}))
}

// Clone starts a thread running fn with a copy of this task's stack.
func (p *Proc) Clone(fn func(*Proc), arg uint64) (int, error) {
	entry := p.k.registerEntry(fn)
	return result(p.Syscall(SysClone, 0, 0, 0, entry, 0, arg))
}

// Exec replaces this task's image with the program name.  It only returns
// on failure.
func (p *Proc) Exec(name string, arg uint64) error {
	_, err := result(p.onStack(cstring(name), func(va uint64) int64 {
		return p.Syscall(SysExecve, va, arg, 0)
	}))
	return err
}

// Wait4 waits for child pid, or any child for -1, and returns its tid and
// exit status.
func (p *Proc) Wait4(pid int) (int, int, error) {
	var status [8]byte
	var raw uint32
	tid, err := result(p.onStack(status[:], func(va uint64) int64 {
		ret := p.Syscall(SysWait4, uint64(int64(pid)), va, 0, 0)
		if ret >= 0 {
			raw = binary.LittleEndian.Uint32(p.ReadBytes(va, 4))
		}
		return ret
	}))
	return tid, int(raw>>8) & 0xff, err
}

func (p *Proc) Kill(pid, sig int) error {
	_, err := result(p.Syscall(SysKill, uint64(int64(pid)), uint64(sig)))
	return err
}

func (p *Proc) Tgkill(tgid, tid, sig int) error {
	_, err := result(p.Syscall(SysTgkill, uint64(int64(tgid)), uint64(int64(tid)), uint64(sig)))
	return err
}

// Taskset sets the cpu mask of tid, 0 for this task.
func (p *Proc) Taskset(tid int, mask uint64) error {
	_, err := result(p.Syscall(SysTaskset, uint64(tid), mask))
	return err
}

func (p *Proc) Getpid() int {
	return int(p.Syscall(SysGetpid))
}

func (p *Proc) Getppid() int {
	return int(p.Syscall(SysGetppid))
}

func (p *Proc) Gettid() int {
	return int(p.Syscall(SysGettid))
}

// Times returns this task's user and system ticks and the tick counter.
func (p *Proc) Times() (utime, stime, ticks uint64, err error) {
	var tms [32]byte
	var raw []byte
	ret := p.onStack(tms[:], func(va uint64) int64 {
		r := p.Syscall(SysTimes, va)
		if r >= 0 {
			raw = p.ReadBytes(va, 16)
		}
		return r
	})
	if ret < 0 {
		return 0, 0, 0, Errno(-ret)
	}
	return binary.LittleEndian.Uint64(raw[0:]), binary.LittleEndian.Uint64(raw[8:]), uint64(ret), nil
}

func (p *Proc) GetTick() uint64 {
	return uint64(p.Syscall(SysGetTick))
}

// ProcessShow prints the task table on the console and returns the
// number of entries.
func (p *Proc) ProcessShow() int {
	return int(p.Syscall(SysProcessShow))
}
