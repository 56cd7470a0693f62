package joy

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"serenity/src/hardware/riscv"
	"serenity/src/lib/loader"
)

// Syscall numbers.  The low ones follow the riscv64 Linux numbering.
const (
	SysWrite       = 64
	SysExit        = 93
	SysExitGroup   = 94
	SysNanosleep   = 101
	SysSchedYield  = 124
	SysKill        = 129
	SysTgkill      = 131
	SysTimes       = 153
	SysGetpid      = 172
	SysGetppid     = 173
	SysGettid      = 178
	SysClone       = 220
	SysExecve      = 221
	SysWait4       = 260
	SysSpawn       = 500
	SysTaskset     = 501
	SysProcessShow = 502
	SysGetTick     = 503
)

const SyscallTableSize = 512

// SyscallFunc implements one syscall.  It runs on the calling task with
// preemption prohibited and returns the value for a0: a result or a
// negative errno.
type SyscallFunc func(k *Kernel, args [6]uint64) int64

func (k *Kernel) initSyscalls() {
	k.syscalls[SysWrite] = sysWrite
	k.syscalls[SysExit] = sysExit
	k.syscalls[SysExitGroup] = sysExit
	k.syscalls[SysNanosleep] = sysNanosleep
	k.syscalls[SysSchedYield] = sysSchedYield
	k.syscalls[SysKill] = sysKill
	k.syscalls[SysTgkill] = sysTgkill
	k.syscalls[SysTimes] = sysTimes
	k.syscalls[SysGetpid] = sysGetpid
	k.syscalls[SysGetppid] = sysGetppid
	k.syscalls[SysGettid] = sysGettid
	k.syscalls[SysClone] = sysClone
	k.syscalls[SysExecve] = sysExecve
	k.syscalls[SysWait4] = sysWait4
	k.syscalls[SysSpawn] = sysSpawn
	k.syscalls[SysTaskset] = sysTaskset
	k.syscalls[SysProcessShow] = sysProcessShow
	k.syscalls[SysGetTick] = sysGetTick
}

// RegisterSyscall installs (or replaces) the handler for num.
func (k *Kernel) RegisterSyscall(num int, fn SyscallFunc) error {
	if num < 0 || num >= SyscallTableSize {
		return fmt.Errorf("syscall %d outside the table", num)
	}
	k.syscalls[num] = fn
	return nil
}

// handleSyscall is the ecall exception: a7 holds the number, a0-a5 the
// arguments, and the result goes back in a0.
func (k *Kernel) handleSyscall(frame *riscv.RegsContext, tval uint64, code uint64) {
	frame.Sepc += 4
	num := frame.Regs[riscv.A7]
	k.current.stime++
	k.hart.ticks++
	if num >= SyscallTableSize || k.syscalls[num] == nil {
		k.log.Warnf("task %d: unknown syscall %d", k.current.tid, num)
		frame.SetReturn(MakeError(ErrorSyscallUnknown, k.current.tid).Errno())
		return
	}
	var args [6]uint64
	for i := range args {
		args[i] = frame.Arg(i)
	}
	frame.SetReturn(k.syscalls[num](k, args))
}

// errno converts a kernel error to a syscall result.
func errno(err error) int64 {
	if err == nil {
		return 0
	}
	if je, ok := err.(JoyError); ok {
		return je.Errno()
	}
	return -EINVAL
}

func sysWrite(k *Kernel, args [6]uint64) int64 {
	t := k.current
	fd, va, n := int(args[0]), args[1], int(args[2])
	var w io.Writer
	switch {
	case fd == 1 || fd == 2:
		w = k.screen
	case fd >= 3 && fd-3 < len(t.fds):
		w, _ = t.fds[fd-3].(io.Writer)
	}
	if w == nil {
		return -EBADF
	}
	if n < 0 || uint64(n) > loader.UserLimit {
		return -EINVAL
	}
	if err := k.userRange(t, va, n); err != nil {
		return errno(err)
	}
	//a page at a time, the length is the caller's
	chunk := make([]byte, riscv.PageSize)
	written := 0
	for written < n {
		c := chunk
		if n-written < len(c) {
			c = c[:n-written]
		}
		if err := k.copyIn(t, va+uint64(written), c); err != nil {
			if written > 0 {
				break
			}
			return errno(err)
		}
		m, err := w.Write(c)
		written += m
		if err != nil {
			k.log.Warnf("task %d: write to fd %d: %v", t.tid, fd, err)
			return -EIO
		}
	}
	return int64(written)
}

func sysExit(k *Kernel, args [6]uint64) int64 {
	k.exit(int(int32(args[0])))
	return 0
}

// nanosleep(req *timespec, rem *timespec).  rem is not written: sleeps
// are never interrupted.
func sysNanosleep(k *Kernel, args [6]uint64) int64 {
	var ts [16]byte
	if err := k.copyIn(k.current, args[0], ts[:]); err != nil {
		return errno(err)
	}
	sec := binary.LittleEndian.Uint64(ts[0:])
	nsec := binary.LittleEndian.Uint64(ts[8:])
	if int64(sec) < 0 || nsec >= 1e9 {
		return -EINVAL
	}
	tb := k.cfg.TimeBase
	if sec > (math.MaxUint64-tb)/tb {
		return -EINVAL
	}
	ticks := sec*tb + nsec*tb/1e9
	if ticks == 0 {
		k.schedule()
		return 0
	}
	return errno(k.sleep(ticks))
}

func sysSchedYield(k *Kernel, args [6]uint64) int64 {
	k.schedule()
	return 0
}

func sysKill(k *Kernel, args [6]uint64) int64 {
	return errno(k.kill(k.current, int(int32(args[0])), int(int32(args[1]))))
}

func sysTgkill(k *Kernel, args [6]uint64) int64 {
	return errno(k.tgkill(k.current, int(int32(args[0])), int(int32(args[1])), int(int32(args[2]))))
}

// times(buf *tms) fills utime and stime of the caller (children's times are
// not tracked) and returns the tick counter.
func sysTimes(k *Kernel, args [6]uint64) int64 {
	t := k.current
	if args[0] != 0 {
		var tms [32]byte
		binary.LittleEndian.PutUint64(tms[0:], t.utime)
		binary.LittleEndian.PutUint64(tms[8:], t.stime)
		if err := k.copyOut(t, args[0], tms[:]); err != nil {
			return errno(err)
		}
	}
	return int64(k.Ticks())
}

func sysGetpid(k *Kernel, args [6]uint64) int64 {
	return int64(k.current.pid)
}

func sysGetppid(k *Kernel, args [6]uint64) int64 {
	if p := k.resolve(k.current.parent); p != nil {
		return int64(p.pid)
	}
	return 0
}

func sysGettid(k *Kernel, args [6]uint64) int64 {
	return int64(k.current.tid)
}

// clone(flags, stack, ptid, tls, ctid, arg).  tls carries the entry
// address of the new thread, which is good for one clone; flags, ptid and
// ctid are ignored.
func sysClone(k *Kernel, args [6]uint64) int64 {
	body, ok := k.entries[args[3]]
	if !ok {
		return -EINVAL
	}
	delete(k.entries, args[3])
	t, err := k.clone(k.current, body, args[3], args[1], args[5])
	if err != nil {
		return errno(err)
	}
	return int64(t.tid)
}

// execve(path, arg, envp).  arg is handed to the new image in a0.
func sysExecve(k *Kernel, args [6]uint64) int64 {
	name, err := k.copyInString(k.current, args[0])
	if err != nil {
		return errno(err)
	}
	prog, err := k.program(name)
	if err != nil {
		return errno(err)
	}
	return errno(k.execImage(prog, args[1]))
}

// wait4(pid, status, options, rusage).  Options and rusage are ignored.
func sysWait4(k *Kernel, args [6]uint64) int64 {
	tid, err := k.wait4(int(int32(args[0])), args[1])
	if err != nil {
		return errno(err)
	}
	return int64(tid)
}

// spawn(name, arg) starts a registered program as a child of the caller.
func sysSpawn(k *Kernel, args [6]uint64) int64 {
	name, err := k.copyInString(k.current, args[0])
	if err != nil {
		return errno(err)
	}
	prog, err := k.program(name)
	if err != nil {
		return errno(err)
	}
	t, err := k.spawn(k.current, prog, args[1])
	if err != nil {
		return errno(err)
	}
	return int64(t.tid)
}

// taskset(tid, mask) sets the cpu affinity of tid, 0 meaning the caller.
func sysTaskset(k *Kernel, args [6]uint64) int64 {
	return errno(k.taskset(k.current, int(int32(args[0])), args[1]))
}

func sysProcessShow(k *Kernel, args [6]uint64) int64 {
	tasks := k.Tasks()
	k.console.ProcessShow(tasks)
	return int64(len(tasks))
}

func sysGetTick(k *Kernel, args [6]uint64) int64 {
	return int64(k.Ticks())
}
