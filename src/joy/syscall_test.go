package joy

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"serenity/src/hardware/riscv"
	"serenity/src/lib/loader"
)

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestIdentitySyscalls(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	var pid, tid, ppid int
	register(t, k, &Program{Name: "who", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		pid, tid, ppid = p.Getpid(), p.Gettid(), p.Getppid()
	}})
	want := start(t, k, "who", 0)
	mustRun(t, k)
	if pid != want || tid != want || ppid != 0 {
		t.Errorf("pid %d tid %d ppid %d, want %d %d 0", pid, tid, ppid, want, want)
	}
}

func TestUnknownAndCustomSyscalls(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	if err := k.RegisterSyscall(SyscallTableSize, nil); err == nil {
		t.Errorf("syscall outside the table accepted")
	}
	var args [6]uint64
	err := k.RegisterSyscall(450, func(k *Kernel, a [6]uint64) int64 {
		args = a
		return 42
	})
	if err != nil {
		t.Fatalf("RegisterSyscall: %v", err)
	}
	var unknown, huge, custom int64
	var sepc [2]uint64
	register(t, k, &Program{Name: "caller", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		unknown = p.Syscall(449)
		huge = p.Syscall(1 << 40)
		sepc[0] = k.hart.regs.Sepc
		custom = p.Syscall(450, 1, 2, 3, 4, 5, 6)
		sepc[1] = k.hart.regs.Sepc
	}})
	start(t, k, "caller", 0)
	mustRun(t, k)
	if unknown != -ENOSYS || huge != -ENOSYS {
		t.Errorf("unknown syscalls returned %d and %d", unknown, huge)
	}
	if custom != 42 || args != [6]uint64{1, 2, 3, 4, 5, 6} {
		t.Errorf("custom syscall returned %d with %v", custom, args)
	}
	if sepc[1] != sepc[0]+4 {
		t.Errorf("ecall did not advance sepc: %#x -> %#x", sepc[0], sepc[1])
	}
}

func TestWrite(t *testing.T) {
	k, screen := newTestKernel(t, nil)
	file := &closeRecorder{}
	var long []byte
	for i := 0; i < 3*writeChunk; i++ {
		long = append(long, byte('a'+i%26))
	}
	var n, fileN int
	var badFD, badPtr, fileErr error
	var badPtrRet int64
	register(t, k, &Program{Name: "writer", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		n, _ = p.Write(long)
		_, badFD = p.WriteFile(9, []byte("x"))
		badPtrRet = p.Syscall(SysWrite, 1, riscv.KVA(k.mem.Base()), 4)
		_, badPtr = result(badPtrRet)
		fd := p.Task().AddFile(file) + 3
		fileN, fileErr = p.WriteFile(fd, []byte("to the file"))
	}})
	start(t, k, "writer", 0)
	mustRun(t, k)
	if n != len(long) || !strings.Contains(screen.String(), string(long)) {
		t.Errorf("wrote %d of %d bytes", n, len(long))
	}
	if badFD != Errno(EBADF) || badPtr != Errno(EFAULT) {
		t.Errorf("errors %v, %v", badFD, badPtr)
	}
	if fileErr != nil || fileN != 11 || file.String() != "to the file" {
		t.Errorf("file write %d, %v: %q", fileN, fileErr, file.String())
	}
	if !file.closed {
		t.Errorf("descriptor not closed at exit")
	}
}

func TestTimes(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	var utime, stime, ticks, tick uint64
	var err error
	register(t, k, &Program{Name: "busy", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		p.Compute(1234)
		utime, stime, ticks, err = p.Times()
		tick = p.GetTick()
	}})
	start(t, k, "busy", 0)
	mustRun(t, k)
	if err != nil || utime < 1234 || stime == 0 || ticks < utime+stime || tick <= ticks {
		t.Errorf("times = %d, %d, %d, %v; tick %d", utime, stime, ticks, err, tick)
	}
}

func TestWriteChecksLength(t *testing.T) {
	k, screen := newTestKernel(t, nil)
	data := bytes.Repeat([]byte("0123456789abcdef"), int(2*riscv.PageSize/16)+7)
	var huge, past, whole int64
	register(t, k, &Program{Name: "writer", Type: UserProcess, Priority: 1, Body: func(p *Proc) {
		huge = p.Syscall(SysWrite, 1, loader.UserTextBase, 1<<50)
		past = p.Syscall(SysWrite, 1, loader.UserLimit-16, riscv.PageSize)
		p.WriteBytes(loader.UserHeapBase, data)
		whole = p.Syscall(SysWrite, 1, loader.UserHeapBase, uint64(len(data)))
	}})
	start(t, k, "writer", 0)
	mustRun(t, k)
	if huge != -EINVAL {
		t.Errorf("write of 1<<50 bytes returned %d", huge)
	}
	if past != -EFAULT {
		t.Errorf("write past the user limit returned %d", past)
	}
	if whole != int64(len(data)) || !strings.Contains(screen.String(), string(data)) {
		t.Errorf("write across pages returned %d of %d", whole, len(data))
	}
}

func TestNanosleepRejectsBadTimespec(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	tests := []struct {
		name      string
		sec, nsec uint64
	}{
		{"nsec too large", 0, 0xffffffff},
		{"negative sec", 1 << 63, 0},
		{"sec overflows the clock", 1 << 62, 0},
	}
	rets := make([]int64, len(tests))
	register(t, k, &Program{Name: "sleepy", Type: KernelProcess, Priority: 1, Body: func(p *Proc) {
		for i, tc := range tests {
			var ts [16]byte
			binary.LittleEndian.PutUint64(ts[0:], tc.sec)
			binary.LittleEndian.PutUint64(ts[8:], tc.nsec)
			rets[i] = p.onStack(ts[:], func(va uint64) int64 {
				return p.Syscall(SysNanosleep, va, 0)
			})
		}
	}})
	start(t, k, "sleepy", 0)
	mustRun(t, k)
	for i, tc := range tests {
		if rets[i] != -EINVAL {
			t.Errorf("%s: nanosleep returned %d", tc.name, rets[i])
		}
	}
}
