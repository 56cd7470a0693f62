package joy

import (
	"bytes"
	"debug/elf"
	"errors"

	"serenity/src/hardware/riscv"
	"serenity/src/joy/vm"
	"serenity/src/lib/loader"
)

// imageInstaller places loader pages in the address space root.  All
// image pages are user pages: kernel tasks reach them through SUM.
type imageInstaller struct {
	k    *Kernel
	root uint64
}

func (i *imageInstaller) InstallPage(va uint64, prot elf.ProgFlag) ([]byte, error) {
	var flags riscv.PTEFlag
	if prot&elf.PF_R != 0 {
		flags |= riscv.Read
	}
	if prot&elf.PF_W != 0 {
		flags |= riscv.Write | riscv.Read
	}
	if prot&elf.PF_X != 0 {
		flags |= riscv.Exec
	}
	pa, err := i.k.walker.MapPage(i.root, va, flags|riscv.User)
	if err != nil {
		return nil, err
	}
	return i.k.mem.Page(pa), nil
}

// buildImage makes a fresh address space holding prog.  A program without
// an image gets an empty space; its text and data are demand paged.
func (k *Kernel) buildImage(prog *Program) (uint64, uint64, error) {
	caller := k.current.tid
	root, err := k.walker.NewRoot()
	if err != nil {
		return 0, 0, MakeError(ErrorMemoryNoFrames, caller)
	}
	entry := uint64(loader.UserTextBase)
	if len(prog.Image) > 0 {
		info, err := loader.Load(bytes.NewReader(prog.Image), &imageInstaller{k: k, root: root}, k.log)
		if err != nil {
			k.walker.FreeAll(root)
			k.log.Errorf("loading %s: %v", prog.Name, err)
			if err == loader.LoaderCannotInstallPage {
				return 0, 0, MakeError(ErrorMemoryNoFrames, caller)
			}
			return 0, 0, MakeError(ErrorTaskNoProgram, caller)
		}
		entry = info.EntryPoint
		k.log.Debugf("%s: entry %#x, %d pages, brk %#x", prog.Name, entry, info.TotalCodePages, info.Brk)
	}
	return root, entry, nil
}

// memoryError turns a walker error met on behalf of t into the error a
// syscall reports.  Anything that means the tables are corrupt halts.
func (k *Kernel) memoryError(t *Task, err error) error {
	var pf *vm.ProtectionFault
	switch {
	case errors.Is(err, vm.ErrUnmapped), errors.Is(err, vm.ErrKernelAddress), errors.As(err, &pf):
		return MakeError(ErrorMemoryBadAddress, t.tid)
	case errors.Is(err, vm.ErrNoMemory):
		return MakeError(ErrorMemoryNoFrames, t.tid)
	case errors.Is(err, vm.ErrSwapFull):
		return MakeError(ErrorMemorySwapFull, t.tid)
	}
	k.halt("memory access for task %d: %v", t.tid, err)
	return nil
}

// userRange checks that [va, va+n) is something t may hand the kernel.
func (k *Kernel) userRange(t *Task, va uint64, n int) error {
	end := va + uint64(n)
	if end < va || (t.typ.User() && (riscv.IsKernelAddress(va) || end > loader.UserLimit)) {
		return MakeError(ErrorMemoryBadAddress, t.tid)
	}
	return nil
}

// prefault makes every page of [va, va+n) present in t's space, as the
// hart would while the kernel touches user memory.
func (k *Kernel) prefault(t *Task, va uint64, n int, a vm.Access) error {
	if riscv.IsKernelAddress(va) {
		return nil
	}
	for page := riscv.PageBase(va); page < va+uint64(n); page += riscv.PageSize {
		if _, err := k.walker.Resolve(t.pgdir, page); err == nil {
			continue
		}
		if err := k.walker.HandleFault(t.pgdir, page, a); err != nil {
			return k.memoryError(t, err)
		}
	}
	return nil
}

// copyIn reads user memory of t.
func (k *Kernel) copyIn(t *Task, va uint64, buf []byte) error {
	if err := k.userRange(t, va, len(buf)); err != nil {
		return err
	}
	if err := k.prefault(t, va, len(buf), vm.AccessLoad); err != nil {
		return err
	}
	if err := k.walker.ReadUser(t.pgdir, va, buf); err != nil {
		return k.memoryError(t, err)
	}
	return nil
}

// copyOut writes user memory of t.
func (k *Kernel) copyOut(t *Task, va uint64, buf []byte) error {
	if err := k.userRange(t, va, len(buf)); err != nil {
		return err
	}
	if err := k.prefault(t, va, len(buf), vm.AccessStore); err != nil {
		return err
	}
	if err := k.walker.WriteUser(t.pgdir, va, buf); err != nil {
		return k.memoryError(t, err)
	}
	return nil
}

// maxName bounds the strings syscalls read from user memory.
const maxName = 64

func (k *Kernel) copyInString(t *Task, va uint64) (string, error) {
	if err := k.userRange(t, va, 1); err != nil {
		return "", err
	}
	if err := k.prefault(t, va, 1, vm.AccessLoad); err != nil {
		return "", err
	}
	s, err := k.walker.ReadString(t.pgdir, va, maxName)
	if err != nil {
		return "", k.memoryError(t, err)
	}
	return s, nil
}

// MemoryStats is a snapshot of physical memory and paging activity.
type MemoryStats struct {
	FreeFrames  int
	TotalFrames int
	SwapFree    int
	SwappedOut  int
	Paging      vm.Stats
}

func (k *Kernel) MemoryStats() MemoryStats {
	s := MemoryStats{
		FreeFrames:  k.frames.FreeCount(),
		TotalFrames: int(k.mem.Frames()),
		Paging:      k.walker.Stats(),
	}
	if swap := k.walker.Swap(); swap != nil {
		s.SwapFree = swap.FreeSlots()
		s.SwappedOut = swap.SwappedPages()
	}
	return s
}
