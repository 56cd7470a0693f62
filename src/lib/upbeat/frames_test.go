package upbeat

import (
	"testing"

	"serenity/src/hardware/riscv"
)

func newTestFrames(t *testing.T, frames, reserved uint32) (*PhysicalMemory, *BitmapFrames) {
	t.Helper()
	mem := NewPhysicalMemory(0x80000000, frames)
	f, err := NewBitmapFrames(mem, reserved)
	if err != nil {
		t.Fatalf("NewBitmapFrames: %v", err)
	}
	return mem, f
}

func TestFramesSkipReserved(t *testing.T) {
	_, f := newTestFrames(t, 8, 2)
	pa, err := f.AllocateFrame()
	if err != nil {
		t.Fatalf("AllocateFrame: %v", err)
	}
	if pa != 0x80000000+2*riscv.PageSize {
		t.Errorf("first frame is %#x, reserved frames were handed out", pa)
	}
	if f.FreeCount() != 5 {
		t.Errorf("FreeCount() = %d, want 5", f.FreeCount())
	}
}

func TestFramesExhaustAndReuse(t *testing.T) {
	_, f := newTestFrames(t, 4, 0)
	var got []uint64
	for i := 0; i < 4; i++ {
		pa, err := f.AllocateFrame()
		if err != nil {
			t.Fatalf("allocation %d: %v", i, err)
		}
		got = append(got, pa)
	}
	if _, err := f.AllocateFrame(); err != ErrNoFreeFrames {
		t.Errorf("expected ErrNoFreeFrames, got %v", err)
	}
	if err := f.FreeFrame(got[2]); err != nil {
		t.Fatalf("FreeFrame: %v", err)
	}
	if err := f.FreeFrame(got[2]); err != ErrFrameAlreadyFree {
		t.Errorf("double free returned %v", err)
	}
	pa, err := f.AllocateFrame()
	if err != nil || pa != got[2] {
		t.Errorf("reallocation = %#x,%v want %#x", pa, err, got[2])
	}
	if err := f.FreeFrame(got[0] + 8); err != ErrBadFrame {
		t.Errorf("unaligned free returned %v", err)
	}
}

func TestFramesAreZeroed(t *testing.T) {
	mem, f := newTestFrames(t, 2, 0)
	pa, _ := f.AllocateFrame()
	mem.Store64(pa+16, 0xdeadbeef)
	if err := f.FreeFrame(pa); err != nil {
		t.Fatalf("FreeFrame: %v", err)
	}
	pa2, _ := f.AllocateFrame()
	if pa2 != pa {
		t.Fatalf("expected the same frame back")
	}
	if mem.Load64(pa2+16) != 0 {
		t.Errorf("frame was not zeroed on allocation")
	}
}

func TestPhysicalMemoryBounds(t *testing.T) {
	mem := NewPhysicalMemory(0x1000, 1)
	if mem.Contains(0x1ff9, 8) {
		t.Errorf("access crossing the end reported as contained")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("out of range access did not panic")
		}
	}()
	mem.Bytes(0, 8)
}
