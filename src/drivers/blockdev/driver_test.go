package blockdev

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func roundTrip(t *testing.T, d Device) {
	t.Helper()
	src := make([]byte, 2*BlockSize)
	for i := range src {
		src[i] = byte(i * 7)
	}
	if err := d.WriteBlocks(src, 3, 2); err != nil {
		t.Fatalf("WriteBlocks: %v", err)
	}
	dst := make([]byte, 2*BlockSize)
	if err := d.ReadBlocks(dst, 3, 2); err != nil {
		t.Fatalf("ReadBlocks: %v", err)
	}
	if !bytes.Equal(src, dst) {
		t.Errorf("blocks read back differ from blocks written")
	}
	if err := d.ReadBlocks(dst, d.Blocks()-1, 2); !errors.Is(err, BlockOutOfRange) {
		t.Errorf("read past the end returned %v", err)
	}
	if err := d.ReadBlocks(dst[:10], 0, 1); !errors.Is(err, BlockShortBuffer) {
		t.Errorf("short buffer returned %v", err)
	}
	if err := d.WriteBlocks(src, 0, 0); !errors.Is(err, BlockBadArg) {
		t.Errorf("zero count returned %v", err)
	}
}

func TestMemDevice(t *testing.T) {
	roundTrip(t, NewMemDevice(16))
}

func TestFileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.img")
	d, err := OpenFile(path, 16)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	roundTrip(t, d)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.ReadBlocks(make([]byte, BlockSize), 0, 1); err != BlockClosed {
		t.Errorf("read after close returned %v", err)
	}

	again, err := OpenFile(path, 16)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	buf := make([]byte, BlockSize)
	if err := again.ReadBlocks(buf, 3, 1); err != nil {
		t.Fatalf("ReadBlocks after reopen: %v", err)
	}
	if buf[1] != 7 {
		t.Errorf("image contents did not persist")
	}
}

func TestBlockErrorString(t *testing.T) {
	if BlockOutOfRange.Error() != "BlockOutOfRange" {
		t.Errorf("Error() = %q", BlockOutOfRange.Error())
	}
	if BlockError(-40).String() != "BlockUnknown" {
		t.Errorf("unknown code printed as %q", BlockError(-40).String())
	}
}
