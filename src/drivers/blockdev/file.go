package blockdev

import (
	"fmt"
	"os"
)

// FileDevice is a disk image on the host.
type FileDevice struct {
	f      *os.File
	blocks uint64
}

// OpenFile opens (creating if needed) the image at path and makes sure it
// is at least blocks long.
func OpenFile(path string, blocks uint64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	want := int64(blocks * BlockSize)
	if st.Size() < want {
		if err := f.Truncate(want); err != nil {
			f.Close()
			return nil, fmt.Errorf("sizing %s: %w", path, err)
		}
	}
	return &FileDevice{f: f, blocks: blocks}, nil
}

func (d *FileDevice) Blocks() uint64 {
	return d.blocks
}

func (d *FileDevice) ReadBlocks(dst []byte, block uint64, count int) error {
	if d.f == nil {
		return BlockClosed
	}
	if err := checkRequest(dst, block, count, d.blocks); err != nil {
		return err
	}
	if _, err := d.f.ReadAt(dst[:count*BlockSize], int64(block*BlockSize)); err != nil {
		return fmt.Errorf("%w: %v", BlockIO, err)
	}
	return nil
}

func (d *FileDevice) WriteBlocks(src []byte, block uint64, count int) error {
	if d.f == nil {
		return BlockClosed
	}
	if err := checkRequest(src, block, count, d.blocks); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(src[:count*BlockSize], int64(block*BlockSize)); err != nil {
		return fmt.Errorf("%w: %v", BlockIO, err)
	}
	return nil
}

func (d *FileDevice) Close() error {
	if d.f == nil {
		return BlockClosed
	}
	err := d.f.Close()
	d.f = nil
	return err
}
