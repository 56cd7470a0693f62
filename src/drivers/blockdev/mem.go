package blockdev

// MemDevice keeps its blocks in memory.
type MemDevice struct {
	data []byte
}

func NewMemDevice(blocks uint64) *MemDevice {
	return &MemDevice{data: make([]byte, blocks*BlockSize)}
}

func (m *MemDevice) Blocks() uint64 {
	return uint64(len(m.data)) / BlockSize
}

func (m *MemDevice) ReadBlocks(dst []byte, block uint64, count int) error {
	if err := checkRequest(dst, block, count, m.Blocks()); err != nil {
		return err
	}
	off := block * BlockSize
	copy(dst[:count*BlockSize], m.data[off:])
	return nil
}

func (m *MemDevice) WriteBlocks(src []byte, block uint64, count int) error {
	if err := checkRequest(src, block, count, m.Blocks()); err != nil {
		return err
	}
	off := block * BlockSize
	copy(m.data[off:off+uint64(count)*BlockSize], src)
	return nil
}
