package blockdev

// BlockSize is the sector size of every device.
const BlockSize = 512

type BlockError int32

// Device is a synchronous block device.  Buffers must hold count*BlockSize
// bytes.
type Device interface {
	ReadBlocks(dst []byte, block uint64, count int) error
	WriteBlocks(src []byte, block uint64, count int) error
	Blocks() uint64
}

const (
	BlockOk          BlockError = 0
	BlockBadArg      BlockError = -1
	BlockOutOfRange  BlockError = -2
	BlockShortBuffer BlockError = -3
	BlockIO          BlockError = -4
	BlockClosed      BlockError = -5
	BlockUnknown     BlockError = -6
)

func (e BlockError) Error() string {
	return e.String()
}

func (e BlockError) String() string {
	switch e {
	case BlockOk:
		return "BlockOk"
	case BlockBadArg:
		return "BlockBadArg"
	case BlockOutOfRange:
		return "BlockOutOfRange"
	case BlockShortBuffer:
		return "BlockShortBuffer"
	case BlockIO:
		return "BlockIO"
	case BlockClosed:
		return "BlockClosed"
	}
	return "BlockUnknown"
}

// checkRequest validates a transfer against a device of n blocks.
func checkRequest(buf []byte, block uint64, count int, n uint64) error {
	if count <= 0 {
		return BlockBadArg
	}
	if block >= n || uint64(count) > n-block {
		return BlockOutOfRange
	}
	if len(buf) < count*BlockSize {
		return BlockShortBuffer
	}
	return nil
}
