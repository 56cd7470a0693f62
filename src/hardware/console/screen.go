package console

import (
	"bytes"
	"io"
	"sync"

	tty "github.com/mattn/go-tty"
)

// Screen is the display the kernel writes to.  Output may be held back
// until Refresh, which the timer interrupt calls on every tick.
type Screen interface {
	io.Writer
	Refresh() error
}

// Buffer is a Screen that keeps everything in memory.  Tests read it back
// with String.
type Buffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	refreshes int
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) Refresh() error {
	b.mu.Lock()
	b.refreshes++
	b.mu.Unlock()
	return nil
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Refreshes is the number of times Refresh was called.
func (b *Buffer) Refreshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

// TTY is a Screen on a terminal device.  Writes collect in a pending buffer
// and reach the device on Refresh, like a frame buffer flip.
type TTY struct {
	io      *tty.TTY
	pending bytes.Buffer
	restore func() error
}

// OpenTTY opens the terminal at path, or the controlling terminal when path
// is empty.  raw puts the device in raw mode until Close.
func OpenTTY(path string, raw bool) (*TTY, error) {
	var t *tty.TTY
	var err error
	if path == "" {
		t, err = tty.Open()
	} else {
		t, err = tty.OpenDevice(path)
	}
	if err != nil {
		return nil, err
	}
	result := &TTY{io: t}
	if raw {
		result.restore = t.MustRaw()
	}
	return result, nil
}

func (t *TTY) Write(p []byte) (int, error) {
	return t.pending.Write(p)
}

func (t *TTY) Refresh() error {
	if t.pending.Len() == 0 {
		return nil
	}
	//raw mode does not map newlines
	out := bytes.ReplaceAll(t.pending.Bytes(), []byte("\n"), []byte("\r\n"))
	t.pending.Reset()
	_, err := t.io.Output().Write(out)
	return err
}

// Close flushes what is pending and releases the device.
func (t *TTY) Close() error {
	err := t.Refresh()
	if t.restore != nil {
		t.restore()
	}
	if cerr := t.io.Close(); err == nil {
		err = cerr
	}
	return err
}
