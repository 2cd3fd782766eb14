package numpipe

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"
)

// UnitSize is the number of bytes moved by one Read or Write on a Handle:
// a little-endian two's complement int32.
const UnitSize = 4

// Mode selects which directions a Handle may use.
type Mode int

const (
	ModeRead Mode = 1 << iota
	ModeWrite
	ModeReadWrite = ModeRead | ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeWrite:
		return "w"
	case ModeReadWrite:
		return "rw"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) valid() bool {
	return m&ModeReadWrite != 0 && m&^ModeReadWrite == 0
}

// Handle is one opener of a Channel. It holds no data of its own; it only
// counts towards the channel's open handles until closed.
//
// Read and Write make Handle an io.ReadWriteCloser whose stream is a
// sequence of UnitSize-byte integers.
type Handle struct {
	ch     *Channel
	mode   Mode
	closed atomic.Bool
}

// Open registers a new handle on the channel.
func (c *Channel) Open(mode Mode) (*Handle, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("%w: open mode %v", ErrInvalidArgument, mode)
	}

	c.refMu.Lock()
	defer c.refMu.Unlock()

	if c.destroyed.Load() {
		return nil, ErrDestroyed
	}

	n := c.openers.Add(1)
	atomic.AddUint64(&c.stats.opens, 1)
	c.log.Info("device opened", zap.Stringer("mode", mode), zap.Int64("open", n))

	return &Handle{ch: c, mode: mode}, nil
}

// Close unregisters h. Closing a handle twice is logged and ignored.
// Close neither wakes waiting calls nor touches stored elements.
func (c *Channel) Close(h *Handle) error {
	if h == nil || h.ch != c {
		return ErrBadHandle
	}
	if !h.closed.CompareAndSwap(false, true) {
		c.log.Warn("handle already closed", zap.Int64("open", c.openers.Load()))
		return nil
	}

	c.refMu.Lock()
	defer c.refMu.Unlock()

	// Unreachable through Open, which always counts the handle it returns;
	// kept so a stray close can never drive the count negative.
	if c.openers.Load() == 0 {
		c.log.Warn("close with no open handles")
		return nil
	}

	n := c.openers.Add(-1)
	atomic.AddUint64(&c.stats.closes, 1)
	c.log.Info("device closed", zap.Int64("open", n))
	return nil
}

// Close unregisters the handle from its channel.
func (h *Handle) Close() error {
	return h.ch.Close(h)
}

// Mode returns the directions the handle was opened for.
func (h *Handle) Mode() Mode {
	return h.mode
}

func (h *Handle) check(want Mode) error {
	if h.closed.Load() {
		return ErrBadHandle
	}
	if h.mode&want == 0 {
		return fmt.Errorf("%w: handle opened %v", ErrPermissionDenied, h.mode)
	}
	return nil
}

// ReadInt removes the oldest integer from the channel, waiting while it is empty.
func (h *Handle) ReadInt(ctx context.Context) (int32, error) {
	if err := h.check(ModeRead); err != nil {
		return 0, err
	}
	return h.ch.Read(ctx)
}

// WriteInt appends v to the channel, waiting while it is full.
func (h *Handle) WriteInt(ctx context.Context, v int32) error {
	if err := h.check(ModeWrite); err != nil {
		return err
	}
	return h.ch.Write(ctx, v)
}

// ReadContext reads one integer into p[:UnitSize] and returns UnitSize.
// p shorter than UnitSize is rejected with ErrInvalidArgument before
// anything is taken from the channel.
func (h *Handle) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := h.check(ModeRead); err != nil {
		return 0, err
	}
	if len(p) < UnitSize {
		return 0, fmt.Errorf("%w: read buffer of %d bytes, need %d", ErrInvalidArgument, len(p), UnitSize)
	}

	v, err := h.ch.Read(ctx)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(p, uint32(v))
	return UnitSize, nil
}

// WriteContext writes the integer encoded in p[:UnitSize] and returns
// UnitSize. Bytes past the first unit are ignored.
func (h *Handle) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := h.check(ModeWrite); err != nil {
		return 0, err
	}
	if len(p) < UnitSize {
		return 0, fmt.Errorf("%w: write buffer of %d bytes, need %d", ErrInvalidArgument, len(p), UnitSize)
	}

	if err := h.ch.Write(ctx, int32(binary.LittleEndian.Uint32(p))); err != nil {
		return 0, err
	}
	return UnitSize, nil
}

// Read implements io.Reader. It waits without limit.
func (h *Handle) Read(p []byte) (int, error) {
	return h.ReadContext(context.Background(), p)
}

// Write implements io.Writer. It waits without limit. Like WriteContext it
// moves one unit per call; a longer p returns UnitSize and io.ErrShortWrite.
func (h *Handle) Write(p []byte) (int, error) {
	n, err := h.WriteContext(context.Background(), p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}
