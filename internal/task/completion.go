package task

import (
	"context"
	"sync"
	"sync/atomic"
)

// Flag is a bit in the completion event word.
type Flag uint32

const (
	// FlagGNSSFinished is set after every acquisition, fix or not.
	FlagGNSSFinished Flag = 1 << 0
)

// Completion is a one-shot signal to another goroutine: flags are ORed into
// a shared word and a single-slot channel is released. Notify never blocks
// and a nil *Completion ignores it. The zero value is ready to use.
type Completion struct {
	word atomic.Uint32
	once sync.Once
	ch   chan struct{}
}

func NewCompletion() *Completion {
	return &Completion{}
}

func (c *Completion) signal() chan struct{} {
	c.once.Do(func() { c.ch = make(chan struct{}, 1) })
	return c.ch
}

// Notify ORs f into the event word and releases any waiter.
func (c *Completion) Notify(f Flag) {
	if c == nil {
		return
	}
	for {
		old := c.word.Load()
		if c.word.CompareAndSwap(old, old|uint32(f)) {
			break
		}
	}
	select {
	case c.signal() <- struct{}{}:
	default:
	}
}

// Pending returns the flags set since the last Wait without clearing them.
func (c *Completion) Pending() Flag {
	if c == nil {
		return 0
	}
	return Flag(c.word.Load())
}

// Wait blocks until Notify has been called, then returns and clears the
// accumulated flags.
func (c *Completion) Wait(ctx context.Context) (Flag, error) {
	select {
	case <-c.signal():
		return Flag(c.word.Swap(0)), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
