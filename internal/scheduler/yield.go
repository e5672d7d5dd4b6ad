package scheduler

import (
	"context"
	"fmt"
	"iter"
	"math"
)

// Process is a lazy, resumable sequence of yield points. A process must stop
// as soon as yield returns false.
type Process = iter.Seq[Yield]

// YieldKind tags the variant carried by a Yield.
type YieldKind int

const (
	// KindNextFrame resumes on the next occurrence of the segment.
	KindNextFrame YieldKind = iota
	// KindUntil resumes once the segment clock reaches Time.
	KindUntil
	// KindWaitOn blocks until another process finishes.
	KindWaitOn
	// KindWaitFor blocks until an external operation reports done.
	KindWaitFor
	// KindDone finishes the process.
	KindDone

	// kindSwap installs a replacement continuation and reprocesses the slot.
	kindSwap
)

// String names the yield kind.
func (k YieldKind) String() string {
	switch k {
	case KindNextFrame:
		return "next_frame"
	case KindUntil:
		return "until"
	case KindWaitOn:
		return "wait_on"
	case KindWaitFor:
		return "wait_for"
	case KindDone:
		return "done"
	case kindSwap:
		return "swap"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Yield is the suspension result a process hands back to the driver.
type Yield struct {
	kind     YieldKind
	at       float64
	target   Handle
	pollable Pollable
	swap     continuation
}

// Kind returns the variant tag.
func (y Yield) Kind() YieldKind {
	return y.kind
}

// Time returns the resumption time of an Until yield.
func (y Yield) Time() float64 {
	return y.at
}

// Target returns the awaited handle of a WaitOn yield.
func (y Yield) Target() Handle {
	return y.target
}

// NextFrame resumes the process on the next occurrence of its segment.
func NextFrame() Yield {
	return Yield{kind: KindNextFrame}
}

// Until resumes the process once its segment clock reaches t. NaN is treated
// as "now".
func Until(t float64) Yield {
	if math.IsNaN(t) {
		return NextFrame()
	}
	return Yield{kind: KindUntil, at: t}
}

// Done finishes the process as if its sequence were exhausted.
func Done() Yield {
	return Yield{kind: KindDone}
}

func swapTo(c continuation) Yield {
	return Yield{kind: kindSwap, swap: c}
}

// Pollable is an external asynchronous operation polled once per pass.
type Pollable interface {
	Done() bool
}

// PollFunc adapts a predicate to Pollable.
type PollFunc func() bool

// Done calls f.
func (f PollFunc) Done() bool {
	return f()
}

// ChanDone reports done once ch is closed or has a value ready. A nil
// channel never completes.
func ChanDone(ch <-chan struct{}) Pollable {
	return PollFunc(func() bool {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	})
}

// ContextDone reports done once ctx is cancelled or expires.
func ContextDone(ctx context.Context) Pollable {
	return ChanDone(ctx.Done())
}

// continuation is what a slot actually advances: the pulled process itself,
// or a wrapper the driver installed through a swap.
type continuation interface {
	next() (Yield, bool)
	stop()
}

// pulled advances a Process through iter.Pull.
type pulled struct {
	nextFn func() (Yield, bool)
	stopFn func()
}

func newPulled(p Process) *pulled {
	next, stop := iter.Pull(p)
	return &pulled{nextFn: next, stopFn: stop}
}

func (p *pulled) next() (Yield, bool) {
	return p.nextFn()
}

func (p *pulled) stop() {
	p.stopFn()
}

// externalWait polls an external operation once per pass, then swaps the
// suspended continuation back in.
type externalWait struct {
	poll  Pollable
	inner continuation
}

func (w *externalWait) next() (Yield, bool) {
	if !w.poll.Done() {
		return NextFrame(), true
	}
	return swapTo(w.inner), true
}

func (w *externalWait) stop() {
	w.inner.stop()
}
