// Package host is a reference frame loop for the scheduler.
//
// A Host owns one scheduler and plays the role of the game engine: it
// counts frames, supplies elapsed time and calls the segment drivers in the
// fixed order Update, FixedUpdate, LateUpdate once per frame. Step advances
// one frame of fixed length and is fully deterministic; Run paces frames
// against the wall clock until its context is cancelled.
//
// Every frame is traced as an OpenTelemetry span with one child span per
// segment pass. With no tracer provider installed the spans are no-ops.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/framesched/internal/scheduler"
)

const (
	// DefaultFrameRate is the frame rate used when none is configured.
	DefaultFrameRate = 60.0
	// DefaultFixedRate is the FixedUpdate rate used when none is configured.
	DefaultFixedRate = 50.0
	// MaxFrameDelta caps the delta Run reports after a stall.
	MaxFrameDelta = 1.0 / 3.0

	tracerName = "github.com/roach88/framesched/internal/host"
)

// driveOrder is the order segments are driven within one frame. SlowUpdate
// runs from inside Update.
var driveOrder = []scheduler.Segment{
	scheduler.Update,
	scheduler.FixedUpdate,
	scheduler.LateUpdate,
}

// Host drives one scheduler.
//
// Thread-safety: the FrameSource methods and Post are safe for concurrent
// use. Step and Run must be called from one goroutine at a time, and the
// scheduler itself is only touched from that goroutine.
type Host struct {
	mu         sync.Mutex
	frame      int64
	frameDelta float64
	fixedDelta float64
	delta      float64
	realtime   float64
	posted     []func(*scheduler.Scheduler)

	sched     *scheduler.Scheduler
	schedOpts []scheduler.Option
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Host.
type Option func(*Host)

// WithFrameRate sets the frames per second used by Step and paced by Run.
// Non-positive rates are ignored.
func WithFrameRate(fps float64) Option {
	return func(h *Host) {
		if fps > 0 {
			h.frameDelta = 1 / fps
		}
	}
}

// WithFixedRate sets the FixedUpdate steps per second. Non-positive rates
// are ignored.
func WithFixedRate(hz float64) Option {
	return func(h *Host) {
		if hz > 0 {
			h.fixedDelta = 1 / hz
		}
	}
}

// WithTracer sets the tracer used for frame spans. Defaults to the global
// provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(h *Host) {
		h.tracer = t
	}
}

// WithLogger sets the logger used by Run for surfaced faults.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithSchedulerOptions passes options through to scheduler.New.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(h *Host) {
		h.schedOpts = append(h.schedOpts, opts...)
	}
}

// WithClock replaces time.Now for Run.
func WithClock(now func() time.Time) Option {
	return func(h *Host) {
		h.now = now
	}
}

// New creates a host at frame 0 together with its scheduler.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		frameDelta: 1 / DefaultFrameRate,
		fixedDelta: 1 / DefaultFixedRate,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.tracer == nil {
		h.tracer = otel.Tracer(tracerName)
	}
	h.delta = h.frameDelta

	s, err := scheduler.New(h, h.schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}
	h.sched = s
	return h, nil
}

// Scheduler returns the driven scheduler.
func (h *Host) Scheduler() *scheduler.Scheduler {
	return h.sched
}

// Close kills every process and releases the scheduler's registry key.
func (h *Host) Close() {
	h.sched.Close()
}

// FrameCount implements scheduler.FrameSource.
func (h *Host) FrameCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame
}

// DeltaTime implements scheduler.FrameSource.
func (h *Host) DeltaTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.delta
}

// FixedDeltaTime implements scheduler.FrameSource.
func (h *Host) FixedDeltaTime() float64 {
	return h.fixedDelta
}

// Realtime implements scheduler.FrameSource.
func (h *Host) Realtime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.realtime
}

// FrameDelta returns the configured frame length in seconds.
func (h *Host) FrameDelta() float64 {
	return h.frameDelta
}

// Post queues fn to run on the driving goroutine at the start of the next
// frame, after the frame counter advances and before any segment runs.
func (h *Host) Post(fn func(*scheduler.Scheduler)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.posted = append(h.posted, fn)
}

// Step advances one frame of the configured length. Faults surfaced by the
// segment drivers are joined and returned; the frame still completes.
func (h *Host) Step(ctx context.Context) error {
	return h.advance(ctx, h.frameDelta)
}

// StepN calls Step n times and joins every error.
func (h *Host) StepN(ctx context.Context, n int) error {
	var errs []error
	for range n {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := h.Step(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run paces frames against the clock until ctx is cancelled. The delta
// reported for each frame is the measured wall time, capped at
// MaxFrameDelta. Faults are logged and the loop continues.
func (h *Host) Run(ctx context.Context) error {
	h.logger.Info("host starting", "frame_delta", h.frameDelta, "fixed_delta", h.fixedDelta)

	ticker := time.NewTicker(time.Duration(h.frameDelta * float64(time.Second)))
	defer ticker.Stop()

	last := h.now()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("host stopping: context cancelled", "frame", h.FrameCount())
			return ctx.Err()
		case <-ticker.C:
		}

		now := h.now()
		delta := min(now.Sub(last).Seconds(), MaxFrameDelta)
		last = now

		if err := h.advance(ctx, delta); err != nil {
			h.logger.Error("frame fault",
				"frame", h.FrameCount(),
				"error", err,
			)
		}
	}
}

func (h *Host) advance(ctx context.Context, delta float64) error {
	h.mu.Lock()
	h.frame++
	h.realtime += delta
	h.delta = delta
	frame := h.frame
	posted := h.posted
	h.posted = nil
	h.mu.Unlock()

	ctx, span := h.tracer.Start(ctx, "frame", trace.WithAttributes(
		attribute.Int64("framesched.frame", frame),
		attribute.Float64("framesched.delta", delta),
	))
	defer span.End()

	for _, fn := range posted {
		fn(h.sched)
	}

	var errs []error
	for _, seg := range driveOrder {
		if err := h.pass(ctx, seg); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "segment fault")
	}
	return err
}

func (h *Host) pass(ctx context.Context, seg scheduler.Segment) error {
	_, span := h.tracer.Start(ctx, seg.String())
	defer span.End()

	var err error
	switch seg {
	case scheduler.Update:
		err = h.sched.Update()
	case scheduler.FixedUpdate:
		err = h.sched.FixedUpdate()
	case scheduler.LateUpdate:
		err = h.sched.LateUpdate()
	}

	span.SetAttributes(
		attribute.Int("framesched.processes", h.sched.Count(seg)),
		attribute.Float64("framesched.local_time", h.sched.LocalTime()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
