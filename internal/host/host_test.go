package host

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/framesched/internal/scheduler"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestHost builds a 10 fps host with a span recorder and a private
// registry.
func newTestHost(t *testing.T, opts ...Option) (*Host, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	base := []Option{
		WithFrameRate(10),
		WithFixedRate(20),
		WithTracer(tp.Tracer("test")),
		WithLogger(quietLogger()),
		WithSchedulerOptions(
			scheduler.WithRegistry(scheduler.NewRegistry()),
			scheduler.WithLogger(quietLogger()),
		),
	}
	h, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h, sr
}

func TestStep_AdvancesFrameAndTime(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()

	require.NoError(t, h.StepN(ctx, 5))

	assert.Equal(t, int64(5), h.FrameCount())
	assert.InDelta(t, 0.5, h.Realtime(), 1e-9)
	assert.InDelta(t, 0.1, h.DeltaTime(), 1e-9)
}

func TestStep_WaitForSecondsAtFrameRate(t *testing.T) {
	h, _ := newTestHost(t)
	s := h.Scheduler()
	done := false

	s.Run(func(yield func(scheduler.Yield) bool) {
		if !yield(s.WaitForSeconds(0.35)) {
			return
		}
		done = true
	}, scheduler.Update, scheduler.Deferred())

	// First pass at t=0.1 starts the wait until t=0.45.
	require.NoError(t, h.StepN(context.Background(), 4))
	assert.False(t, done)

	require.NoError(t, h.Step(context.Background()))
	assert.True(t, done)
}

func TestStep_FixedUpdateSeesFixedDelta(t *testing.T) {
	h, _ := newTestHost(t)
	s := h.Scheduler()
	var deltas []float64

	s.Run(func(yield func(scheduler.Yield) bool) {
		for {
			deltas = append(deltas, s.DeltaTime())
			if !yield(scheduler.NextFrame()) {
				return
			}
		}
	}, scheduler.FixedUpdate, scheduler.Deferred())

	require.NoError(t, h.StepN(context.Background(), 3))

	require.Len(t, deltas, 3)
	for _, d := range deltas {
		assert.InDelta(t, 0.05, d, 1e-9)
	}
	assert.InDelta(t, 0.1, h.DeltaTime(), 1e-9, "host delta stays the frame length")
}

func TestPost_FixedClockKeepsFixedStep(t *testing.T) {
	h, _ := newTestHost(t)
	s := h.Scheduler()
	var times []float64

	s.Run(func(yield func(scheduler.Yield) bool) {
		for {
			times = append(times, s.LocalTime())
			if !yield(scheduler.NextFrame()) {
				return
			}
		}
	}, scheduler.FixedUpdate, scheduler.Deferred())

	ctx := context.Background()
	require.NoError(t, h.Step(ctx))

	// An eager FixedUpdate submission outside the fixed pass ticks the
	// fixed clock first in frame 2.
	h.Post(func(s *scheduler.Scheduler) {
		s.Run(func(yield func(scheduler.Yield) bool) {}, scheduler.FixedUpdate)
	})
	require.NoError(t, h.StepN(ctx, 3))

	require.Len(t, times, 4)
	for i, want := range []float64{0.05, 0.1, 0.15, 0.2} {
		assert.InDelta(t, want, times[i], 1e-9, "fixed pass %d", i+1)
	}
}

func TestStep_SegmentOrder(t *testing.T) {
	h, _ := newTestHost(t)
	s := h.Scheduler()
	var order []string

	for _, seg := range []scheduler.Segment{scheduler.LateUpdate, scheduler.FixedUpdate, scheduler.Update} {
		name := seg.String()
		s.Run(func(yield func(scheduler.Yield) bool) {
			order = append(order, name)
		}, seg, scheduler.Deferred())
	}

	require.NoError(t, h.Step(context.Background()))
	assert.Equal(t, []string{"update", "fixed_update", "late_update"}, order)
}

func TestStep_Spans(t *testing.T) {
	h, sr := newTestHost(t)

	require.NoError(t, h.StepN(context.Background(), 2))

	spans := sr.Ended()
	require.Len(t, spans, 8)

	var names []string
	for _, sp := range spans[:4] {
		names = append(names, sp.Name())
	}
	assert.Equal(t, []string{"update", "fixed_update", "late_update", "frame"}, names)

	frame := spans[3]
	for _, child := range spans[:3] {
		assert.Equal(t, frame.SpanContext().SpanID(), child.Parent().SpanID())
	}
}

func TestStep_FaultIsReturnedAndRecorded(t *testing.T) {
	h, sr := newTestHost(t)
	s := h.Scheduler()

	s.Run(func(yield func(scheduler.Yield) bool) {
		panic("bad frame")
	}, scheduler.LateUpdate, scheduler.Deferred())

	err := h.Step(context.Background())
	require.Error(t, err)
	assert.True(t, scheduler.IsPanic(err))

	var late, frame sdktrace.ReadOnlySpan
	for _, sp := range sr.Ended() {
		switch sp.Name() {
		case "late_update":
			late = sp
		case "frame":
			frame = sp
		}
	}
	require.NotNil(t, late)
	require.NotNil(t, frame)
	assert.Equal(t, codes.Error, late.Status().Code)
	assert.Equal(t, codes.Error, frame.Status().Code)

	assert.NoError(t, h.Step(context.Background()), "the fault surfaces once")
}

func TestPost_RunsAtFrameStart(t *testing.T) {
	h, _ := newTestHost(t)
	var seen int64 = -1

	h.Post(func(s *scheduler.Scheduler) {
		seen = h.FrameCount()
	})
	assert.Equal(t, int64(-1), seen)

	require.NoError(t, h.Step(context.Background()))
	assert.Equal(t, int64(1), seen)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h, _ := newTestHost(t, WithFrameRate(200))
	n := 0
	h.Scheduler().Run(func(yield func(scheduler.Yield) bool) {
		for {
			n++
			if !yield(scheduler.NextFrame()) {
				return
			}
		}
	}, scheduler.Update, scheduler.Deferred())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := h.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, h.FrameCount())
	assert.Equal(t, int(h.FrameCount()), n)
}

func TestRun_CapsStalledDelta(t *testing.T) {
	start := time.Unix(0, 0)
	calls := 0
	clock := func() time.Time {
		calls++
		// Every reading is ten seconds after the previous one.
		return start.Add(time.Duration(calls) * 10 * time.Second)
	}
	h, _ := newTestHost(t, WithFrameRate(200), WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	h.Post(func(*scheduler.Scheduler) { cancel() })

	_ = h.Run(ctx)
	assert.InDelta(t, MaxFrameDelta, h.DeltaTime(), 1e-9)
}
