package scheduler

import (
	"errors"
	"fmt"

	"github.com/roach88/framesched/internal/ir"
)

// Record converts e into a trace event with the given sequence number.
// name resolves the display name of a handle; nil falls back to
// Handle.String.
func (e Event) Record(seq int64, name func(Handle) string) ir.Event {
	if name == nil {
		name = Handle.String
	}
	rec := ir.Event{
		Seq:        seq,
		Frame:      e.Frame,
		Kind:       string(e.Kind),
		Tag:        e.Tag,
		TimeMillis: ir.Millis(e.Time),
	}
	if e.Segment.Valid() {
		rec.Segment = e.Segment.String()
	}
	if e.Handle.IsValid() {
		rec.Process = name(e.Handle)
	}

	detail := ir.Object{}
	if e.Target.IsValid() {
		detail["target"] = ir.String(name(e.Target))
	}
	if e.Lock != 0 {
		detail["lock"] = ir.Int(int64(e.Lock))
	}
	if e.Kind == EventCompacted {
		detail["reclaimed"] = ir.Int(int64(e.Reclaimed))
	}
	if e.Err != nil {
		var f *Fault
		if errors.As(e.Err, &f) {
			detail["code"] = ir.String(string(f.Code))
			detail["error"] = ir.String(fmt.Sprint(f.Value))
		} else {
			detail["error"] = ir.String(e.Err.Error())
		}
	}
	if len(detail) > 0 {
		rec.Detail = detail
	}
	return rec
}
