package scheduler

import (
	"errors"
	"fmt"
)

// ErrInstancesExhausted is returned by New when every instance key of the
// registry is in use.
var ErrInstancesExhausted = errors.New("scheduler: all instance keys in use")

// ErrNilFrameSource is returned by New when no frame source is supplied.
var ErrNilFrameSource = errors.New("scheduler: nil frame source")

// FaultCode categorizes a process fault.
type FaultCode string

const (
	// FaultPanic indicates the process panicked while being advanced.
	FaultPanic FaultCode = "PANIC"

	// FaultSwapQuota indicates the process swapped continuations too many
	// times in a single pass.
	FaultSwapQuota FaultCode = "SWAP_QUOTA"
)

// Fault is a failure raised while advancing a single process.
//
// Faults are isolated: the offending slot is cleared, its dependents are
// woken, and the rest of the segment pass continues. Value holds the
// recovered panic value, or a *QuotaError for FaultSwapQuota.
type Fault struct {
	Code    FaultCode
	Handle  Handle
	Segment Segment
	Tag     string
	Value   any
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Tag != "" {
		return fmt.Sprintf("%s: process %s in %s (tag=%s): %v", f.Code, f.Handle, f.Segment, f.Tag, f.Value)
	}
	return fmt.Sprintf("%s: process %s in %s: %v", f.Code, f.Handle, f.Segment, f.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (f *Fault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// IsFault returns true if err is or wraps a *Fault.
// Uses errors.As to handle wrapped errors.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// IsPanic returns true if err is a fault raised by a panicking process.
func IsPanic(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code == FaultPanic
	}
	return false
}

// IsQuotaError returns true if err is a swap quota failure, either bare or
// carried by a Fault.
func IsQuotaError(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
