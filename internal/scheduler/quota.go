package scheduler

import "fmt"

// DefaultMaxSwaps bounds the continuation swaps a single slot may perform in
// one pass.
const DefaultMaxSwaps = 1000

// swapQuota counts continuation swaps of one slot advance.
//
// A swap reprocesses the same slot without returning to the driver loop, so
// a wrapper that keeps swapping would spin forever. The quota turns that
// into a fault on the offending process.
type swapQuota struct {
	max     int
	current int
}

// check increments the swap counter and validates against the limit.
func (q *swapQuota) check(h Handle) error {
	q.current++
	if q.current > q.max {
		return &QuotaError{Handle: h, Swaps: q.current, Limit: q.max}
	}
	return nil
}

// QuotaError reports a process that exceeded the swap quota.
type QuotaError struct {
	Handle Handle
	Swaps  int
	Limit  int
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("process %s exceeded swap quota: %d swaps > %d limit", e.Handle, e.Swaps, e.Limit)
}
