package scheduler

// faultQueue is a FIFO of faults waiting to be surfaced by a driver call.
//
// The driver runs on a single goroutine, so unlike an event queue fed from
// other goroutines there is no locking and no signal channel.
type faultQueue struct {
	faults []*Fault
}

func newFaultQueue() *faultQueue {
	return &faultQueue{faults: make([]*Fault, 0, 4)}
}

// push adds a fault to the back of the queue.
func (q *faultQueue) push(f *Fault) {
	q.faults = append(q.faults, f)
}

// pop removes and returns the front fault, or nil when empty.
func (q *faultQueue) pop() *Fault {
	if len(q.faults) == 0 {
		return nil
	}

	f := q.faults[0]

	// Nil out the slot so the recovered panic value can be collected.
	q.faults[0] = nil

	if len(q.faults) == 1 {
		q.faults = q.faults[:0]
	} else {
		q.faults = q.faults[1:]
	}
	return f
}

// len returns the number of pending faults.
func (q *faultQueue) len() int {
	return len(q.faults)
}
