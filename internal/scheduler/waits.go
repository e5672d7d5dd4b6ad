package scheduler

// blocker is what a dependent waits on: a process handle or a lock key.
// Exactly one field is set.
type blocker struct {
	handle Handle
	lock   LockKey
}

// dependent is a process held by a blocker. offset is the delay that was
// still outstanding when the dependent was blocked; it is replayed when the
// dependent is released.
type dependent struct {
	handle Handle
	offset float64
}

// waitGraph tracks wait records (blocker -> dependents) and, for every
// dependent, the blockers currently holding it.
//
// The reverse index answers "is this process still held by anything" and
// lets wouldCycle walk the handle edges without scanning every record.
type waitGraph struct {
	records map[blocker][]dependent
	holds   map[Handle][]blocker
}

func newWaitGraph() *waitGraph {
	return &waitGraph{
		records: make(map[blocker][]dependent),
		holds:   make(map[Handle][]blocker),
	}
}

// hold registers dep as held by b. It returns false when b already holds dep.
func (g *waitGraph) hold(b blocker, dep Handle, offset float64) bool {
	if g.holding(b, dep) {
		return false
	}
	g.records[b] = append(g.records[b], dependent{handle: dep, offset: offset})
	g.holds[dep] = append(g.holds[dep], b)
	return true
}

// holding reports whether b currently holds dep.
func (g *waitGraph) holding(b blocker, dep Handle) bool {
	for _, held := range g.holds[dep] {
		if held == b {
			return true
		}
	}
	return false
}

// release removes dep from b's record and returns the captured offset.
func (g *waitGraph) release(b blocker, dep Handle) (float64, bool) {
	deps := g.records[b]
	idx := -1
	for i, d := range deps {
		if d.handle == dep {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, false
	}
	offset := deps[idx].offset
	deps = append(deps[:idx], deps[idx+1:]...)
	if len(deps) == 0 {
		delete(g.records, b)
	} else {
		g.records[b] = deps
	}
	g.unhold(dep, b)
	return offset, true
}

// close removes b's wait record and returns its dependents in the order they
// were registered.
func (g *waitGraph) close(b blocker) []dependent {
	deps, ok := g.records[b]
	if !ok {
		return nil
	}
	delete(g.records, b)
	for _, d := range deps {
		g.unhold(d.handle, b)
	}
	return deps
}

// forget drops a dead dependent from every record that holds it.
func (g *waitGraph) forget(dep Handle) {
	for _, b := range g.holds[dep] {
		deps := g.records[b]
		for i, d := range deps {
			if d.handle == dep {
				deps = append(deps[:i], deps[i+1:]...)
				break
			}
		}
		if len(deps) == 0 {
			delete(g.records, b)
		} else {
			g.records[b] = deps
		}
	}
	delete(g.holds, dep)
}

func (g *waitGraph) unhold(dep Handle, b blocker) {
	held := g.holds[dep]
	for i, x := range held {
		if x == b {
			held = append(held[:i], held[i+1:]...)
			break
		}
	}
	if len(held) == 0 {
		delete(g.holds, dep)
	} else {
		g.holds[dep] = held
	}
}

// wouldCycle reports whether waiter waiting on target would close a cycle,
// i.e. target is already transitively waiting on waiter.
func (g *waitGraph) wouldCycle(waiter, target Handle) bool {
	seen := make(map[Handle]bool)
	stack := []Handle{target}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == waiter {
			return true
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		for _, b := range g.holds[h] {
			if b.handle.IsValid() {
				stack = append(stack, b.handle)
			}
		}
	}
	return false
}

// blockers returns the number of blockers currently holding dep.
func (g *waitGraph) blockers(dep Handle) int {
	return len(g.holds[dep])
}

// dependents returns the number of processes held by b.
func (g *waitGraph) dependents(b blocker) int {
	return len(g.records[b])
}

// size returns the number of open wait records.
func (g *waitGraph) size() int {
	return len(g.records)
}

func (g *waitGraph) reset() {
	clear(g.records)
	clear(g.holds)
}
