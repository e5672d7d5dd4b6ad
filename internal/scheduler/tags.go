package scheduler

import "slices"

// tagIndex maps a tag to the set of live handles carrying it.
type tagIndex struct {
	byTag map[string]map[Handle]struct{}
}

func newTagIndex() *tagIndex {
	return &tagIndex{byTag: make(map[string]map[Handle]struct{})}
}

func (ti *tagIndex) add(tag string, h Handle) {
	if tag == "" {
		return
	}
	set, ok := ti.byTag[tag]
	if !ok {
		set = make(map[Handle]struct{})
		ti.byTag[tag] = set
	}
	set[h] = struct{}{}
}

// remove drops h from tag, deleting the tag when its set empties.
func (ti *tagIndex) remove(tag string, h Handle) {
	set, ok := ti.byTag[tag]
	if !ok {
		return
	}
	delete(set, h)
	if len(set) == 0 {
		delete(ti.byTag, tag)
	}
}

// handles returns the handles carrying tag ordered by handle index. The
// result is a copy, so callers may kill or pause while ranging over it.
func (ti *tagIndex) handles(tag string) []Handle {
	set := ti.byTag[tag]
	if len(set) == 0 {
		return nil
	}
	out := make([]Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b Handle) int {
		return int(a.index) - int(b.index)
	})
	return out
}

func (ti *tagIndex) count(tag string) int {
	return len(ti.byTag[tag])
}

func (ti *tagIndex) reset() {
	clear(ti.byTag)
}
