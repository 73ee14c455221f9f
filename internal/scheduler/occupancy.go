package scheduler

// Occupancy records which slots of a fixed horizon are taken, per entity id.
//
// Each id owns an independent bitmap of length horizon. A bitmap is allocated the first
// time a range is marked for the id; ids never marked are reported as entirely free.
// Slot indices must lie in [0, horizon); callers are responsible for bounds.
type Occupancy struct {
	horizon int
	busy    map[string][]bool
}

// NewOccupancy returns an empty tracker for the given horizon.
func NewOccupancy(horizon int) *Occupancy {
	return &Occupancy{
		horizon: horizon,
		busy:    make(map[string][]bool),
	}
}

func newFreeBitmap(horizon int) []bool {
	return make([]bool, horizon)
}

// Horizon returns the number of slots tracked per entity.
func (o *Occupancy) Horizon() int {
	return o.horizon
}

// IsRangeFree reports whether every slot in [start, end] is free for id.
func (o *Occupancy) IsRangeFree(id string, start, end int) bool {
	slots, ok := o.busy[id]
	if !ok {
		return true
	}
	for slot := start; slot <= end; slot++ {
		if slots[slot] {
			return false
		}
	}
	return true
}

// MarkRange sets every slot in [start, end] for id to busy. Marking a range busy and then
// free again restores the previous free state of those slots.
func (o *Occupancy) MarkRange(id string, start, end int, busy bool) {
	slots, ok := o.busy[id]
	if !ok {
		if !busy {
			return
		}
		slots = newFreeBitmap(o.horizon)
		o.busy[id] = slots
	}
	for slot := start; slot <= end; slot++ {
		slots[slot] = busy
	}
}

// IsAllFree reports whether no slot is marked busy for id.
func (o *Occupancy) IsAllFree(id string) bool {
	return o.IsRangeFree(id, 0, o.horizon-1)
}
