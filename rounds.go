package headway

type parentKind uint8

const (
	parentNone parentKind = iota
	parentBoard
	parentWalk
)

// parentLeg is the back-pointer recording how a stop's arrival in a round
// was achieved. Board legs span BoardIndex..AlightIndex on Trip; walk legs
// only use From, To and the two times.
type parentLeg struct {
	Kind        parentKind
	From        uint32
	To          uint32
	Trip        uint32
	BoardIndex  uint32
	AlightIndex uint32
	Depart      uint32
	Arrive      uint32
}

// Rounds holds all mutable per-query state. Buffers are allocated once per
// worker and reset between queries rather than reallocated; nothing in here
// is shared across workers.
type Rounds struct {
	Arrivals [][]uint32    // arrivals[k][stop], exactly k boardings
	Parents  [][]parentLeg // parents[k][stop]
	Best     []uint32      // best arrival over all rounds
	Marked   []bool
	Improved []uint32          // stops improved by the current route scan
	Queue    map[uint32]uint32 // route -> earliest scan start index
}

// NewRounds allocates query state for a snapshot with stopCount stops and
// up to maxRounds vehicle boardings.
func NewRounds(stopCount, maxRounds int) *Rounds {
	arrivals := make([][]uint32, maxRounds+1)
	parents := make([][]parentLeg, maxRounds+1)
	for k := range arrivals {
		arrivals[k] = make([]uint32, stopCount)
		parents[k] = make([]parentLeg, stopCount)
	}

	r := &Rounds{
		Arrivals: arrivals,
		Parents:  parents,
		Best:     make([]uint32, stopCount),
		Marked:   make([]bool, stopCount),
		Improved: make([]uint32, 0, stopCount),
		Queue:    make(map[uint32]uint32, 1024),
	}
	r.Reset()
	return r
}

func (r *Rounds) Reset() {
	for k := range r.Arrivals {
		arrivals := r.Arrivals[k]
		parents := r.Parents[k]
		for i := range arrivals {
			arrivals[i] = ArrivalNotReached
			parents[i] = parentLeg{}
		}
	}

	for i := range r.Best {
		r.Best[i] = ArrivalNotReached
		r.Marked[i] = false
	}

	r.Improved = r.Improved[:0]

	for k := range r.Queue {
		delete(r.Queue, k)
	}
}

// fits reports whether the buffers match the given snapshot dimensions.
func (r *Rounds) fits(stopCount, maxRounds int) bool {
	return len(r.Best) == stopCount && len(r.Arrivals) == maxRounds+1
}
