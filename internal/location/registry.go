package location

import (
	"fmt"
	"sync"
)

// DefaultCapacity is the number of points a registry holds unless told
// otherwise.  Clients rely on it, it's part of the protocol.
const DefaultCapacity = 50

type Point struct {
	X, Y int
}

func (p Point) String() string {
	return fmt.Sprintf("%d %d", p.X, p.Y)
}

// DistanceSquared returns the squared euclidean distance between p and q.
func (p Point) DistanceSquared(q Point) int {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

type Outcome int

const (
	Added Outcome = iota
	AlreadyExists
	CapacityExceeded
	Removed
	NotFound
	Nearest
	Listing
	Empty
)

var outcomeNames = []string{
	Added:            "added",
	AlreadyExists:    "already_exists",
	CapacityExceeded: "limit_exceeded",
	Removed:          "removed",
	NotFound:         "not_found",
	Nearest:          "nearest",
	Listing:          "listing",
	Empty:            "empty",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// Result is what a registry operation did.  Point is set for every outcome
// that names a single point, Points only for Listing.
type Result struct {
	Outcome Outcome
	Point   Point
	Points  []Point
}

// Registry is a bounded, ordered set of points.  Every operation holds the
// mutex for its full duration so check-then-modify sequences are atomic with
// respect to other sessions.
type Registry struct {
	sync.Mutex
	capacity int
	points   []Point
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Registry{
		capacity: capacity,
		points:   make([]Point, 0, capacity),
	}
}

func (r *Registry) Capacity() int {
	return r.capacity
}

func (r *Registry) Len() int {
	r.Lock()
	defer r.Unlock()

	return len(r.points)
}

// Points returns a copy of the stored points in storage order.
func (r *Registry) Points() []Point {
	r.Lock()
	defer r.Unlock()

	out := make([]Point, len(r.points))
	copy(out, r.points)
	return out
}

func (r *Registry) Add(p Point) Result {
	r.Lock()
	defer r.Unlock()

	if len(r.points) == r.capacity {
		return Result{Outcome: CapacityExceeded}
	}

	if r.index(p) != -1 {
		return Result{Outcome: AlreadyExists, Point: p}
	}

	r.points = append(r.points, p)
	return Result{Outcome: Added, Point: p}
}

func (r *Registry) Remove(p Point) Result {
	r.Lock()
	defer r.Unlock()

	i := r.index(p)
	if i == -1 {
		return Result{Outcome: NotFound, Point: p}
	}

	// Shift everything after i one slot left, the relative order of the
	// remaining points must not change.
	copy(r.points[i:], r.points[i+1:])
	r.points = r.points[:len(r.points)-1]
	return Result{Outcome: Removed, Point: p}
}

// Nearest finds the stored point closest to p.  When several points are at
// the same distance the one stored first wins.
func (r *Registry) Nearest(p Point) Result {
	r.Lock()
	defer r.Unlock()

	if len(r.points) == 0 {
		return Result{Outcome: Empty}
	}

	best := r.points[0]
	min := p.DistanceSquared(best)
	for _, q := range r.points[1:] {
		if d := p.DistanceSquared(q); d < min {
			best, min = q, d
		}
	}

	return Result{Outcome: Nearest, Point: best}
}

func (r *Registry) Render() Result {
	r.Lock()
	defer r.Unlock()

	if len(r.points) == 0 {
		return Result{Outcome: Empty}
	}

	points := make([]Point, len(r.points))
	copy(points, r.points)
	return Result{Outcome: Listing, Points: points}
}

// NOTE: Don't lock/unlock, this is called with the mutex already acquired.
func (r *Registry) index(p Point) int {
	for i, q := range r.points {
		if q == p {
			return i
		}
	}
	return -1
}
