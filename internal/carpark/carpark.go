// Package carpark models a capacity-constrained car park split into a
// general area and a subscription-gated reserved area.
//
// The facility runs in one of two modes. On weekdays the reserved area only
// admits cars holding a subscription and its spaces are held back from the
// general pool even while empty. At the weekend the reserved area is opened
// to everyone and the whole facility behaves as a single pool. A configured
// number of spaces (minSpacesLeft) is always kept free of general traffic.
//
// A CarPark is not safe for concurrent use. Its invariants span all three
// occupancy sets, so callers that share one instance must serialize every
// operation behind a single lock; see the HTTP handler for the reference
// arrangement.
package carpark

import (
	"fmt"
)

// CarPark tracks which cars occupy the facility, which of them sit in the
// reserved area, and which hold subscriptions. Cars are identified by their
// registration number; each pool has set semantics, so a car is either in
// or out, never counted twice.
type CarPark struct {
	capacity         int
	reservedCapacity int
	minSpacesLeft    int

	reservedOpen bool

	subscribed map[string]struct{}
	park       map[string]struct{}
	reserved   map[string]struct{}
}

// New creates an empty car park in weekday mode. The layout is fixed for the
// life of the instance: capacity is the total number of physical spaces,
// reservedCapacity of which are set aside for subscribers, and minSpacesLeft
// must always remain free of general traffic. New rejects layouts where the
// reserved spaces plus the mandatory headroom would not fit the facility.
func New(capacity, reservedCapacity, minSpacesLeft int) (*CarPark, error) {
	if capacity < 0 || reservedCapacity < 0 || minSpacesLeft < 0 {
		return nil, fmt.Errorf("%w: sizes must be non-negative (capacity=%d reserved=%d min-free=%d)",
			ErrInvalidLayout, capacity, reservedCapacity, minSpacesLeft)
	}
	if minSpacesLeft+reservedCapacity > capacity {
		return nil, fmt.Errorf("%w: reserved spaces (%d) plus mandatory free spaces (%d) exceed capacity (%d)",
			ErrInvalidLayout, reservedCapacity, minSpacesLeft, capacity)
	}

	return &CarPark{
		capacity:         capacity,
		reservedCapacity: reservedCapacity,
		minSpacesLeft:    minSpacesLeft,
		subscribed:       make(map[string]struct{}),
		park:             make(map[string]struct{}),
		reserved:         make(map[string]struct{}),
	}, nil
}

// Enter admits car into the general area and reports whether the car is
// parked on return. Cars already inside are reported as admitted without any
// state change. Admission is refused when the general pool has no space left
// under the current mode; a refusal leaves the car park untouched.
func (cp *CarPark) Enter(car string) bool {
	if _, ok := cp.park[car]; ok {
		return true
	}
	if !cp.hasFreeSpace() {
		return false
	}

	cp.park[car] = struct{}{}
	cp.assertInvariants()
	return true
}

// hasFreeSpace reports whether the general pool can take one more car.
// At the weekend only the mandatory free spaces are held back. On weekdays
// the reserved spaces are additionally held back in full, whether occupied
// or not, and cars sitting in the reserved area do not count against the
// general pool.
func (cp *CarPark) hasFreeSpace() bool {
	if cp.reservedOpen {
		return cp.capacity-cp.minSpacesLeft-len(cp.park) > 0
	}
	return cp.capacity-cp.minSpacesLeft-cp.reservedCapacity-(len(cp.park)-len(cp.reserved)) > 0
}

// Leave records car leaving the facility, whichever area it occupied.
// Unknown cars are ignored; Leave never fails.
func (cp *CarPark) Leave(car string) {
	delete(cp.park, car)
	delete(cp.reserved, car)
	cp.assertInvariants()
}

// Available returns how many spaces the facility can still sell to arriving
// drivers. At the weekend that is every unoccupied space. On weekdays the
// reserved spaces are excluded wholesale and reserved-area occupants do not
// count against the remainder. Note that the mandatory free spaces are part
// of this figure even though Enter will not hand them out.
func (cp *CarPark) Available() int {
	if cp.reservedOpen {
		return cp.capacity - len(cp.park)
	}
	return cp.capacity - cp.reservedCapacity - (len(cp.park) - len(cp.reserved))
}

// EnterReserved admits car through the reserved-area gate. While the area is
// open to everyone it behaves exactly like Enter and the reserved
// bookkeeping is untouched. While the area is restricted, the car must hold
// a subscription: subscribers are always admitted, because subscriptions are
// capped at the reserved capacity, and the car is recorded in both the park
// and the reserved set. A car already parked in the general area is simply
// reclassified. Unsubscribed cars are refused with ErrNotSubscribed and the
// state is left untouched.
func (cp *CarPark) EnterReserved(car string) (bool, error) {
	if cp.reservedOpen {
		return cp.Enter(car), nil
	}
	if _, ok := cp.subscribed[car]; !ok {
		return false, fmt.Errorf("%w: %s", ErrNotSubscribed, car)
	}

	cp.park[car] = struct{}{}
	cp.reserved[car] = struct{}{}
	cp.assertInvariants()
	return true, nil
}

// Subscribe registers car for reserved-area access and reports whether the
// car holds a subscription on return. Cars already subscribed are reported
// as such. Registration is refused once every reserved space has a
// subscriber. A subscription says nothing about presence: the car may enter
// and leave any number of times, or never show up at all.
func (cp *CarPark) Subscribe(car string) bool {
	if _, ok := cp.subscribed[car]; ok {
		return true
	}
	if !cp.canSubscribe() {
		return false
	}

	cp.subscribed[car] = struct{}{}
	cp.assertInvariants()
	return true
}

func (cp *CarPark) canSubscribe() bool {
	return len(cp.subscribed) < cp.reservedCapacity
}

// OpenReservedArea switches the facility to weekend mode. The reserved area
// becomes ordinary space: its occupants stay parked but are reclassified as
// general occupants, and the reserved bookkeeping is emptied.
func (cp *CarPark) OpenReservedArea() {
	cp.reservedOpen = true
	cp.reserved = make(map[string]struct{})
	cp.assertInvariants()
}

// Close empties the facility for the night and returns it to weekday mode.
// Every car still inside is evicted, whichever area it occupied.
// Subscriptions are a standing arrangement and survive untouched.
func (cp *CarPark) Close() {
	cp.park = make(map[string]struct{})
	cp.reserved = make(map[string]struct{})
	cp.reservedOpen = false
	cp.assertInvariants()
}

// Capacity returns the total number of physical spaces.
func (cp *CarPark) Capacity() int { return cp.capacity }

// ReservedCapacity returns the number of spaces set aside for subscribers.
func (cp *CarPark) ReservedCapacity() int { return cp.reservedCapacity }

// MinSpacesLeft returns the number of spaces always kept free of general
// traffic.
func (cp *CarPark) MinSpacesLeft() int { return cp.minSpacesLeft }

// ReservedOpen reports whether the facility is in weekend mode, with the
// reserved area open to all drivers.
func (cp *CarPark) ReservedOpen() bool { return cp.reservedOpen }

// Occupied returns the number of cars anywhere in the facility.
func (cp *CarPark) Occupied() int { return len(cp.park) }

// ReservedOccupied returns the number of cars in the reserved area. The
// figure is only meaningful in weekday mode; opening the area empties it.
func (cp *CarPark) ReservedOccupied() int { return len(cp.reserved) }

// Subscribers returns the number of cars holding a subscription.
func (cp *CarPark) Subscribers() int { return len(cp.subscribed) }

// IsParked reports whether car is anywhere in the facility.
func (cp *CarPark) IsParked(car string) bool {
	_, ok := cp.park[car]
	return ok
}

// IsReserved reports whether car currently occupies the reserved area.
func (cp *CarPark) IsReserved(car string) bool {
	_, ok := cp.reserved[car]
	return ok
}

// IsSubscribed reports whether car holds a subscription.
func (cp *CarPark) IsSubscribed(car string) bool {
	_, ok := cp.subscribed[car]
	return ok
}

// CheckInvariants verifies the relations that must hold between the pools
// after every operation. It returns nil for a consistent car park and an
// error naming the first violated relation otherwise. Tests use it as the
// oracle for randomized operation sequences; the mutating operations assert
// it internally.
func (cp *CarPark) CheckInvariants() error {
	if cp.capacity < cp.minSpacesLeft+len(cp.park) {
		return fmt.Errorf("%d cars leave less than the mandatory %d free spaces in a facility of %d",
			len(cp.park), cp.minSpacesLeft, cp.capacity)
	}
	if cp.capacity < cp.reservedCapacity {
		return fmt.Errorf("reserved area of %d does not fit a facility of %d", cp.reservedCapacity, cp.capacity)
	}
	if len(cp.subscribed) > cp.reservedCapacity {
		return fmt.Errorf("%d subscriptions exceed the %d reserved spaces", len(cp.subscribed), cp.reservedCapacity)
	}
	if len(cp.reserved) > len(cp.subscribed) {
		return fmt.Errorf("%d reserved occupants exceed the %d subscriptions", len(cp.reserved), len(cp.subscribed))
	}
	for car := range cp.reserved {
		if _, ok := cp.park[car]; !ok {
			return fmt.Errorf("reserved occupant %s is not in the car park", car)
		}
	}
	return nil
}

// assertInvariants panics when the state is inconsistent. Every mutating
// operation ends with it; a panic here means a bug in this package, not bad
// caller input. The checks are a handful of integer comparisons plus one
// walk over the reserved set, so they stay on in all builds.
func (cp *CarPark) assertInvariants() {
	if err := cp.CheckInvariants(); err != nil {
		panic("carpark: invariant violated: " + err.Error())
	}
}
