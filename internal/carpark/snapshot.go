package carpark

import (
	"fmt"
	"sort"
	"strings"
)

// Snapshot is a read-only copy of the car park taken at a single point in
// time: the three layout constants, the mode flag, the sellable space count,
// and the three occupancy sets with their registrations sorted. Handlers
// serialize it as the status payload and the shell prints it.
type Snapshot struct {
	Capacity         int      `json:"capacity"`
	ReservedCapacity int      `json:"reserved_capacity"`
	MinSpacesLeft    int      `json:"min_spaces_left"`
	ReservedOpen     bool     `json:"reserved_open"`
	Available        int      `json:"available"`
	Parked           []string `json:"parked"`
	Reserved         []string `json:"reserved"`
	Subscribed       []string `json:"subscribed"`
}

// Snapshot copies the current state. The returned slices are fresh and
// sorted, so the caller may hold or mutate them after further operations on
// the car park.
func (cp *CarPark) Snapshot() Snapshot {
	return Snapshot{
		Capacity:         cp.capacity,
		ReservedCapacity: cp.reservedCapacity,
		MinSpacesLeft:    cp.minSpacesLeft,
		ReservedOpen:     cp.reservedOpen,
		Available:        cp.Available(),
		Parked:           sortedKeys(cp.park),
		Reserved:         sortedKeys(cp.reserved),
		Subscribed:       sortedKeys(cp.subscribed),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the snapshot for human inspection, one section per pool.
func (s Snapshot) String() string {
	var b strings.Builder

	mode := "weekday (reserved area restricted to subscribers)"
	if s.ReservedOpen {
		mode = "weekend (reserved area open to all)"
	}
	fmt.Fprintf(&b, "Car park: %d spaces, %d reserved, %d always kept free\n", s.Capacity, s.ReservedCapacity, s.MinSpacesLeft)
	fmt.Fprintf(&b, "Mode: %s\n", mode)
	fmt.Fprintf(&b, "Available: %d\n", s.Available)
	fmt.Fprintf(&b, "Parked (%d): %s\n", len(s.Parked), formatCars(s.Parked))
	fmt.Fprintf(&b, "Reserved area (%d): %s\n", len(s.Reserved), formatCars(s.Reserved))
	fmt.Fprintf(&b, "Subscribed (%d): %s", len(s.Subscribed), formatCars(s.Subscribed))

	return b.String()
}

func formatCars(cars []string) string {
	if len(cars) == 0 {
		return "none"
	}
	return strings.Join(cars, ", ")
}
