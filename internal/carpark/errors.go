package carpark

import "errors"

var (
	// ErrInvalidLayout is returned by New when the reserved spaces plus the
	// mandatory free spaces would not fit the facility, or any size is
	// negative.
	ErrInvalidLayout = errors.New("invalid car park layout")

	// ErrNotSubscribed is returned by EnterReserved when a car without a
	// subscription tries the reserved gate while the area is restricted.
	ErrNotSubscribed = errors.New("car is not subscribed")
)
