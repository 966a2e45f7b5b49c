package database

import "errors"

var (
	ErrNotFound               = errors.New("record not found")
	ErrClosedDay              = errors.New("business is closed on this date")
	ErrSlotUnavailable        = errors.New("requested time is not an available slot")
	ErrCapacityExceeded       = errors.New("slot capacity exceeded")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrInvalidTransition      = errors.New("status transition is not allowed")
)
