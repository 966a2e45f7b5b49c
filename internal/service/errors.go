package service

import "errors"

var (
	ErrRateLimited    = errors.New("too many booking attempts, try again later")
	ErrPastDate       = errors.New("booking start is in the past")
	ErrDateTooFar     = errors.New("booking date is too far in the future")
	ErrInvalidBooking = errors.New("invalid booking")
	ErrInvalidStatus  = errors.New("unknown booking status")
	ErrInvalidCatalog = errors.New("invalid catalog entry")
)
