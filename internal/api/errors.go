package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"slotbook/internal/database"
	"slotbook/internal/models"
	"slotbook/internal/service"

	"google.golang.org/grpc/codes"
)

type apiError struct {
	status   int
	grpcCode codes.Code
	code     string
	message  string
}

// classify maps domain errors onto transport status codes.
func classify(err error) apiError {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return apiError{http.StatusNotFound, codes.NotFound, "not_found", err.Error()}
	case errors.Is(err, database.ErrClosedDay):
		return apiError{http.StatusConflict, codes.FailedPrecondition, "closed_day", err.Error()}
	case errors.Is(err, database.ErrSlotUnavailable):
		return apiError{http.StatusUnprocessableEntity, codes.FailedPrecondition, "slot_unavailable", err.Error()}
	case errors.Is(err, database.ErrCapacityExceeded):
		return apiError{http.StatusConflict, codes.Aborted, "capacity_exceeded", err.Error()}
	case errors.Is(err, database.ErrConcurrentModification):
		return apiError{http.StatusConflict, codes.Aborted, "concurrent_modification", err.Error()}
	case errors.Is(err, database.ErrInvalidTransition):
		return apiError{http.StatusUnprocessableEntity, codes.FailedPrecondition, "invalid_transition", err.Error()}
	case errors.Is(err, service.ErrRateLimited):
		return apiError{http.StatusTooManyRequests, codes.ResourceExhausted, "rate_limited", err.Error()}
	case errors.Is(err, service.ErrPastDate),
		errors.Is(err, service.ErrDateTooFar),
		errors.Is(err, service.ErrInvalidBooking),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidCatalog):
		return apiError{http.StatusBadRequest, codes.InvalidArgument, "validation_error", err.Error()}
	default:
		return apiError{http.StatusInternalServerError, codes.Internal, "internal", "internal error"}
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}
	return date, nil
}
