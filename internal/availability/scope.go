package availability

import (
	"time"

	"slotbook/internal/models"
)

type scopeKind int

const (
	privateToService scopeKind = iota
	sharedAcrossBusiness
)

// Scope selects which bookings count against a slot's capacity.
// Build it with PrivateToService, SharedAcrossBusiness or ScopeFor.
type Scope struct {
	kind scopeKind
	id   int64
}

// PrivateToService counts only the bookings of one service.
func PrivateToService(serviceID int64) Scope {
	return Scope{kind: privateToService, id: serviceID}
}

// SharedAcrossBusiness counts the bookings of every competing service of a business.
func SharedAcrossBusiness(businessID int64) Scope {
	return Scope{kind: sharedAcrossBusiness, id: businessID}
}

// ScopeFor picks the occupancy scope of a service.
func ScopeFor(svc *models.Service) Scope {
	if svc.CompetesWithOthers {
		return SharedAcrossBusiness(svc.BusinessID)
	}
	return PrivateToService(svc.ID)
}

func (s Scope) Shared() bool { return s.kind == sharedAcrossBusiness }

func (s Scope) ID() int64 { return s.id }

// Includes reports whether b belongs to the scope's booking set.
// The shared pool holds only bookings of competing services of the business.
func (s Scope) Includes(b *models.Booking) bool {
	if s.kind == sharedAcrossBusiness {
		return b.BusinessID == s.id && b.CompetesWithOthers
	}
	return b.ServiceID == s.id
}

// Filter is the data-access query that loads this scope's bookings on date.
func (s Scope) Filter(date time.Time) models.BookingFilter {
	f := models.BookingFilter{Date: models.DateOnly(date)}
	if s.kind == sharedAcrossBusiness {
		f.BusinessID = s.id
	} else {
		f.ServiceID = s.id
	}
	return f
}

func (s Scope) String() string {
	if s.kind == sharedAcrossBusiness {
		return "shared"
	}
	return "private"
}
