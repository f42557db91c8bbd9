package enums

import "fmt"

// AppointmentStatus tracks the fulfillment lifecycle of a customer job.
type AppointmentStatus string

const (
	AppointmentStatusScheduled        AppointmentStatus = "Scheduled"
	AppointmentStatusInTransit        AppointmentStatus = "In Transit"
	AppointmentStatusLoadingComplete  AppointmentStatus = "Loading Complete"
	AppointmentStatusStorageTermEnded AppointmentStatus = "Storage Term Ended"
	AppointmentStatusAccessComplete   AppointmentStatus = "Access Complete"
	AppointmentStatusAwaitingCheckIn  AppointmentStatus = "Awaiting Admin Check-In"
	AppointmentStatusComplete         AppointmentStatus = "Complete"
	AppointmentStatusCanceled         AppointmentStatus = "Canceled"
)

var validAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusInTransit,
	AppointmentStatusLoadingComplete,
	AppointmentStatusStorageTermEnded,
	AppointmentStatusAccessComplete,
	AppointmentStatusAwaitingCheckIn,
	AppointmentStatusComplete,
	AppointmentStatusCanceled,
}

// ServiceCompletedStatuses is the set that marks on-site service as already finished.
var ServiceCompletedStatuses = []AppointmentStatus{
	AppointmentStatusLoadingComplete,
	AppointmentStatusStorageTermEnded,
	AppointmentStatusAccessComplete,
	AppointmentStatusComplete,
}

// PayableStatuses are the statuses at or past the return-to-depot phase.
var PayableStatuses = []AppointmentStatus{
	AppointmentStatusAwaitingCheckIn,
	AppointmentStatusComplete,
}

// String implements fmt.Stringer.
func (s AppointmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AppointmentStatus.
func (s AppointmentStatus) IsValid() bool {
	for _, candidate := range validAppointmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsServiceCompleted reports whether on-site service already concluded.
func (s AppointmentStatus) IsServiceCompleted() bool {
	return containsStatus(ServiceCompletedStatuses, s)
}

func (s AppointmentStatus) IsCanceled() bool {
	return s == AppointmentStatusCanceled
}

// rank orders statuses along the forward lifecycle; Canceled sits outside it.
func (s AppointmentStatus) rank() int {
	switch s {
	case AppointmentStatusScheduled:
		return 0
	case AppointmentStatusInTransit:
		return 1
	case AppointmentStatusLoadingComplete, AppointmentStatusStorageTermEnded, AppointmentStatusAccessComplete:
		return 2
	case AppointmentStatusAwaitingCheckIn:
		return 3
	case AppointmentStatusComplete:
		return 4
	default:
		return -1
	}
}

// Precedes reports whether moving from s to next is a forward transition.
func (s AppointmentStatus) Precedes(next AppointmentStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return from < to
}

// StatusesBefore returns every known status strictly earlier than target.
func StatusesBefore(target AppointmentStatus) []AppointmentStatus {
	out := []AppointmentStatus{}
	for _, candidate := range validAppointmentStatuses {
		if candidate.Precedes(target) {
			out = append(out, candidate)
		}
	}
	return out
}

// ParseAppointmentStatus converts raw input into an AppointmentStatus.
func ParseAppointmentStatus(value string) (AppointmentStatus, error) {
	for _, candidate := range validAppointmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid appointment status %q", value)
}

func containsStatus(set []AppointmentStatus, s AppointmentStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
