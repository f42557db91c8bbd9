package enums

import "fmt"

// AppointmentType identifies what the customer booked.
type AppointmentType string

const (
	AppointmentTypeInitialPickup    AppointmentType = "initial_pickup"
	AppointmentTypeAdditionalPickup AppointmentType = "additional_pickup"
	AppointmentTypeStorageTermEnd   AppointmentType = "storage_term_end"
	AppointmentTypeStorageAccess    AppointmentType = "storage_access"
)

var validAppointmentTypes = []AppointmentType{
	AppointmentTypeInitialPickup,
	AppointmentTypeAdditionalPickup,
	AppointmentTypeStorageTermEnd,
	AppointmentTypeStorageAccess,
}

func (t AppointmentType) IsValid() bool {
	for _, candidate := range validAppointmentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ServiceCompletedStatus maps the appointment type to the status set once on-site service ends.
func (t AppointmentType) ServiceCompletedStatus() AppointmentStatus {
	switch t {
	case AppointmentTypeStorageTermEnd:
		return AppointmentStatusStorageTermEnded
	case AppointmentTypeStorageAccess:
		return AppointmentStatusAccessComplete
	default:
		return AppointmentStatusLoadingComplete
	}
}

// ParseAppointmentType converts raw input into an AppointmentType.
func ParseAppointmentType(value string) (AppointmentType, error) {
	for _, candidate := range validAppointmentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid appointment type %q", value)
}
