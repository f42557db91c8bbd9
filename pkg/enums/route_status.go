package enums

import "fmt"

// RouteStatus tracks a packing-supply delivery route.
type RouteStatus string

const (
	RouteStatusScheduled RouteStatus = "Scheduled"
	RouteStatusInTransit RouteStatus = "In Transit"
	RouteStatusDelivered RouteStatus = "Delivered"
	RouteStatusFailed    RouteStatus = "Failed"
)

var validRouteStatuses = []RouteStatus{
	RouteStatusScheduled,
	RouteStatusInTransit,
	RouteStatusDelivered,
	RouteStatusFailed,
}

func (s RouteStatus) IsValid() bool {
	for _, candidate := range validRouteStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s RouteStatus) IsTerminal() bool {
	return s == RouteStatusDelivered || s == RouteStatusFailed
}

// ParseRouteStatus converts raw input into a RouteStatus.
func ParseRouteStatus(value string) (RouteStatus, error) {
	for _, candidate := range validRouteStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid route status %q", value)
}

// OrderStatus tracks a single delivery stop on a route.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusDispatched OrderStatus = "Dispatched"
	OrderStatusArrived    OrderStatus = "Arrived"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusFailed     OrderStatus = "Failed"
	OrderStatusCanceled   OrderStatus = "Canceled"
)

// OpenOrderStatuses are stops that can still receive dispatch events.
var OpenOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusDispatched,
	OrderStatusArrived,
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusFailed || s == OrderStatusCanceled
}
