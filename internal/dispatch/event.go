package dispatch

import (
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
)

// JobKind separates storage appointments from packing-supply routes.
type JobKind string

const (
	KindStorage JobKind = "storage"
	KindRoute   JobKind = "packing_supply_route"
)

// KindOf classifies a dispatch task by its booking metadata.
func KindOf(task Task) JobKind {
	if v, ok := task.MetadataValue("jobType"); ok {
		switch strings.ToLower(strings.ReplaceAll(v, "_", "-")) {
		case "packing-supply", "packing-supply-delivery", "packing-supply-route":
			return KindRoute
		}
	}
	if v, ok := task.MetadataValue("routeId"); ok && v != "" {
		return KindRoute
	}
	return KindStorage
}

// Event is the closed set of (job kind, step, trigger) combinations the engine handles.
type Event string

const (
	EventPickupStarted     Event = "pickup.started"
	EventPickupCompleted   Event = "pickup.completed"
	EventServiceStarted    Event = "service.started"
	EventServiceArrived    Event = "service.arrived"
	EventServiceCompleted  Event = "service.completed"
	EventReturnCompleted   Event = "return.completed"
	EventCloseOutCompleted Event = "closeout.completed"

	EventStopStarted   Event = "route_stop.started"
	EventStopArrived   Event = "route_stop.arrived"
	EventStopCompleted Event = "route_stop.completed"
	EventStopFailed    Event = "route_stop.failed"
)

type eventKey struct {
	kind    JobKind
	step    int
	trigger Trigger
}

var events = map[eventKey]Event{
	{KindStorage, 1, TriggerTaskStarted}:   EventPickupStarted,
	{KindStorage, 1, TriggerTaskCompleted}: EventPickupCompleted,
	{KindStorage, 2, TriggerTaskStarted}:   EventServiceStarted,
	{KindStorage, 2, TriggerTaskArrival}:   EventServiceArrived,
	{KindStorage, 2, TriggerTaskCompleted}: EventServiceCompleted,
	{KindStorage, 3, TriggerTaskCompleted}: EventReturnCompleted,
	{KindStorage, 4, TriggerTaskCompleted}: EventCloseOutCompleted,

	{KindRoute, 0, TriggerTaskStarted}:   EventStopStarted,
	{KindRoute, 0, TriggerTaskArrival}:   EventStopArrived,
	{KindRoute, 0, TriggerTaskCompleted}: EventStopCompleted,
	{KindRoute, 0, TriggerTaskFailed}:    EventStopFailed,
}

// Classify maps a resolved task to its Event. Route stops have no step; pass 0.
// Combinations outside the table return a CodeUnsupported error.
func Classify(kind JobKind, step int, trigger Trigger) (Event, error) {
	if kind == KindRoute {
		step = 0
	}
	if event, ok := events[eventKey{kind: kind, step: step, trigger: trigger}]; ok {
		return event, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeUnsupported, fmt.Sprintf("no handler for %s step %d %s", kind, step, trigger)).
		WithDetails(map[string]any{"kind": kind, "step": step, "trigger": trigger})
}
