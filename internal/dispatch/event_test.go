package dispatch

import (
	"testing"

	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
)

func TestClassifyStorageSteps(t *testing.T) {
	cases := []struct {
		step    int
		trigger Trigger
		want    Event
	}{
		{1, TriggerTaskStarted, EventPickupStarted},
		{1, TriggerTaskCompleted, EventPickupCompleted},
		{2, TriggerTaskStarted, EventServiceStarted},
		{2, TriggerTaskArrival, EventServiceArrived},
		{2, TriggerTaskCompleted, EventServiceCompleted},
		{3, TriggerTaskCompleted, EventReturnCompleted},
		{4, TriggerTaskCompleted, EventCloseOutCompleted},
	}
	for _, tc := range cases {
		got, err := Classify(KindStorage, tc.step, tc.trigger)
		if err != nil {
			t.Fatalf("step %d %s: unexpected error %v", tc.step, tc.trigger, err)
		}
		if got != tc.want {
			t.Fatalf("step %d %s: expected %s, got %s", tc.step, tc.trigger, tc.want, got)
		}
	}
}

func TestClassifyRouteIgnoresStep(t *testing.T) {
	got, err := Classify(KindRoute, 7, TriggerTaskFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != EventStopFailed {
		t.Fatalf("expected stop failed, got %s", got)
	}
}

func TestClassifyRejectsUnknownCombination(t *testing.T) {
	_, err := Classify(KindStorage, 3, TriggerTaskArrival)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if _, err := Classify(KindStorage, 2, TriggerTaskFailed); err == nil {
		t.Fatal("expected storage taskFailed to be unsupported")
	}
}

func TestKindOf(t *testing.T) {
	route := Task{Metadata: []MetadataField{{Name: "jobType", Value: "packing_supply"}}}
	if KindOf(route) != KindRoute {
		t.Fatal("expected packing supply job type to classify as route")
	}
	withRouteID := Task{Metadata: []MetadataField{{Name: "routeId", Value: "r-1"}}}
	if KindOf(withRouteID) != KindRoute {
		t.Fatal("expected routeId metadata to classify as route")
	}
	if KindOf(Task{}) != KindStorage {
		t.Fatal("expected storage by default")
	}
}
