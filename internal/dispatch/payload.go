package dispatch

import (
	"fmt"
	"strings"
)

// Trigger names emitted by the dispatch platform.
type Trigger string

const (
	TriggerTaskStarted   Trigger = "taskStarted"
	TriggerTaskArrival   Trigger = "taskArrival"
	TriggerTaskCompleted Trigger = "taskCompleted"
	TriggerTaskFailed    Trigger = "taskFailed"
)

// Payload is the webhook body posted by the dispatch platform.
type Payload struct {
	TaskID      string  `json:"taskId" validate:"required"`
	Time        int64   `json:"time" validate:"required,gt=0"`
	TriggerName Trigger `json:"triggerName" validate:"required,oneof=taskStarted taskArrival taskCompleted taskFailed"`
	Data        Data    `json:"data"`
}

type Data struct {
	Task   Task    `json:"task"`
	Worker *Worker `json:"worker,omitempty"`
}

type Task struct {
	ShortID           string             `json:"shortId" validate:"required"`
	Metadata          []MetadataField    `json:"metadata"`
	CompletionDetails *CompletionDetails `json:"completionDetails,omitempty"`
}

// MetadataField carries booking identifiers attached to the dispatch task.
type MetadataField struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type CompletionDetails struct {
	// Distance is reported in meters.
	Distance       *float64          `json:"distance,omitempty"`
	Events         []CompletionEvent `json:"events"`
	Time           *int64            `json:"time,omitempty"`
	PhotoUploadIDs []string          `json:"photoUploadIds"`
	PhotoUploadID  string            `json:"photoUploadId,omitempty"`
	FailureReason  string            `json:"failureReason,omitempty"`
	FailureNotes   string            `json:"failureNotes,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	Success        *bool             `json:"success,omitempty"`
}

type CompletionEvent struct {
	Name string `json:"name"`
	Time int64  `json:"time"`
}

type Worker struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// FingerprintID identifies one delivery of one trigger for duplicate suppression.
func (p Payload) FingerprintID() string {
	return fmt.Sprintf("%s:%s:%d", p.TaskID, p.TriggerName, p.Time)
}

// MetadataValue returns the metadata value for name, case-insensitively.
func (t Task) MetadataValue(name string) (string, bool) {
	for _, field := range t.Metadata {
		if !strings.EqualFold(field.Name, name) || field.Value == nil {
			continue
		}
		switch v := field.Value.(type) {
		case string:
			return strings.TrimSpace(v), true
		case float64:
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v)), true
			}
			return fmt.Sprintf("%g", v), true
		default:
			return fmt.Sprint(v), true
		}
	}
	return "", false
}
