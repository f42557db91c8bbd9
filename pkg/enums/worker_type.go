package enums

import "fmt"

// WorkerType distinguishes independent contractors from partnered moving crews.
type WorkerType string

const (
	WorkerTypeIndependent WorkerType = "independent"
	WorkerTypePartner     WorkerType = "partner"
)

func (w WorkerType) IsValid() bool {
	return w == WorkerTypeIndependent || w == WorkerTypePartner
}

func (w WorkerType) IsPartner() bool {
	return w == WorkerTypePartner
}

// ParseWorkerType converts raw input into a WorkerType.
func ParseWorkerType(value string) (WorkerType, error) {
	switch WorkerType(value) {
	case WorkerTypeIndependent, WorkerTypePartner:
		return WorkerType(value), nil
	}
	return "", fmt.Errorf("invalid worker type %q", value)
}
