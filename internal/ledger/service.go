package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

// Service records money lifecycle events for jobs and routes.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error)
	HasEvent(ctx context.Context, appointmentID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordLedgerEventInput captures the immutable data a ledger event requires.
// Exactly one of AppointmentID or RouteID must be set.
type RecordLedgerEventInput struct {
	AppointmentID *uuid.UUID            `json:"appointment_id,omitempty"`
	RouteID       *uuid.UUID            `json:"route_id,omitempty"`
	WorkerID      *uuid.UUID            `json:"worker_id,omitempty"`
	Type          enums.LedgerEventType `json:"type"`
	AmountCents   int64                 `json:"amount_cents"`
	Reference     string                `json:"reference,omitempty"`
	Metadata      any                   `json:"metadata,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error) {
	hasAppointment := input.AppointmentID != nil && *input.AppointmentID != uuid.Nil
	hasRoute := input.RouteID != nil && *input.RouteID != uuid.Nil
	if hasAppointment == hasRoute {
		return nil, fmt.Errorf("exactly one of appointment id or route id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.AmountCents < 0 {
		return nil, fmt.Errorf("amount cents must be non-negative")
	}

	event := &models.LedgerEvent{
		ID:            uuid.New(),
		AppointmentID: input.AppointmentID,
		RouteID:       input.RouteID,
		WorkerID:      input.WorkerID,
		Type:          input.Type,
		AmountCents:   input.AmountCents,
	}
	if input.Reference != "" {
		ref := input.Reference
		event.Reference = &ref
	}
	if input.Metadata != nil {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal ledger metadata: %w", err)
		}
		event.Metadata = raw
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) HasEvent(ctx context.Context, appointmentID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if appointmentID == uuid.Nil {
		return false, fmt.Errorf("appointment id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}

	events, err := s.repo.ListByAppointmentID(ctx, appointmentID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}
