package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

type fakeRepository struct {
	createFn func(ctx context.Context, event *models.LedgerEvent) error
	events   []models.LedgerEvent
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, event *models.LedgerEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListByAppointmentID(ctx context.Context, appointmentID uuid.UUID) ([]models.LedgerEvent, error) {
	return f.events, nil
}

func (f *fakeRepository) ListByRouteID(ctx context.Context, routeID uuid.UUID) ([]models.LedgerEvent, error) {
	return f.events, nil
}

func TestService_RecordEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	appointmentID := uuid.New()
	workerID := uuid.New()
	input := RecordLedgerEventInput{
		AppointmentID: &appointmentID,
		WorkerID:      &workerID,
		Type:          enums.LedgerEventTypeWorkerPayout,
		AmountCents:   3851,
		Reference:     "tr_123",
		Metadata:      map[string]any{"gross_cents": 3970, "platform_fee_cents": 119},
	}

	var created *models.LedgerEvent
	repo.createFn = func(ctx context.Context, event *models.LedgerEvent) error {
		created = event
		return nil
	}

	got, err := svc.RecordEvent(context.Background(), input)
	if err != nil {
		t.Fatalf("RecordEvent error: %v", err)
	}
	if created == nil || got != created {
		t.Fatal("expected service to create and return the ledger event")
	}
	if *created.AppointmentID != appointmentID || created.Type != input.Type || created.AmountCents != 3851 {
		t.Fatalf("unexpected ledger event data: %+v", created)
	}
	if created.Reference == nil || *created.Reference != "tr_123" {
		t.Fatalf("expected transfer reference, got %v", created.Reference)
	}
	if string(created.Metadata) != `{"gross_cents":3970,"platform_fee_cents":119}` {
		t.Fatalf("metadata mismatch: %s", created.Metadata)
	}
}

func TestService_RecordEventValidation(t *testing.T) {
	svc, _ := NewService(&fakeRepository{})
	appointmentID := uuid.New()
	routeID := uuid.New()

	cases := map[string]RecordLedgerEventInput{
		"no owner":     {Type: enums.LedgerEventTypeWorkerPayout},
		"both owners":  {AppointmentID: &appointmentID, RouteID: &routeID, Type: enums.LedgerEventTypeWorkerPayout},
		"bad type":     {AppointmentID: &appointmentID, Type: "bogus"},
		"negative amt": {RouteID: &routeID, Type: enums.LedgerEventTypeWorkerPayout, AmountCents: -1},
	}
	for name, input := range cases {
		if _, err := svc.RecordEvent(context.Background(), input); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestService_RecordEventPropagatesRepoError(t *testing.T) {
	repo := &fakeRepository{createFn: func(context.Context, *models.LedgerEvent) error { return errors.New("db down") }}
	svc, _ := NewService(repo)
	routeID := uuid.New()
	if _, err := svc.RecordEvent(context.Background(), RecordLedgerEventInput{RouteID: &routeID, Type: enums.LedgerEventTypePayoutFailed}); err == nil {
		t.Fatal("expected repository error to surface")
	}
}

func TestService_HasEvent(t *testing.T) {
	repo := &fakeRepository{events: []models.LedgerEvent{{Type: enums.LedgerEventTypeCustomerCharge}}}
	svc, _ := NewService(repo)

	ok, err := svc.HasEvent(context.Background(), uuid.New(), enums.LedgerEventTypeCustomerCharge)
	if err != nil || !ok {
		t.Fatalf("expected charge event, got %v %v", ok, err)
	}
	ok, err = svc.HasEvent(context.Background(), uuid.New(), enums.LedgerEventTypeWorkerPayout)
	if err != nil || ok {
		t.Fatalf("did not expect payout event, got %v %v", ok, err)
	}
}
