package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/internal/appointments"
	"github.com/angelmondragon/stowaway-backend/internal/ledger"
	"github.com/angelmondragon/stowaway-backend/pkg/db"
	"github.com/angelmondragon/stowaway-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/square"
)

type stubPayments struct {
	calls  []square.PaymentCreateParams
	status string
	err    error
}

func (s *stubPayments) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	id := "pay_123"
	status := s.status
	if status == "" {
		status = "COMPLETED"
	}
	return &sq.Payment{ID: &id, Status: &status}, nil
}

func (s *stubPayments) LocationID() string { return "LOC1" }
func (s *stubPayments) Currency() string   { return "USD" }

type fixture struct {
	conn     *gorm.DB
	payments *stubPayments
	svc      Collaborator
	repo     appointments.Repository
	ledger   ledger.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := appointments.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	payments := &stubPayments{}
	svc, err := NewService(ServiceParams{
		Payments:     payments,
		Appointments: repo,
		Ledger:       ledgerSvc,
		TxRunner:     db.NewFromConn(conn),
	})
	require.NoError(t, err)
	return fixture{conn: conn, payments: payments, svc: svc, repo: repo, ledger: ledgerSvc}
}

func seedBillable(t *testing.T, conn *gorm.DB, apptType enums.AppointmentType, balance int64) *models.Appointment {
	t.Helper()
	customer, card := "CUST1", "ccof:card"
	appt := &models.Appointment{
		ID:               uuid.New(),
		AppointmentType:  apptType,
		Status:           enums.AppointmentStatusAccessComplete,
		CustomerName:     "Dana",
		ScheduledAt:      time.Now().UTC(),
		SquareCustomerID: &customer,
		SquareCardID:     &card,
		BalanceDueCents:  balance,
		PaymentStatus:    enums.PaymentStatusUnpaid,
	}
	require.NoError(t, conn.Create(appt).Error)
	return appt
}

func TestCompleteServiceChargesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := seedBillable(t, f.conn, enums.AppointmentTypeStorageAccess, 8900)

	res, err := f.svc.CompleteService(ctx, appt)
	require.NoError(t, err)
	require.Equal(t, enums.AppointmentStatusAccessComplete, res.Status)
	require.Equal(t, enums.PaymentStatusPaid, res.PaymentStatus)
	require.Equal(t, "pay_123", res.PaymentID)
	require.Len(t, f.payments.calls, 1)
	require.Equal(t, "appointment-"+appt.ID.String()+"-completion", f.payments.calls[0].IdempotencyKey)
	require.Equal(t, int64(8900), f.payments.calls[0].AmountCents)

	_, err = f.svc.CompleteService(ctx, appt)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed))
	require.Len(t, f.payments.calls, 1, "a paid appointment must not be charged again")

	charged, err := f.ledger.HasEvent(ctx, appt.ID, enums.LedgerEventTypeCustomerCharge)
	require.NoError(t, err)
	require.True(t, charged)
}

func TestCompleteServiceRecordsFailure(t *testing.T) {
	f := newFixture(t)
	f.payments.err = errors.New("card declined")
	ctx := context.Background()
	appt := seedBillable(t, f.conn, enums.AppointmentTypeInitialPickup, 5000)

	res, err := f.svc.CompleteService(ctx, appt)
	require.Error(t, err)
	require.Equal(t, enums.AppointmentStatusLoadingComplete, res.Status)

	reloaded, err := f.repo.FindAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, reloaded.PaymentStatus)
	require.Equal(t, enums.AppointmentStatusAccessComplete, reloaded.Status, "billing never touches appointment status")

	failed, err := f.ledger.HasEvent(ctx, appt.ID, enums.LedgerEventTypeChargeFailed)
	require.NoError(t, err)
	require.True(t, failed)
}

func TestCompleteServiceTreatsDeclinedPaymentAsFailure(t *testing.T) {
	f := newFixture(t)
	f.payments.status = "FAILED"
	appt := seedBillable(t, f.conn, enums.AppointmentTypeInitialPickup, 5000)

	res, err := f.svc.CompleteService(context.Background(), appt)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Equal(t, enums.PaymentStatusFailed, res.PaymentStatus)
}

func TestCompleteServiceWaivesZeroBalance(t *testing.T) {
	f := newFixture(t)
	appt := seedBillable(t, f.conn, enums.AppointmentTypeStorageTermEnd, 0)

	res, err := f.svc.CompleteService(context.Background(), appt)
	require.NoError(t, err)
	require.Equal(t, enums.AppointmentStatusStorageTermEnded, res.Status)
	require.Equal(t, enums.PaymentStatusWaived, res.PaymentStatus)
	require.Empty(t, f.payments.calls)
}

func TestCompleteServiceWithoutProfileOnlyResolvesStatus(t *testing.T) {
	f := newFixture(t)
	appt := seedBillable(t, f.conn, enums.AppointmentTypeAdditionalPickup, 5000)
	appt.SquareCardID = nil

	res, err := f.svc.CompleteService(context.Background(), appt)
	require.NoError(t, err)
	require.Equal(t, enums.AppointmentStatusLoadingComplete, res.Status)
	require.Empty(t, f.payments.calls)
}
