package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/internal/ledger"
	"github.com/angelmondragon/stowaway-backend/internal/workers"
	"github.com/angelmondragon/stowaway-backend/pkg/db"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/metrics"
	"github.com/angelmondragon/stowaway-backend/pkg/stripe"
)

// RouteBreakdown is the audit record attached to a route payout.
type RouteBreakdown struct {
	Stops  int               `json:"stops"`
	Miles  decimal.Decimal   `json:"miles"`
	Hours  decimal.Decimal   `json:"hours"`
	Total  decimal.Decimal   `json:"total"`
	Shares map[string]string `json:"shares,omitempty"`
}

// MeasureRoute derives stops, miles and hours from the route and its orders.
// Hours run from the first stop start to the last stop finish.
func MeasureRoute(route *models.Route, orders []models.PackingSupplyOrder) RouteBreakdown {
	var b RouteBreakdown
	reported := decimal.Zero
	var first, last *time.Time
	for i := range orders {
		order := orders[i]
		if order.Status == enums.OrderStatusDelivered {
			b.Stops++
		}
		if order.ReportedMiles.Valid {
			reported = reported.Add(order.ReportedMiles.Decimal)
		}
		if order.StartedAt != nil && (first == nil || order.StartedAt.Before(*first)) {
			first = order.StartedAt
		}
		for _, end := range []*time.Time{order.DeliveredAt, order.FailedAt} {
			if end != nil && (last == nil || end.After(*last)) {
				last = end
			}
		}
	}

	b.Miles = reported
	if route.TotalMiles.Valid {
		b.Miles = route.TotalMiles.Decimal
	}
	if route.StartedAt != nil {
		first = route.StartedAt
	}
	if route.CompletedAt != nil {
		last = route.CompletedAt
	}
	b.Hours = decimal.Zero
	if first != nil && last != nil && last.After(*first) {
		b.Hours = decimal.NewFromFloat(last.Sub(*first).Minutes()).Div(decimal.NewFromInt(60)).Round(4)
	}
	return b
}

func (s *service) SettleRoute(ctx context.Context, routeID uuid.UUID) (Result, error) {
	if s.logg != nil {
		ctx = s.logg.WithRouteID(ctx, routeID.String())
	}

	route, err := s.routes.FindRoute(ctx, routeID)
	if err != nil {
		if db.IsNotFound(err) {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "route not found")
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load route")
	}
	if route.PayoutStatus == enums.PayoutStatusCompleted && route.PayoutTransferID != nil {
		return Result{
			Status:      enums.PayoutStatusCompleted,
			TransferID:  *route.PayoutTransferID,
			AmountCents: ToCents(route.PayoutAmount.Decimal),
			Reason:      "already settled",
		}, nil
	}
	if route.Status != enums.RouteStatusDelivered {
		return Result{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("route is %s, not delivered", route.Status))
	}

	orders, err := s.routes.ListOrdersByRoute(ctx, routeID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list route orders")
	}
	breakdown := MeasureRoute(route, orders)
	breakdown.Total = s.formula.Total(breakdown.Stops, breakdown.Miles, breakdown.Hours)

	payee, err := s.resolveRoutePayee(ctx, route)
	if err == nil {
		err = payee.Ready()
	}
	if err != nil {
		return s.failRoute(ctx, routeID, payee, breakdown, err, !pkgerrors.IsCode(err, pkgerrors.CodeConfiguration), false)
	}

	claimed, err := s.routes.ClaimRoutePayout(ctx, routeID, breakdown.Total, s.now())
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim route payout")
	}
	if !claimed {
		return Result{Status: enums.PayoutStatusProcessing}, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "route payout already claimed")
	}

	// an earlier claim may have frozen a different total
	claimedRoute, err := s.routes.FindRoute(ctx, routeID)
	if err != nil {
		return s.failRoute(ctx, routeID, payee, breakdown, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload claimed route"), true, true)
	}
	if claimedRoute.PayoutAmount.Valid {
		breakdown.Total = claimedRoute.PayoutAmount.Decimal
	}

	cents := ToCents(breakdown.Total)
	if cents <= 0 {
		return s.failRoute(ctx, routeID, payee, breakdown,
			pkgerrors.New(pkgerrors.CodeValidation, "route payout is not positive"), false, true)
	}

	transferID, err := s.transfers.CreateTransfer(ctx, stripe.TransferParams{
		AmountCents:    cents,
		Currency:       s.currency,
		Destination:    payee.AccountID,
		Description:    fmt.Sprintf("Stowaway packing supply route %s", routeID),
		IdempotencyKey: RouteIdempotencyKey(routeID),
		Metadata: map[string]string{
			"route_id":  routeID.String(),
			"worker_id": payee.ID.String(),
			"stops":     fmt.Sprint(breakdown.Stops),
		},
	})
	if err != nil {
		return s.failRoute(ctx, routeID, payee, breakdown, err, pkgerrors.IsRetryable(err), true)
	}

	shares := deliveredShares(orders, breakdown.Total)
	breakdown.Shares = make(map[string]string, len(shares))
	for id, share := range shares {
		breakdown.Shares[id.String()] = share.StringFixed(2)
	}

	at := s.now()
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.routes.WithTx(tx)
		if err := repo.CompleteRoutePayout(ctx, routeID, transferID, at); err != nil {
			return err
		}
		if err := repo.SetOrderPayoutShares(ctx, shares); err != nil {
			return err
		}
		_, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
			RouteID:     &routeID,
			WorkerID:    &payee.ID,
			Type:        enums.LedgerEventTypeWorkerPayout,
			AmountCents: cents,
			Reference:   transferID,
			Metadata:    breakdown,
		})
		return err
	})
	result := Result{Status: enums.PayoutStatusCompleted, TransferID: transferID, AmountCents: cents}
	if txErr != nil {
		s.logError(ctx, "route payout transferred but not recorded", txErr)
		s.metrics.Observe(metrics.PayoutKindRoute, string(enums.PayoutStatusProcessing), 0)
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "record route payout")
	}

	s.metrics.Observe(metrics.PayoutKindRoute, string(enums.PayoutStatusCompleted), cents)
	s.logInfo(ctx, "route payout completed", map[string]any{
		"transfer_id":  transferID,
		"amount_cents": cents,
		"stops":        breakdown.Stops,
	})
	s.notifyPayee(ctx, payee, cents)
	return result, nil
}

func (s *service) failRoute(ctx context.Context, routeID uuid.UUID, payee workers.Payee, breakdown RouteBreakdown, cause error, retryable, claimed bool) (Result, error) {
	reason := failureReason(cause)
	changed, err := s.routes.FailRoutePayout(ctx, routeID, failableFrom(claimed), reason, retryable, s.now())
	switch {
	case err != nil:
		s.logError(ctx, "failed to persist route payout failure", err)
	case !changed && !claimed:
		return s.yieldToClaim(ctx, reason, cause)
	}
	input := ledger.RecordLedgerEventInput{
		RouteID:     &routeID,
		Type:        enums.LedgerEventTypePayoutFailed,
		AmountCents: ToCents(breakdown.Total),
		Metadata: map[string]any{
			"reason":    reason,
			"retryable": retryable,
			"breakdown": breakdown,
		},
	}
	if payee.ID != uuid.Nil {
		input.WorkerID = &payee.ID
	}
	if _, err := s.ledger.RecordEvent(ctx, input); err != nil {
		s.logError(ctx, "failed to record payout failure in ledger", err)
	}
	s.metrics.Observe(metrics.PayoutKindRoute, string(enums.PayoutStatusFailed), 0)
	s.logFailure(ctx, "route payout failed", cause, retryable)
	return Result{Status: enums.PayoutStatusFailed, Reason: reason}, cause
}

func (s *service) resolveRoutePayee(ctx context.Context, route *models.Route) (workers.Payee, error) {
	if route.DriverID == nil {
		return workers.Payee{}, pkgerrors.New(pkgerrors.CodeConfiguration, "no driver assigned to the route")
	}
	driver, err := s.workers.FindDriver(ctx, *route.DriverID)
	if err != nil {
		return workers.Payee{}, lookupError(err, "driver", *route.DriverID)
	}
	return workers.PayeeFromDriver(driver), nil
}

// deliveredShares splits the route total across delivered stops for accounting.
func deliveredShares(orders []models.PackingSupplyOrder, total decimal.Decimal) map[uuid.UUID]decimal.Decimal {
	var delivered []uuid.UUID
	for _, order := range orders {
		if order.Status == enums.OrderStatusDelivered {
			delivered = append(delivered, order.ID)
		}
	}
	shares := make(map[uuid.UUID]decimal.Decimal, len(delivered))
	for i, share := range SplitEvenly(total, len(delivered)) {
		shares[delivered[i]] = share
	}
	return shares
}
