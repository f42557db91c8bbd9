package fulfillment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stowaway-backend/internal/dispatch"
	"github.com/angelmondragon/stowaway-backend/internal/notifications"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
)

func (s *service) handleRouteStop(ctx context.Context, c dispatch.Completion) (Result, error) {
	order, err := s.routes.FindOrderByShortID(ctx, c.ShortID)
	if err != nil {
		return Result{}, notFound(err, "order")
	}
	ctx = s.logg.WithField(ctx, "order_id", order.ID.String())
	if order.RouteID != nil {
		ctx = s.logg.WithRouteID(ctx, order.RouteID.String())
	}

	event, err := dispatch.Classify(dispatch.KindRoute, 0, c.Trigger)
	if err != nil {
		return Result{}, err
	}
	if order.Status == enums.OrderStatusCanceled {
		return ignored(event, "order canceled"), nil
	}

	switch event {
	case dispatch.EventStopStarted:
		return s.stopStarted(ctx, order, c, event)
	case dispatch.EventStopArrived:
		return s.stopArrived(ctx, order, c, event)
	case dispatch.EventStopCompleted:
		return s.stopCompleted(ctx, order, c, event)
	case dispatch.EventStopFailed:
		return s.stopFailed(ctx, order, c, event)
	}
	return Result{}, pkgerrors.New(pkgerrors.CodeUnsupported, "unhandled route event "+string(event))
}

func (s *service) stopStarted(ctx context.Context, order *models.PackingSupplyOrder, c dispatch.Completion, event dispatch.Event) (Result, error) {
	startedAt := eventTime(c.StartedAt, &c.WebhookTime)
	token := s.newToken()
	moved, err := s.routes.TransitionOrderStatus(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusDispatched,
		map[string]any{"started_at": startedAt, "tracking_token": token})
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "dispatch order")
	}
	if !moved {
		return Result{}, alreadyProcessed("stop already started")
	}

	if order.RouteID != nil {
		// first started stop puts the route in transit; later stops lose the CAS
		if _, err := s.routes.TransitionRouteStatus(ctx, *order.RouteID,
			[]enums.RouteStatus{enums.RouteStatusScheduled}, enums.RouteStatusInTransit,
			map[string]any{"started_at": startedAt}); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "start route")
		}
	}

	s.notifier.Notify(ctx, orderMessage(order, notifications.TemplateRouteStarted, c, map[string]string{
		notifications.VarTrackingURL: s.trackingURL(token),
	}))
	return processed(event, "stop started"), nil
}

func (s *service) stopArrived(ctx context.Context, order *models.PackingSupplyOrder, c dispatch.Completion, event dispatch.Event) (Result, error) {
	moved, err := s.routes.TransitionOrderStatus(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusDispatched}, enums.OrderStatusArrived,
		map[string]any{"arrived_at": eventTime(c.ArrivedAt, &c.WebhookTime)})
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order arrived")
	}
	if !moved {
		return Result{}, alreadyProcessed("stop arrival already recorded")
	}
	s.notifier.Notify(ctx, orderMessage(order, notifications.TemplateRouteArrived, c, nil))
	return processed(event, "stop arrived"), nil
}

func (s *service) stopCompleted(ctx context.Context, order *models.PackingSupplyOrder, c dispatch.Completion, event dispatch.Event) (Result, error) {
	fields := map[string]any{
		"delivered_at": eventTime(c.CompletedAt, &c.WebhookTime),
		"photos":       models.EncodePhotos(c.Photos),
	}
	if c.DistanceMiles.Valid {
		fields["reported_miles"] = c.DistanceMiles.Decimal
	}
	if order.StartedAt == nil && c.StartedAt != nil {
		fields["started_at"] = c.StartedAt.UTC()
	}
	moved, err := s.routes.TransitionOrderStatus(ctx, order.ID, enums.OpenOrderStatuses, enums.OrderStatusDelivered, fields)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order delivered")
	}
	if !moved {
		return Result{}, alreadyProcessed("stop already terminal")
	}

	s.notifier.Notify(ctx, orderMessage(order, notifications.TemplateRouteDelivered, c, map[string]string{
		notifications.VarFeedbackURL: s.feedbackURL(order.ID),
	}))
	if err := s.aggregateRoute(ctx, order); err != nil {
		return Result{}, err
	}
	return processed(event, "stop delivered"), nil
}

func (s *service) stopFailed(ctx context.Context, order *models.PackingSupplyOrder, c dispatch.Completion, event dispatch.Event) (Result, error) {
	moved, err := s.routes.TransitionOrderStatus(ctx, order.ID, enums.OpenOrderStatuses, enums.OrderStatusFailed, map[string]any{
		"failed_at":      eventTime(c.CompletedAt, &c.WebhookTime),
		"failure_reason": c.FailureReason,
	})
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order failed")
	}
	if !moved {
		return Result{}, alreadyProcessed("stop already terminal")
	}

	s.notifier.Notify(ctx, orderMessage(order, notifications.TemplateRouteFailed, c, map[string]string{
		notifications.VarReason:       c.FailureReason,
		notifications.VarSupportPhone: s.links.SupportPhone,
	}))
	if err := s.aggregateRoute(ctx, order); err != nil {
		return Result{}, err
	}
	return processed(event, "stop failed"), nil
}

// aggregateRoute closes the route once every stop is terminal and settles the driver.
func (s *service) aggregateRoute(ctx context.Context, order *models.PackingSupplyOrder) error {
	if order.RouteID == nil {
		return nil
	}
	routeID := *order.RouteID
	orders, err := s.routes.ListOrdersByRoute(ctx, routeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list route orders")
	}

	delivered := 0
	miles := decimal.Zero
	var lastEnd *time.Time
	for i := range orders {
		o := orders[i]
		if !o.Status.IsTerminal() {
			return nil
		}
		if o.Status != enums.OrderStatusDelivered {
			continue
		}
		delivered++
		if o.ReportedMiles.Valid {
			miles = miles.Add(o.ReportedMiles.Decimal)
		}
		if o.DeliveredAt != nil && (lastEnd == nil || o.DeliveredAt.After(*lastEnd)) {
			lastEnd = o.DeliveredAt
		}
	}

	open := []enums.RouteStatus{enums.RouteStatusScheduled, enums.RouteStatusInTransit}
	if delivered == 0 {
		if _, err := s.routes.TransitionRouteStatus(ctx, routeID, open, enums.RouteStatusFailed,
			map[string]any{"completed_at": eventTime()}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fail route")
		}
		s.logg.Warn(ctx, "every stop on route failed")
		return nil
	}

	moved, err := s.routes.TransitionRouteStatus(ctx, routeID, open, enums.RouteStatusDelivered, map[string]any{
		"total_miles":  miles.Round(2),
		"completed_at": eventTime(lastEnd),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete route")
	}
	if !moved {
		return nil
	}

	res, err := s.settlement.SettleRoute(ctx, routeID)
	switch {
	case err == nil:
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"transfer_id":  res.TransferID,
			"amount_cents": res.AmountCents,
		}), "route settled")
	case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed):
		s.logg.Info(ctx, "route settlement already in progress")
	default:
		s.logg.Error(s.logg.WithField(ctx, "payout_status", string(res.Status)), "route settlement failed", err)
	}
	return nil
}
