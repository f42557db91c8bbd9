package notifications

// Template identifiers understood by the SMS sender.
const (
	TemplatePickupStarted    = "pickup_started"
	TemplateServiceStarted   = "service_started"
	TemplateCrewArrived      = "crew_arrived"
	TemplateLoadingComplete  = "loading_complete"
	TemplateTermEndComplete  = "storage_term_end_complete"
	TemplateAccessComplete   = "storage_access_complete"
	TemplateRouteStarted     = "route_delivery_started"
	TemplateRouteArrived     = "route_driver_arrived"
	TemplateRouteDelivered   = "route_delivered"
	TemplateRouteFailed      = "route_delivery_failed"
	TemplateWorkerPayoutSent = "worker_payout_sent"
)

// Variable keys shared across templates.
const (
	VarCustomerName = "customer_name"
	VarWorkerName   = "worker_name"
	VarTrackingURL  = "tracking_url"
	VarFeedbackURL  = "feedback_url"
	VarSupportPhone = "support_phone"
	VarAmount       = "amount"
	VarAddress      = "address"
	VarReason       = "reason"
)
