package config

const (
	EnvPrefix = "STOWAWAY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STOWAWAY_APP_ENV"
	EnvPort     = "STOWAWAY_APP_PORT"
	EnvLogLevel = "STOWAWAY_LOG_LEVEL"

	EnvDBDSN  = "STOWAWAY_DB_DSN"
	EnvDBHost = "STOWAWAY_DB_HOST"
	EnvDBUser = "STOWAWAY_DB_USER"
	EnvDBName = "STOWAWAY_DB_NAME"

	EnvRedisURL = "STOWAWAY_REDIS_URL"

	EnvGCPProjectID             = "STOWAWAY_GCP_PROJECT_ID"
	EnvPubSubNotificationTopic  = "STOWAWAY_PUBSUB_NOTIFICATION_TOPIC"
	EnvStripeAPIKey             = "STOWAWAY_STRIPE_API_KEY"
	EnvSquareAccessToken        = "STOWAWAY_SQUARE_ACCESS_TOKEN"
	EnvSquareLocationID         = "STOWAWAY_SQUARE_LOCATION_ID"
	EnvDispatchWebhookSecret    = "STOWAWAY_DISPATCH_WEBHOOK_SECRET"
	EnvRatesMileage             = "STOWAWAY_RATES_MILEAGE"
	EnvPayoutPlatformFeePercent = "STOWAWAY_PAYOUT_PLATFORM_FEE_PERCENT"
	EnvPayoutMaxRetries         = "STOWAWAY_PAYOUT_MAX_RETRIES"

	EnvRoutePayoutBase    = "STOWAWAY_ROUTE_PAYOUT_BASE"
	EnvRoutePayoutStopFee = "STOWAWAY_ROUTE_PAYOUT_STOP_FEE"
	EnvRoutePayoutMileage = "STOWAWAY_ROUTE_PAYOUT_MILEAGE"
	EnvRoutePayoutHourly  = "STOWAWAY_ROUTE_PAYOUT_HOURLY"
)

// Multi-stop route payout formula: base + stopFee*stops + mileage*miles + hourly*hours.
const (
	DefaultRouteBaseRate    = "20.00"
	DefaultRouteStopFee     = "2.00"
	DefaultRouteMileageRate = "0.67"
	DefaultRouteTimeRate    = "14.00"
)

var legacyDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
