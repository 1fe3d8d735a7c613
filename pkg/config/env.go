package config

const (
	EnvPrefix = "POSTERLOFT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "POSTERLOFT_APP_ENV"
	EnvPort     = "POSTERLOFT_APP_PORT"
	EnvLogLevel = "POSTERLOFT_LOG_LEVEL"

	EnvDBDSN  = "POSTERLOFT_DB_DSN"
	EnvDBHost = "POSTERLOFT_DB_HOST"
	EnvDBUser = "POSTERLOFT_DB_USER"
	EnvDBName = "POSTERLOFT_DB_NAME"

	EnvRedisURL = "POSTERLOFT_REDIS_URL"

	EnvAuthJWTSecret = "POSTERLOFT_AUTH_JWT_SECRET"
	EnvAuthIssuer    = "POSTERLOFT_AUTH_ISSUER"

	EnvStripeAPIKey        = "POSTERLOFT_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "POSTERLOFT_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv           = "POSTERLOFT_STRIPE_ENV"
	EnvStripeShipCountries = "POSTERLOFT_STRIPE_SHIPPING_COUNTRIES"

	EnvFulfillmentAPIKey           = "POSTERLOFT_PRODIGI_API_KEY"
	EnvFulfillmentTimeout          = "POSTERLOFT_PRODIGI_TIMEOUT"
	EnvFulfillmentSKUMap           = "POSTERLOFT_PRODIGI_SKU_MAP"
	EnvFulfillmentWebhookSecret    = "POSTERLOFT_FULFILLMENT_WEBHOOK_SECRET"
	EnvFulfillmentRequireSignature = "POSTERLOFT_FULFILLMENT_REQUIRE_SIGNATURE"

	EnvSendgridAPIKey = "POSTERLOFT_SENDGRID_API_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
