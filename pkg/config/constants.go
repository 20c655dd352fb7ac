package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names so
// the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv           = "BUILDRELAY_APP_ENV"
	EnvPort             = "BUILDRELAY_APP_PORT"
	EnvDBDSN            = "BUILDRELAY_DB_DSN"
	EnvDBHost           = "BUILDRELAY_DB_HOST"
	EnvDBUser           = "BUILDRELAY_DB_USER"
	EnvDBName           = "BUILDRELAY_DB_NAME"
	EnvRedisURL         = "BUILDRELAY_REDIS_URL"
	EnvRetailerPartners = "BUILDRELAY_RETAILER_PARTNERS_JSON"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
