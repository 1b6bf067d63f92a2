package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "CAREHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "CAREHUB_APP_ENV"
	EnvPort      = "CAREHUB_APP_PORT"
	EnvDBDSN     = "CAREHUB_DB_DSN"
	EnvDBHost    = "CAREHUB_DB_HOST"
	EnvDBUser    = "CAREHUB_DB_USER"
	EnvDBName    = "CAREHUB_DB_NAME"
	EnvRedisURL  = "CAREHUB_REDIS_URL"
	EnvJWTSecret = "CAREHUB_JWT_SECRET"
	EnvJWTIssuer = "CAREHUB_JWT_ISSUER"
	EnvUseSQLite = "CAREHUB_USE_SQLITE"

	EnvLedgerDefaultEligibility = "CAREHUB_LEDGER_DEFAULT_LOAN_ELIGIBILITY"
	EnvLedgerInterestRate       = "CAREHUB_LEDGER_LOAN_INTEREST_RATE"
	EnvLedgerLoanTermDays       = "CAREHUB_LEDGER_LOAN_TERM_DAYS"
)
