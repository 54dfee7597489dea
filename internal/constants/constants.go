package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

// Recheck fee and provider bounds, in the smallest currency unit.
// The bounds are imposed by the payment provider, not by us, and are
// checked before any order is created.
const (
	RecheckFee        int64 = 10000 // 100.00
	ProviderMinAmount int64 = 100
	ProviderMaxAmount int64 = 50000000
	PaymentCurrency         = "INR"
)

const (
	FlaggedListLimit = 200
)
