package domain

// DefaultSystemAccountID is the default id of the system account, the
// counterparty of every exchange and admin mint/burn. Overridable via config.
const DefaultSystemAccountID int64 = -1

const (
	AccountKindUser   = "user"
	AccountKindSystem = "system"

	CurrencyCoin = "GB"
	CurrencyChip = "CHIP"

	TxKindTransfer   = "transfer"
	TxKindExchange   = "exchange"
	TxKindPurchase   = "purchase"
	TxKindAdjustment = "adjustment"

	ListingStatusActive  = "active"
	ListingStatusSold    = "sold"
	ListingStatusRemoved = "removed"

	RatingUp   = 1
	RatingDown = -1
)

// ValidCurrency reports whether c names one of the two ledger currencies.
func ValidCurrency(c string) bool {
	return c == CurrencyCoin || c == CurrencyChip
}
