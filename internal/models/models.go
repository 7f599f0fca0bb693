package models

import (
	"time"
)

// Account is a wallet holding both currencies. The system account is an
// ordinary row with Kind "system"; it has special meaning, not special shape.
type Account struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Kind        string    `json:"kind"` // "user" or "system"
	CoinsMicros int64     `json:"coins_micros"`
	ChipsMicros int64     `json:"chips_micros"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transaction is one immutable audit record of a value movement. Rows are
// append-only; balances are stored on accounts, never derived from here.
type Transaction struct {
	ID           int64     `json:"id"`
	SenderID     int64     `json:"sender_id"`
	RecipientID  int64     `json:"recipient_id"`
	AmountMicros int64     `json:"amount_micros"` // signed only for "adjustment" rows
	Currency     string    `json:"currency"`
	Kind         string    `json:"kind"` // "transfer", "exchange", "purchase", "adjustment"
	ReferenceID  string    `json:"reference_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Listing is a marketplace offer priced in coins. Status is monotonic:
// active -> sold or active -> removed, both terminal.
type Listing struct {
	ID          int64     `json:"id"`
	SellerID    int64     `json:"seller_id"`
	BuyerID     *int64    `json:"buyer_id,omitempty"`
	Description string    `json:"description"`
	PriceMicros int64     `json:"price_micros"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Rating is one peer score event, append-only.
type Rating struct {
	ID        int64     `json:"id"`
	RaterID   int64     `json:"rater_id"`
	RatedID   int64     `json:"rated_id"`
	Value     int       `json:"value"` // +1 or -1
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry is one row of the daily rating leaderboard.
type LeaderboardEntry struct {
	AccountID   int64  `json:"account_id"`
	DisplayName string `json:"display_name"`
	Points      int64  `json:"points"`
}

// BalanceEntry is one row of the top-balances view.
type BalanceEntry struct {
	AccountID   int64  `json:"account_id"`
	DisplayName string `json:"display_name"`
	CoinsMicros int64  `json:"coins_micros"`
}

// ChipHolding is one row of the admin chip-holdings view.
type ChipHolding struct {
	AccountID   int64  `json:"account_id"`
	DisplayName string `json:"display_name"`
	ChipsMicros int64  `json:"chips_micros"`
}
