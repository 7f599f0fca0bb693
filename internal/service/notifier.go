package service

import "context"

// Notifier delivers out-of-band notices to the UI layer after settlement.
// Delivery is best effort; a failed notice never fails the operation that
// triggered it.
type Notifier interface {
	Notify(ctx context.Context, accountID int64, message string)
}

// NopNotifier discards all notices. Used in tests and when no sink is wired.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, accountID int64, message string) {}
