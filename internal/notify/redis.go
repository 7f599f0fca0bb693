package notify

import (
	"context"
	"fmt"

	"github.com/gbwallet/ledger/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisNotifier publishes per-account messages on a redis pub/sub channel.
// Delivery is best effort: publish failures are logged and counted, never
// surfaced to the caller, because notifications ride on already-committed
// ledger operations.
type RedisNotifier struct {
	client redis.UniversalClient
}

func NewRedisNotifier(client redis.UniversalClient) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, accountID int64, message string) {
	channel := fmt.Sprintf("gbwallet:notify:%d", accountID)
	if err := n.client.Publish(ctx, channel, message).Err(); err != nil {
		observability.IncrementNotification("error")
		zap.L().Warn("notification publish failed",
			zap.Int64("account_id", accountID),
			zap.Error(err))
		return
	}
	observability.IncrementNotification("ok")
}
