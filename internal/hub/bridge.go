package hub

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const notifyPattern = "chat:notify:*"

// RunRedisBridge relays append notifications published by the redis room
// store into the local hub, so long-poll handlers wake up for appends made
// on other nodes. Blocks until ctx is done.
func RunRedisBridge(ctx context.Context, client *redis.Client, h *Hub, log *zap.Logger) {
	sub := client.PSubscribe(ctx, notifyPattern)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Warn("redis notify subscription closed")
				return
			}
			eventID := strings.TrimPrefix(msg.Channel, "chat:notify:")
			h.Notify(eventID)
		}
	}
}
