package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gatherly/eventchat/internal/chat"
)

const (
	roomKeyPrefix   = "chat:room:"
	notifyKeyPrefix = "chat:notify:"
)

// Redis is a RoomStore backed by one sorted set per room, scored by the
// server-assigned millisecond timestamp. Every successful append refreshes
// the key's TTL to the remaining distance to the lock boundary and
// publishes on the room's notify channel so long-poll handlers on other
// nodes wake up.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
	now    func() time.Time
}

// NewRedis constructs a store on an already-connected client.
func NewRedis(client *redis.Client, log *zap.Logger) *Redis {
	return &Redis{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// NotifyChannel returns the pub/sub channel carrying append notifications
// for the given event.
func NotifyChannel(eventID string) string {
	return notifyKeyPrefix + eventID
}

func roomKey(eventID string) string {
	return roomKeyPrefix + eventID
}

func (s *Redis) Append(ctx context.Context, ev chat.Event, msg chat.Message) (chat.Message, error) {
	now := s.now()
	if chat.Locked(ev, now) {
		return chat.Message{}, chat.ErrChatLocked
	}

	key := roomKey(ev.ID)
	ts := now.UnixMilli()

	// Read the newest score first so timestamps stay strictly increasing
	// within the room even under same-millisecond appends.
	last, err := s.client.ZRevRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil && err != redis.Nil {
		return chat.Message{}, fmt.Errorf("store: read last score: %w", err)
	}
	if len(last) > 0 && ts <= int64(last[0].Score) {
		ts = int64(last[0].Score) + 1
	}

	msg.ID = chat.NewMessageID(now)
	msg.Timestamp = ts

	data, err := json.Marshal(msg)
	if err != nil {
		return chat.Message{}, fmt.Errorf("store: encode message: %w", err)
	}

	ttl := chat.RoomTTL(ev, now)
	if ttl <= 0 {
		ttl = time.Second
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ts), Member: data})
	pipe.Expire(ctx, key, ttl)
	pipe.Publish(ctx, NotifyChannel(ev.ID), strconv.FormatInt(ts, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return chat.Message{}, fmt.Errorf("store: append: %w", err)
	}

	return msg, nil
}

func (s *Redis) Range(ctx context.Context, ev chat.Event, since int64, limit int64) ([]chat.Message, error) {
	if chat.Locked(ev, s.now()) {
		return nil, nil
	}

	by := &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since, 10),
		Max: "+inf",
	}
	if limit > 0 {
		by.Count = limit
	}

	raw, err := s.client.ZRangeByScore(ctx, roomKey(ev.ID), by).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("store: range: %w", err)
	}

	out := make([]chat.Message, 0, len(raw))
	for _, member := range raw {
		var msg chat.Message
		if err := json.Unmarshal([]byte(member), &msg); err != nil {
			s.log.Warn("skipping undecodable room member",
				zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

var _ RoomStore = (*Redis)(nil)
