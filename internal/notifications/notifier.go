package notifications

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"

	"skillswap/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	roomChannelPrefix = "swap:room:"
	exceptMarker      = ":except:"
)

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// SwapRoomChannel derives the Redis channel name for a swap room.
func SwapRoomChannel(swapID uint) string {
	return roomChannelPrefix + strconv.FormatUint(uint64(swapID), 10)
}

// SwapRoomExceptChannel derives the channel for room events that skip one user.
func SwapRoomExceptChannel(swapID, userID uint) string {
	return SwapRoomChannel(swapID) + exceptMarker + strconv.FormatUint(uint64(userID), 10)
}

// parseRoomChannel splits a room channel into the swap ID and the skipped
// user, which is 0 when nobody is skipped.
func parseRoomChannel(channel string) (swapID, exceptID uint, err error) {
	rest := strings.TrimPrefix(channel, roomChannelPrefix)
	room, except, found := strings.Cut(rest, exceptMarker)
	id, err := strconv.ParseUint(room, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return uint(id), 0, nil
	}
	skip, err := strconv.ParseUint(except, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return uint(id), uint(skip), nil
}

// Notifier publishes payloads into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether a Redis client backs the notifier.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishUser sends a payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishRoom sends a payload to a swap room channel.
func (n *Notifier) PublishRoom(ctx context.Context, swapID uint, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, SwapRoomChannel(swapID), payload).Err()
}

// PublishRoomExcept sends a payload to a swap room, skipping userID's sockets.
func (n *Notifier) PublishRoomExcept(ctx context.Context, swapID, userID uint, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, SwapRoomExceptChannel(swapID, userID), payload).Err()
}

// StartPatternSubscriber subscribes to every user and room channel and calls
// onMessage for each payload until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", roomChannelPrefix+"*")
	// wait for the subscription so publishes right after start are not lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
