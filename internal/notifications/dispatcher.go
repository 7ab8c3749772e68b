package notifications

import (
	"context"
	"slices"

	"skillswap/internal/middleware"
	"skillswap/internal/observability"
)

// Dispatcher routes events to users and rooms. With Redis every instance
// receives the event through its subscriber; without Redis delivery is local.
type Dispatcher struct {
	hub      *Hub
	notifier *Notifier
}

// NewDispatcher binds a hub to a notifier. The notifier may be nil.
func NewDispatcher(hub *Hub, notifier *Notifier) *Dispatcher {
	return &Dispatcher{hub: hub, notifier: notifier}
}

// NotifyUser pushes an event to every socket of userID.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID uint, eventType string, payload interface{}) error {
	data, err := Encode(eventType, payload)
	if err != nil {
		return err
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType).Inc()

	if d.notifier.Enabled() {
		err := d.notifier.PublishUser(ctx, userID, string(data))
		if err == nil {
			return nil
		}
		middleware.Logger.WarnContext(ctx, "publish failed, delivering locally", "user_id", userID, "event", eventType, "error", err)
	}
	d.hub.SendToUser(userID, data)
	return nil
}

// NotifyRoom pushes an event to every member of a swap room.
func (d *Dispatcher) NotifyRoom(ctx context.Context, swapID uint, eventType string, payload interface{}) error {
	data, err := Encode(eventType, payload)
	if err != nil {
		return err
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType).Inc()

	if d.notifier.Enabled() {
		err := d.notifier.PublishRoom(ctx, swapID, string(data))
		if err == nil {
			return nil
		}
		middleware.Logger.WarnContext(ctx, "publish failed, delivering locally", "swap_request_id", swapID, "event", eventType, "error", err)
	}
	d.hub.BroadcastRoom(swapID, data, nil)
	return nil
}

// NotifyRoomExcept pushes an event to every member of a swap room except the
// sockets of senderID.
func (d *Dispatcher) NotifyRoomExcept(ctx context.Context, swapID, senderID uint, eventType string, payload interface{}) error {
	data, err := Encode(eventType, payload)
	if err != nil {
		return err
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType).Inc()

	if d.notifier.Enabled() {
		err := d.notifier.PublishRoomExcept(ctx, swapID, senderID, string(data))
		if err == nil {
			return nil
		}
		middleware.Logger.WarnContext(ctx, "publish failed, delivering locally", "swap_request_id", swapID, "event", eventType, "error", err)
	}
	d.hub.BroadcastRoomExceptUser(swapID, data, senderID)
	return nil
}

// InRoom reports whether userID has a socket in the swap room on this instance.
func (d *Dispatcher) InRoom(swapID, userID uint) bool {
	return slices.Contains(d.hub.RoomUserIDs(swapID), userID)
}

// IsOnline reports whether the user has a live socket anywhere.
func (d *Dispatcher) IsOnline(ctx context.Context, userID uint) bool {
	return d.hub.IsOnline(ctx, userID)
}
