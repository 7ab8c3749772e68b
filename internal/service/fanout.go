package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"skillswap/internal/cache"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/notifications"
	"skillswap/internal/observability"
)

// DefaultFanoutTimeout bounds each asynchronous delivery.
const DefaultFanoutTimeout = 10 * time.Second

// Realtime pushes events to connected sockets.
type Realtime interface {
	NotifyUser(ctx context.Context, userID uint, eventType string, payload interface{}) error
	NotifyRoom(ctx context.Context, swapID uint, eventType string, payload interface{}) error
	IsOnline(ctx context.Context, userID uint) bool
	InRoom(swapID, userID uint) bool
}

// Mailer is the subset of the email service the fan-out drives.
type Mailer interface {
	SendWelcome(ctx context.Context, user models.User) error
	SendSwapRequest(ctx context.Context, swap models.SwapRequest) error
	SendStatusUpdate(ctx context.Context, recipient, actor models.User, swap models.SwapRequest) error
	SendNewMessage(ctx context.Context, recipient, sender models.User, content string, swapID uint) error
	SendFeedbackReminder(ctx context.Context, recipient, other models.User, swapID uint) error
	SendWeeklyDigest(ctx context.Context, user models.User, stats models.DigestStats) error
}

// SwapEvent is the payload of new_swap_request and swap_update.
type SwapEvent struct {
	SwapRequest models.SwapRequestWithParticipants `json:"swap_request"`
	ActorID     uint                               `json:"actor_id"`
}

// MessageEvent is the payload of new_message.
type MessageEvent struct {
	Message models.MessageWithSender `json:"message"`
}

// NotificationEvent is the payload of the generic notification event.
type NotificationEvent struct {
	Kind          string `json:"kind"`
	Title         string `json:"title"`
	SwapRequestID uint   `json:"swap_request_id,omitempty"`
}

// SwapEmailKey identifies one status email to one recipient.
func SwapEmailKey(swapID uint, status models.SwapStatus, targetUserID uint) string {
	return fmt.Sprintf("swap:%d:%s:%d", swapID, status, targetUserID)
}

// Fanout delivers side effects of committed writes. Every method returns
// immediately; delivery runs on its own goroutine with a bounded context and
// failures are logged, never returned.
type Fanout struct {
	realtime Realtime
	mailer   Mailer
	claims   *cache.Store
	timeout  time.Duration

	wg sync.WaitGroup
}

// NewFanout creates a fan-out. Any dependency may be nil to disable that channel.
func NewFanout(realtime Realtime, mailer Mailer, claims *cache.Store) *Fanout {
	if claims == nil {
		claims = cache.NewStore(nil)
	}
	return &Fanout{realtime: realtime, mailer: mailer, claims: claims, timeout: DefaultFanoutTimeout}
}

// Wait blocks until every in-flight delivery finished.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

// Go runs fn detached from any request with the fan-out timeout.
func (f *Fanout) Go(name string, fn func(ctx context.Context)) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				middleware.Logger.Error("panic in fan-out", slog.String("task", name),
					slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (f *Fanout) push(ctx context.Context, userID uint, eventType string, payload interface{}) {
	if f.realtime == nil {
		return
	}
	if err := f.realtime.NotifyUser(ctx, userID, eventType, payload); err != nil {
		observability.Notifications.WithLabelValues("realtime", "failed").Inc()
		middleware.Logger.WarnContext(ctx, "realtime push failed",
			slog.Uint64("user_id", uint64(userID)), slog.String("event", eventType), slog.String("error", err.Error()))
		return
	}
	observability.Notifications.WithLabelValues("realtime", "sent").Inc()
}

// mail sends once per idempotency key. A failed send gives the key back so
// a later trigger can retry.
func (f *Fanout) mail(ctx context.Context, key string, send func(Mailer) error) {
	if f.mailer == nil {
		return
	}
	claim := cache.NotificationKey(key)
	if !f.claims.ClaimOnce(ctx, claim, cache.NotificationTTL) {
		observability.Notifications.WithLabelValues("email", "duplicate").Inc()
		middleware.Logger.DebugContext(ctx, "email already sent", slog.String("key", key))
		return
	}
	if err := send(f.mailer); err != nil {
		f.claims.Release(ctx, claim)
		middleware.Logger.WarnContext(ctx, "email delivery failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// SwapCreated notifies the receiver of a new request.
func (f *Fanout) SwapCreated(swap models.SwapRequest) {
	f.Go("swap_created", func(ctx context.Context) {
		f.push(ctx, swap.ReceiverID, notifications.EventNewSwapRequest, SwapEvent{
			SwapRequest: swap.WithParticipants(),
			ActorID:     swap.RequesterID,
		})
		f.mail(ctx, SwapEmailKey(swap.ID, swap.Status, swap.ReceiverID), func(m Mailer) error {
			return m.SendSwapRequest(ctx, swap)
		})
	})
}

// SwapStatusChanged notifies the participant who did not act.
func (f *Fanout) SwapStatusChanged(swap models.SwapRequest, actorID uint) {
	target := swap.OtherParticipant(actorID)
	recipient, actor := swap.Requester, swap.Receiver
	if target == swap.ReceiverID {
		recipient, actor = swap.Receiver, swap.Requester
	}

	f.Go("swap_status_changed", func(ctx context.Context) {
		f.push(ctx, target, notifications.EventSwapUpdate, SwapEvent{
			SwapRequest: swap.WithParticipants(),
			ActorID:     actorID,
		})
		f.mail(ctx, SwapEmailKey(swap.ID, swap.Status, target), func(m Mailer) error {
			return m.SendStatusUpdate(ctx, recipient, actor, swap)
		})
	})
}

// MessageSent pushes new_message to the swap room. A recipient who has not
// joined the room here gets a notification instead, and an email when they
// have no live socket at all.
func (f *Fanout) MessageSent(swap models.SwapRequest, msg models.Message) {
	recipientID := swap.OtherParticipant(msg.SenderID)
	recipient := swap.Requester
	if recipientID == swap.ReceiverID {
		recipient = swap.Receiver
	}
	event := MessageEvent{Message: msg.WithSender()}

	f.Go("message_sent", func(ctx context.Context) {
		if f.realtime != nil {
			if err := f.realtime.NotifyRoom(ctx, swap.ID, notifications.EventNewMessage, event); err != nil {
				middleware.Logger.WarnContext(ctx, "room push failed", slog.Uint64("swap_request_id", uint64(swap.ID)), slog.String("error", err.Error()))
			}
			if !f.realtime.InRoom(swap.ID, recipientID) {
				f.push(ctx, recipientID, notifications.EventNotification, NotificationEvent{
					Kind:          "message",
					Title:         fmt.Sprintf("New message from %s", msg.Sender.DisplayName()),
					SwapRequestID: swap.ID,
				})
			}
			if f.realtime.IsOnline(ctx, recipientID) {
				return
			}
		}
		f.mail(ctx, fmt.Sprintf("message:%d:%d", msg.ID, recipientID), func(m Mailer) error {
			return m.SendNewMessage(ctx, recipient, msg.Sender, msg.Content, swap.ID)
		})
	})
}

// FeedbackReceived tells the reviewee that feedback was left.
func (f *Fanout) FeedbackReceived(fb models.Feedback) {
	f.Go("feedback_received", func(ctx context.Context) {
		f.push(ctx, fb.RevieweeID, notifications.EventNotification, NotificationEvent{
			Kind:          "feedback",
			Title:         fmt.Sprintf("%s left you a %d-star review", fb.Reviewer.DisplayName(), fb.Rating),
			SwapRequestID: fb.SwapRequestID,
		})
	})
}

// Welcome sends the signup email.
func (f *Fanout) Welcome(user models.User) {
	f.Go("welcome", func(ctx context.Context) {
		f.mail(ctx, fmt.Sprintf("welcome:%d", user.ID), func(m Mailer) error {
			return m.SendWelcome(ctx, user)
		})
	})
}
