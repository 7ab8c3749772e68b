package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/notifications"
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var typingRule = middleware.Rule{Name: "typing", Limit: 10, Window: 10 * time.Second, Policy: middleware.FailOpen}

// WebSocketHandler serves GET /ws. Every socket receives the user's own
// notifications; joining a swap room adds its messages and typing events.
func (s *Server) WebSocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"unauthorized"}}`))
			_ = conn.Close()
			return
		}

		ctx := middleware.WithUserID(context.Background(), userID)
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "websocket user lookup failed", "error", err)
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "websocket registration refused", "error", err)
			if data, encErr := notifications.Encode(notifications.EventError, notifications.ErrorPayload{Message: err.Error()}); encErr == nil {
				_ = conn.WriteMessage(websocket.TextMessage, data)
			}
			_ = conn.Close()
			return
		}

		client.IncomingHandler = func(c *notifications.Client, raw []byte) {
			s.handleClientEvent(ctx, c, user, raw)
		}

		go client.WritePump()
		client.ReadPump()

		if s.userService != nil {
			if err := s.userService.TouchLastSeen(ctx, userID); err != nil {
				middleware.Logger.WarnContext(ctx, "failed to record last seen", "error", err)
			}
		}
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		return upgrade(c)
	}
}

func (s *Server) handleClientEvent(parent context.Context, c *notifications.Client, user *models.User, raw []byte) {
	var ev notifications.ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		sendError(c, models.NewValidationError("Invalid message format"))
		return
	}

	ctx, cancel := context.WithTimeout(parent, s.config.RequestTimeout())
	defer cancel()

	switch ev.Type {
	case notifications.EventJoinSwapRoom:
		if ev.SwapRequestID == 0 {
			sendError(c, models.NewValidationError("swap_request_id is required"))
			return
		}
		if err := s.messageService.CanJoin(ctx, ev.SwapRequestID, user.ID); err != nil {
			sendError(c, err)
			return
		}
		s.hub.JoinRoom(c, ev.SwapRequestID)

	case notifications.EventLeaveSwapRoom:
		s.hub.LeaveRoom(c, ev.SwapRequestID)

	case notifications.EventSendMessage:
		allowed, err := s.rateLimiter.Allow(ctx, middleware.MessageRule, fmt.Sprintf("user:%d", user.ID))
		if err == nil && !allowed {
			sendError(c, &models.AppError{Code: models.CodeRateLimited, Message: "Rate limit exceeded. Please wait a moment."})
			return
		}
		// delivery to the room happens in the message fan-out
		if _, err := s.messageService.Send(ctx, user.ID, service.SendMessageInput{
			SwapRequestID: ev.SwapRequestID,
			Content:       ev.Content,
		}); err != nil {
			sendError(c, err)
		}

	case notifications.EventTypingStart, notifications.EventTypingStop:
		if !s.hub.InRoom(c, ev.SwapRequestID) {
			sendError(c, models.NewForbiddenError("Join the swap room first"))
			return
		}
		if allowed, err := s.rateLimiter.Allow(ctx, typingRule, fmt.Sprintf("user:%d", user.ID)); err == nil && !allowed {
			return
		}
		eventType := notifications.EventUserTyping
		if ev.Type == notifications.EventTypingStop {
			eventType = notifications.EventUserStoppedTyping
		}
		payload := notifications.TypingPayload{
			SwapRequestID: ev.SwapRequestID,
			UserID:        user.ID,
			Username:      user.Username,
		}
		if err := s.realtime.NotifyRoomExcept(ctx, ev.SwapRequestID, user.ID, eventType, payload); err != nil {
			middleware.Logger.WarnContext(ctx, "typing broadcast failed", "error", err)
		}

	default:
		sendError(c, models.NewValidationError("Unknown event type: "+ev.Type))
	}
}

func sendError(c *notifications.Client, err error) {
	payload := notifications.ErrorPayload{Message: "Internal server error", Code: models.CodeInternal}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		payload = notifications.ErrorPayload{Message: appErr.Message, Code: appErr.Code}
	}
	data, encErr := notifications.Encode(notifications.EventError, payload)
	if encErr != nil {
		return
	}
	c.TrySend(data)
}
