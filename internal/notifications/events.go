package notifications

import (
	"encoding/json"
	"fmt"
)

// Server to client event types.
const (
	EventNewSwapRequest    = "new_swap_request"
	EventSwapUpdate        = "swap_update"
	EventNewMessage        = "new_message"
	EventNotification      = "notification"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventError             = "error"
)

// Client to server event types.
const (
	EventJoinSwapRoom  = "join_swap_room"
	EventLeaveSwapRoom = "leave_swap_room"
	EventSendMessage   = "send_message"
	EventTypingStart   = "typing_start"
	EventTypingStop    = "typing_stop"
)

// Event is the envelope for every frame pushed to a socket.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Encode serializes an event envelope.
func Encode(eventType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return data, nil
}

// ClientEvent is a frame received from a socket.
type ClientEvent struct {
	Type          string `json:"type"`
	SwapRequestID uint   `json:"swap_request_id"`
	Content       string `json:"content,omitempty"`
}

// TypingPayload is sent to the other members of a swap room.
type TypingPayload struct {
	SwapRequestID uint   `json:"swap_request_id"`
	UserID        uint   `json:"user_id"`
	Username      string `json:"username,omitempty"`
}

// ErrorPayload describes a refused client event.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
