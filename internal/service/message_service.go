package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"skillswap/internal/cache"
	"skillswap/internal/models"
	"skillswap/internal/repository"
)

// MaxMessageLength bounds a thread message in characters.
const MaxMessageLength = 2000

// SendMessageInput is the payload of POST /api/messages.
type SendMessageInput struct {
	SwapRequestID uint
	Content       string
}

// MessageNotifier is told about stored messages.
type MessageNotifier interface {
	MessageSent(swap models.SwapRequest, msg models.Message)
}

// MessageService manages the per-swap message thread.
type MessageService struct {
	messages repository.MessageRepository
	swaps    repository.SwapRequestRepository
	cache    *cache.Store
	notifier MessageNotifier
}

// NewMessageService returns a new MessageService.
func NewMessageService(messages repository.MessageRepository, swaps repository.SwapRequestRepository, store *cache.Store, notifier MessageNotifier) *MessageService {
	if store == nil {
		store = cache.NewStore(nil)
	}
	return &MessageService{messages: messages, swaps: swaps, cache: store, notifier: notifier}
}

func (s *MessageService) participantSwap(ctx context.Context, swapID, userID uint) (*models.SwapRequest, error) {
	swap, err := s.swaps.GetByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !swap.IsParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this swap request")
	}
	return swap, nil
}

// Send appends a message from senderID to the thread.
func (s *MessageService) Send(ctx context.Context, senderID uint, in SendMessageInput) (*models.MessageWithSender, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Message content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, models.NewValidationError("Message too long (max 2000 characters)")
	}

	swap, err := s.participantSwap(ctx, in.SwapRequestID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{SwapRequestID: swap.ID, SenderID: senderID, Content: content}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	msg.Sender = swap.Requester
	if senderID == swap.ReceiverID {
		msg.Sender = swap.Receiver
	}

	s.cache.InvalidateSwapMessages(ctx, swap.ID)
	if s.notifier != nil {
		s.notifier.MessageSent(*swap, *msg)
	}

	out := msg.WithSender()
	return &out, nil
}

// ListForSwap returns the thread oldest first and marks messages addressed
// to actorID as read.
func (s *MessageService) ListForSwap(ctx context.Context, swapID, actorID uint) ([]models.MessageWithSender, error) {
	if _, err := s.participantSwap(ctx, swapID, actorID); err != nil {
		return nil, err
	}

	marked, err := s.messages.MarkRead(ctx, swapID, actorID)
	if err != nil {
		return nil, err
	}
	if marked > 0 {
		s.cache.InvalidateSwapMessages(ctx, swapID)
	}

	var out []models.MessageWithSender
	err = s.cache.CacheAside(ctx, cache.SwapMessagesKey(swapID), &out, cache.SwapMessagesTTL, func() error {
		rows, err := s.messages.ListForSwap(ctx, swapID)
		if err != nil {
			return err
		}
		out = make([]models.MessageWithSender, 0, len(rows))
		for i := range rows {
			out = append(out, rows[i].WithSender())
		}
		return nil
	})
	return out, err
}

// CanJoin reports whether userID may subscribe to the swap room.
func (s *MessageService) CanJoin(ctx context.Context, swapID, userID uint) error {
	_, err := s.participantSwap(ctx, swapID, userID)
	return err
}
