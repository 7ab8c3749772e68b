package server

import (
	"skillswap/internal/models"
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateFeedbackRequest is the body of POST /api/feedback.
type CreateFeedbackRequest struct {
	SwapRequestID uint   `json:"swap_request_id" validate:"required"`
	RevieweeID    uint   `json:"reviewee_id" validate:"required"`
	Rating        int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment       string `json:"comment" validate:"max=2000"`
}

// SendMessageRequest is the body of POST /api/messages.
type SendMessageRequest struct {
	SwapRequestID uint   `json:"swap_request_id" validate:"required"`
	Content       string `json:"content" validate:"required"`
}

// CreateFeedback handles POST /api/feedback
// @Summary Rate the other participant of a completed swap
// @Tags feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateFeedbackRequest true "Rating"
// @Success 201 {object} models.FeedbackWithReviewer
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /feedback [post]
func (s *Server) CreateFeedback(c *fiber.Ctx) error {
	var req CreateFeedbackRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	fb, err := s.feedbackService.Create(c.UserContext(), currentUserID(c), service.CreateFeedbackInput{
		SwapRequestID: req.SwapRequestID,
		RevieweeID:    req.RevieweeID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fb)
}

// GetUserFeedback handles GET /api/users/:userId/feedback
// @Summary Feedback a user received
// @Tags feedback
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {array} models.FeedbackWithReviewer
// @Router /users/{userId}/feedback [get]
func (s *Server) GetUserFeedback(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	feedback, err := s.feedbackService.ListForUser(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(feedback)
}

// SendMessage handles POST /api/messages
// @Summary Message the other participant of a swap request
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SendMessageRequest true "Message"
// @Success 201 {object} models.MessageWithSender
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.messageService.Send(c.UserContext(), currentUserID(c), service.SendMessageInput{
		SwapRequestID: req.SwapRequestID,
		Content:       req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}
