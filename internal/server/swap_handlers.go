package server

import (
	"skillswap/internal/models"
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateSwapRequestBody is the body of POST /api/swap-requests.
type CreateSwapRequestBody struct {
	ReceiverID       uint   `json:"receiver_id" validate:"required"`
	OfferedSkillID   uint   `json:"offered_skill_id" validate:"required"`
	RequestedSkillID uint   `json:"requested_skill_id" validate:"required"`
	Message          string `json:"message" validate:"max=1000"`
	PreferredTime    string `json:"preferred_time" validate:"max=50"`
}

// UpdateSwapStatusBody is the body of PATCH /api/swap-requests/:id/status.
type UpdateSwapStatusBody struct {
	Status string `json:"status" validate:"required,oneof=pending accepted rejected completed"`
}

// CreateSwapRequest handles POST /api/swap-requests
// @Summary Propose a skill swap
// @Tags swap-requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateSwapRequestBody true "Swap proposal"
// @Success 201 {object} models.SwapRequestWithParticipants
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /swap-requests [post]
func (s *Server) CreateSwapRequest(c *fiber.Ctx) error {
	var req CreateSwapRequestBody
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	swap, err := s.swapService.Create(c.UserContext(), service.CreateSwapRequestInput{
		RequesterID:      currentUserID(c),
		ReceiverID:       req.ReceiverID,
		OfferedSkillID:   req.OfferedSkillID,
		RequestedSkillID: req.RequestedSkillID,
		Message:          req.Message,
		PreferredTime:    req.PreferredTime,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(swap)
}

// GetSwapRequests handles GET /api/swap-requests
// @Summary Own swap requests
// @Description Requests the caller sent or received, newest first
// @Tags swap-requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, accepted, rejected or completed"
// @Success 200 {array} models.SwapRequestWithParticipants
// @Router /swap-requests [get]
func (s *Server) GetSwapRequests(c *fiber.Ctx) error {
	swaps, err := s.swapService.ListForUser(c.UserContext(), currentUserID(c), models.SwapStatus(c.Query("status")))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(swaps)
}

// GetSwapRequest handles GET /api/swap-requests/:id
// @Summary One swap request
// @Tags swap-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Success 200 {object} models.SwapRequestWithParticipants
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /swap-requests/{id} [get]
func (s *Server) GetSwapRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	swap, err := s.swapService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(swap.WithParticipants())
}

// UpdateSwapRequestStatus handles PATCH /api/swap-requests/:id/status
// @Summary Move a swap request through its lifecycle
// @Description pending to accepted or rejected by the receiver; accepted to completed by either participant
// @Tags swap-requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Param request body UpdateSwapStatusBody true "Target status"
// @Success 200 {object} models.SwapRequestWithParticipants
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /swap-requests/{id}/status [patch]
func (s *Server) UpdateSwapRequestStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req UpdateSwapStatusBody
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	swap, err := s.swapService.UpdateStatus(c.UserContext(), id, models.SwapStatus(req.Status), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(swap)
}

// GetSwapMessages handles GET /api/swap-requests/:id/messages
// @Summary Messages of a swap request
// @Description Oldest first; marks the caller's unread messages as read
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Success 200 {array} models.MessageWithSender
// @Failure 403 {object} models.ErrorResponse
// @Router /swap-requests/{id}/messages [get]
func (s *Server) GetSwapMessages(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	messages, err := s.messageService.ListForSwap(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(messages)
}
