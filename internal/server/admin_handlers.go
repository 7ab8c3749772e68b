package server

import (
	"context"
	"errors"
	"time"

	"skillswap/internal/jobs"
	"skillswap/internal/middleware"
	"skillswap/internal/models"

	"github.com/gofiber/fiber/v2"
)

// manualJobTimeout bounds POST /api/admin/jobs/:name/run. The run is detached
// from the request deadline.
const manualJobTimeout = 5 * time.Minute

// UpdateAdminStatusRequest is the body of PATCH /api/admin/users/:userId/status.
type UpdateAdminStatusRequest struct {
	IsAdmin *bool `json:"is_admin" validate:"required"`
}

// AdminUsersResponse is one page of the admin user listing.
type AdminUsersResponse struct {
	Users  []models.User `json:"users"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// GetAdminStats handles GET /api/admin/stats
// @Summary Platform statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.PlatformStats
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/stats [get]
func (s *Server) GetAdminStats(c *fiber.Ctx) error {
	stats, err := s.statsService.Platform(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(stats)
}

// GetAdminUsers handles GET /api/admin/users
// @Summary All users, newest first
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} AdminUsersResponse
// @Router /admin/users [get]
func (s *Server) GetAdminUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 50, 200)
	users, total, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(AdminUsersResponse{Users: users, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// UpdateUserAdminStatus handles PATCH /api/admin/users/:userId/status
// @Summary Grant or revoke admin
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param request body UpdateAdminStatusRequest true "Admin flag"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{userId}/status [patch]
func (s *Server) UpdateUserAdminStatus(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req UpdateAdminStatusRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.SetAdmin(c.UserContext(), currentUserID(c), targetID, *req.IsAdmin)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetJobs handles GET /api/admin/jobs
// @Summary Scheduled jobs and their last run
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} jobs.JobStatus
// @Router /admin/jobs [get]
func (s *Server) GetJobs(c *fiber.Ctx) error {
	if s.jobs == nil {
		return c.JSON([]jobs.JobStatus{})
	}
	return c.JSON(s.jobs.Status())
}

// RunJob handles POST /api/admin/jobs/:name/run
// @Summary Run a job now
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param name path string true "Job name"
// @Success 200 {object} object{job=string,status=string}
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /admin/jobs/{name}/run [post]
func (s *Server) RunJob(c *fiber.Ctx) error {
	name := c.Params("name")
	if s.jobs == nil {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Job", name))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), manualJobTimeout)
	defer cancel()

	if err := s.jobs.RunJob(ctx, name); err != nil {
		if errors.Is(err, jobs.ErrUnknownJob) {
			return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Job", name))
		}
		middleware.Logger.ErrorContext(ctx, "manual job failed", "job", name, "error", err)
		return models.RespondWithError(c, fiber.StatusInternalServerError, &models.AppError{
			Code:    models.CodeInternal,
			Message: "Job failed",
			Err:     err,
		})
	}
	return c.JSON(fiber.Map{"job": name, "status": "completed"})
}

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
// @Summary Feature flags
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
