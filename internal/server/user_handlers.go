package server

import (
	"io"

	"skillswap/internal/cache"
	"skillswap/internal/models"
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UpdateProfileRequest is the body of PATCH /api/users/me. Omitted fields keep
// their current value.
type UpdateProfileRequest struct {
	FirstName    *string  `json:"first_name" validate:"omitempty,max=100"`
	LastName     *string  `json:"last_name" validate:"omitempty,max=100"`
	Title        *string  `json:"title" validate:"omitempty,max=150"`
	Location     *string  `json:"location" validate:"omitempty,max=150"`
	IsPublic     *bool    `json:"is_public"`
	Availability []string `json:"availability" validate:"omitempty,max=10,dive,min=1,max=30"`
}

// UpdateMyProfile handles PATCH /api/users/me
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [patch]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), currentUserID(c), service.UpdateProfileInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Title:        req.Title,
		Location:     req.Location,
		IsPublic:     req.IsPublic,
		Availability: req.Availability,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UploadAvatar handles POST /api/users/me/avatar
// @Summary Upload profile image
// @Description Multipart field "image"; stored as a 256px square WebP
// @Tags users
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image file"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	// one extra byte lets the service see oversize files
	content, err := io.ReadAll(io.LimitReader(src, s.config.UploadMaxBytes+1))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	user, err := s.avatarService.Upload(c.UserContext(), currentUserID(c), content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// BrowseUsers handles GET /api/users/browse
// @Summary Browse members
// @Description Public members other than the caller, with their skills
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param skill query string false "Skill name substring"
// @Param availability query string false "Comma separated availability tags"
// @Param location query string false "Location substring"
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.UserWithSkills
// @Router /users/browse [get]
func (s *Server) BrowseUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 10, 50)
	viewerID := currentUserID(c)
	filter := models.BrowseFilter{
		Skill:        c.Query("skill"),
		Availability: splitList(c.Query("availability")),
		Location:     c.Query("location"),
		ExcludeID:    viewerID,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}

	key := cache.BrowseKey(viewerID, string(c.Request().URI().QueryString()))
	return s.cachedJSON(c, key, cache.BrowseTTL, func() (interface{}, error) {
		return s.userService.Browse(c.UserContext(), filter)
	})
}
