package server

import (
	"skillswap/internal/models"
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateSkillRequest is the body of POST /api/skills.
type CreateSkillRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Category string `json:"category" validate:"required,max=50"`
	Icon     string `json:"icon" validate:"max=50"`
}

// AddOfferedSkillRequest is the body of POST /api/user/skills/offered.
type AddOfferedSkillRequest struct {
	SkillID          uint   `json:"skill_id" validate:"required"`
	ProficiencyLevel string `json:"proficiency_level" validate:"omitempty,oneof=beginner intermediate advanced expert"`
}

// AddWantedSkillRequest is the body of POST /api/user/skills/wanted.
type AddWantedSkillRequest struct {
	SkillID uint   `json:"skill_id" validate:"required"`
	Urgency string `json:"urgency" validate:"omitempty,oneof=low medium high"`
}

// GetSkills handles GET /api/skills
// @Summary List skills
// @Tags skills
// @Produce json
// @Success 200 {array} models.Skill
// @Router /skills [get]
func (s *Server) GetSkills(c *fiber.Ctx) error {
	skills, err := s.skillService.List(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(skills)
}

// SearchSkills handles GET /api/skills/search
// @Summary Search skills
// @Tags skills
// @Produce json
// @Param q query string true "Name substring"
// @Success 200 {array} models.Skill
// @Router /skills/search [get]
func (s *Server) SearchSkills(c *fiber.Ctx) error {
	skills, err := s.skillService.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(skills)
}

// CreateSkill handles POST /api/skills
// @Summary Add a skill to the catalogue
// @Tags skills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateSkillRequest true "Skill"
// @Success 201 {object} models.Skill
// @Failure 409 {object} models.ErrorResponse
// @Router /skills [post]
func (s *Server) CreateSkill(c *fiber.Ctx) error {
	var req CreateSkillRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	skill, err := s.skillService.Create(c.UserContext(), service.CreateSkillInput{
		Name:     req.Name,
		Category: req.Category,
		Icon:     req.Icon,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(skill)
}

// GetOfferedSkills handles GET /api/user/skills/offered
// @Summary Own offered skills
// @Tags user-skills
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserSkillOffered
// @Router /user/skills/offered [get]
func (s *Server) GetOfferedSkills(c *fiber.Ctx) error {
	entries, err := s.userSkillService.ListOffered(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if entries == nil {
		entries = []models.UserSkillOffered{}
	}
	return c.JSON(entries)
}

// AddOfferedSkill handles POST /api/user/skills/offered
// @Summary Offer a skill
// @Tags user-skills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AddOfferedSkillRequest true "Skill and level"
// @Success 201 {object} models.UserSkillOffered
// @Failure 409 {object} models.ErrorResponse
// @Router /user/skills/offered [post]
func (s *Server) AddOfferedSkill(c *fiber.Ctx) error {
	var req AddOfferedSkillRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	entry, err := s.userSkillService.AddOffered(c.UserContext(), currentUserID(c), req.SkillID,
		models.ProficiencyLevel(req.ProficiencyLevel))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// RemoveOfferedSkill handles DELETE /api/user/skills/offered/:skillId
// @Summary Stop offering a skill
// @Tags user-skills
// @Security BearerAuth
// @Param skillId path int true "Skill ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /user/skills/offered/{skillId} [delete]
func (s *Server) RemoveOfferedSkill(c *fiber.Ctx) error {
	skillID, err := parseID(c, "skillId")
	if err != nil {
		return nil
	}
	if err := s.userSkillService.RemoveOffered(c.UserContext(), currentUserID(c), skillID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetWantedSkills handles GET /api/user/skills/wanted
// @Summary Own wanted skills
// @Tags user-skills
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserSkillWanted
// @Router /user/skills/wanted [get]
func (s *Server) GetWantedSkills(c *fiber.Ctx) error {
	entries, err := s.userSkillService.ListWanted(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if entries == nil {
		entries = []models.UserSkillWanted{}
	}
	return c.JSON(entries)
}

// AddWantedSkill handles POST /api/user/skills/wanted
// @Summary Want a skill
// @Tags user-skills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AddWantedSkillRequest true "Skill and urgency"
// @Success 201 {object} models.UserSkillWanted
// @Failure 409 {object} models.ErrorResponse
// @Router /user/skills/wanted [post]
func (s *Server) AddWantedSkill(c *fiber.Ctx) error {
	var req AddWantedSkillRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	entry, err := s.userSkillService.AddWanted(c.UserContext(), currentUserID(c), req.SkillID,
		models.Urgency(req.Urgency))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// RemoveWantedSkill handles DELETE /api/user/skills/wanted/:skillId
// @Summary Stop wanting a skill
// @Tags user-skills
// @Security BearerAuth
// @Param skillId path int true "Skill ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /user/skills/wanted/{skillId} [delete]
func (s *Server) RemoveWantedSkill(c *fiber.Ctx) error {
	skillID, err := parseID(c, "skillId")
	if err != nil {
		return nil
	}
	if err := s.userSkillService.RemoveWanted(c.UserContext(), currentUserID(c), skillID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
