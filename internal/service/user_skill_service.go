package service

import (
	"context"

	"skillswap/internal/cache"
	"skillswap/internal/models"
	"skillswap/internal/repository"
)

// UserSkillService manages the offered and wanted lists.
type UserSkillService struct {
	userSkills repository.UserSkillRepository
	skills     repository.SkillRepository
	cache      *cache.Store
}

// NewUserSkillService returns a new UserSkillService.
func NewUserSkillService(userSkills repository.UserSkillRepository, skills repository.SkillRepository, store *cache.Store) *UserSkillService {
	if store == nil {
		store = cache.NewStore(nil)
	}
	return &UserSkillService{userSkills: userSkills, skills: skills, cache: store}
}

func (s *UserSkillService) ListOffered(ctx context.Context, userID uint) ([]models.UserSkillOffered, error) {
	var entries []models.UserSkillOffered
	err := s.cache.CacheAside(ctx, cache.UserSkillsKey(userID, models.SkillsOffered), &entries, cache.UserSkillsTTL, func() error {
		var err error
		entries, err = s.userSkills.ListOffered(ctx, userID)
		return err
	})
	return entries, err
}

func (s *UserSkillService) ListWanted(ctx context.Context, userID uint) ([]models.UserSkillWanted, error) {
	var entries []models.UserSkillWanted
	err := s.cache.CacheAside(ctx, cache.UserSkillsKey(userID, models.SkillsWanted), &entries, cache.UserSkillsTTL, func() error {
		var err error
		entries, err = s.userSkills.ListWanted(ctx, userID)
		return err
	})
	return entries, err
}

// AddOffered puts a catalogue skill on the user's offered list.
func (s *UserSkillService) AddOffered(ctx context.Context, userID, skillID uint, level models.ProficiencyLevel) (*models.UserSkillOffered, error) {
	if level == "" {
		level = models.ProficiencyIntermediate
	}
	if !level.Valid() {
		return nil, models.NewValidationError("proficiency_level must be beginner, intermediate, advanced or expert")
	}
	if _, err := s.skills.GetByID(ctx, skillID); err != nil {
		return nil, err
	}

	entry := &models.UserSkillOffered{UserID: userID, SkillID: skillID, ProficiencyLevel: level}
	if err := s.userSkills.AddOffered(ctx, entry); err != nil {
		return nil, err
	}
	s.cache.InvalidateUserSkills(ctx, userID)
	return entry, nil
}

// AddWanted puts a catalogue skill on the user's wanted list.
func (s *UserSkillService) AddWanted(ctx context.Context, userID, skillID uint, urgency models.Urgency) (*models.UserSkillWanted, error) {
	if urgency == "" {
		urgency = models.UrgencyMedium
	}
	if !urgency.Valid() {
		return nil, models.NewValidationError("urgency must be low, medium or high")
	}
	if _, err := s.skills.GetByID(ctx, skillID); err != nil {
		return nil, err
	}

	entry := &models.UserSkillWanted{UserID: userID, SkillID: skillID, Urgency: urgency}
	if err := s.userSkills.AddWanted(ctx, entry); err != nil {
		return nil, err
	}
	s.cache.InvalidateUserSkills(ctx, userID)
	return entry, nil
}

func (s *UserSkillService) RemoveOffered(ctx context.Context, userID, skillID uint) error {
	if err := s.userSkills.RemoveOffered(ctx, userID, skillID); err != nil {
		return err
	}
	s.cache.InvalidateUserSkills(ctx, userID)
	return nil
}

func (s *UserSkillService) RemoveWanted(ctx context.Context, userID, skillID uint) error {
	if err := s.userSkills.RemoveWanted(ctx, userID, skillID); err != nil {
		return err
	}
	s.cache.InvalidateUserSkills(ctx, userID)
	return nil
}
