package service

import (
	"context"
	"strings"

	"skillswap/internal/cache"
	"skillswap/internal/models"
	"skillswap/internal/repository"
)

// MaxSkillSearchResults caps search responses.
const MaxSkillSearchResults = 20

// CreateSkillInput is the payload of POST /api/skills.
type CreateSkillInput struct {
	Name     string
	Category string
	Icon     string
}

// SkillService serves the shared skill catalogue.
type SkillService struct {
	skills repository.SkillRepository
	cache  *cache.Store
}

// NewSkillService returns a new SkillService.
func NewSkillService(skills repository.SkillRepository, store *cache.Store) *SkillService {
	if store == nil {
		store = cache.NewStore(nil)
	}
	return &SkillService{skills: skills, cache: store}
}

// List returns every skill ordered by name.
func (s *SkillService) List(ctx context.Context) ([]models.Skill, error) {
	var skills []models.Skill
	err := s.cache.CacheAside(ctx, cache.AllSkillsKey, &skills, cache.AllSkillsTTL, func() error {
		var err error
		skills, err = s.skills.List(ctx)
		return err
	})
	return skills, err
}

// Search matches names case-insensitively. A blank query returns no results.
func (s *SkillService) Search(ctx context.Context, query string) ([]models.Skill, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Skill{}, nil
	}

	var skills []models.Skill
	err := s.cache.CacheAside(ctx, cache.SkillSearchKey(query), &skills, cache.SkillSearchTTL, func() error {
		var err error
		skills, err = s.skills.Search(ctx, query, MaxSkillSearchResults)
		return err
	})
	return skills, err
}

// Create adds a skill to the catalogue.
func (s *SkillService) Create(ctx context.Context, in CreateSkillInput) (*models.Skill, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	if name == "" || category == "" {
		return nil, models.NewValidationError("name and category are required")
	}
	if len(name) > 100 {
		return nil, models.NewValidationError("Skill name too long (max 100 characters)")
	}
	if len(category) > 50 || len(in.Icon) > 50 {
		return nil, models.NewValidationError("Category and icon are limited to 50 characters")
	}

	skill := &models.Skill{Name: name, Category: category, Icon: strings.TrimSpace(in.Icon)}
	if err := s.skills.Create(ctx, skill); err != nil {
		return nil, err
	}
	s.cache.InvalidateSkills(ctx)
	return skill, nil
}

// Warm refills the catalogue cache.
func (s *SkillService) Warm(ctx context.Context) error {
	skills, err := s.skills.List(ctx)
	if err != nil {
		return err
	}
	return s.cache.SetJSON(ctx, cache.AllSkillsKey, skills, cache.AllSkillsTTL)
}
