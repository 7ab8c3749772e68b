package repository

import (
	"context"
	"strings"
	"time"

	"skillswap/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SkillRepository defines the interface for the shared skill catalogue
type SkillRepository interface {
	List(ctx context.Context) ([]models.Skill, error)
	Search(ctx context.Context, query string, limit int) ([]models.Skill, error)
	GetByID(ctx context.Context, id uint) (*models.Skill, error)
	Create(ctx context.Context, skill *models.Skill) error
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

type skillRepository struct {
	db *gorm.DB
}

// NewSkillRepository creates a new skill repository
func NewSkillRepository(db *gorm.DB) SkillRepository {
	return &skillRepository{db: db}
}

func (r *skillRepository) List(ctx context.Context) ([]models.Skill, error) {
	var skills []models.Skill
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&skills).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return skills, nil
}

func (r *skillRepository) Search(ctx context.Context, query string, limit int) ([]models.Skill, error) {
	limit, _ = clampPage(limit, 0)
	var skills []models.Skill
	err := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%").
		Order("name ASC").
		Limit(limit).
		Find(&skills).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return skills, nil
}

func (r *skillRepository) GetByID(ctx context.Context, id uint) (*models.Skill, error) {
	var skill models.Skill
	if err := r.db.WithContext(ctx).First(&skill, id).Error; err != nil {
		return nil, wrapLookupError(err, "Skill", id)
	}
	return &skill, nil
}

func (r *skillRepository) Create(ctx context.Context, skill *models.Skill) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(skill).Error; err != nil {
		return wrapWriteError(err, "a skill with that name already exists")
	}
	return nil
}

func (r *skillRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Skill{}).Where("created_at >= ?", since).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// UserSkillRepository manages the offered and wanted lists of users
type UserSkillRepository interface {
	ListOffered(ctx context.Context, userID uint) ([]models.UserSkillOffered, error)
	ListWanted(ctx context.Context, userID uint) ([]models.UserSkillWanted, error)
	ListOfferedForUsers(ctx context.Context, userIDs []uint) (map[uint][]models.UserSkillOffered, error)
	ListWantedForUsers(ctx context.Context, userIDs []uint) (map[uint][]models.UserSkillWanted, error)
	AddOffered(ctx context.Context, entry *models.UserSkillOffered) error
	AddWanted(ctx context.Context, entry *models.UserSkillWanted) error
	RemoveOffered(ctx context.Context, userID, skillID uint) error
	RemoveWanted(ctx context.Context, userID, skillID uint) error
	Offers(ctx context.Context, userID, skillID uint) (bool, error)
	Wants(ctx context.Context, userID, skillID uint) (bool, error)
}

type userSkillRepository struct {
	db *gorm.DB
}

// NewUserSkillRepository creates a new user skill repository
func NewUserSkillRepository(db *gorm.DB) UserSkillRepository {
	return &userSkillRepository{db: db}
}

func (r *userSkillRepository) ListOffered(ctx context.Context, userID uint) ([]models.UserSkillOffered, error) {
	var entries []models.UserSkillOffered
	err := r.db.WithContext(ctx).Preload("Skill").Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&entries).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

func (r *userSkillRepository) ListWanted(ctx context.Context, userID uint) ([]models.UserSkillWanted, error) {
	var entries []models.UserSkillWanted
	err := r.db.WithContext(ctx).Preload("Skill").Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&entries).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

func (r *userSkillRepository) ListOfferedForUsers(ctx context.Context, userIDs []uint) (map[uint][]models.UserSkillOffered, error) {
	out := make(map[uint][]models.UserSkillOffered, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var entries []models.UserSkillOffered
	if err := r.db.WithContext(ctx).Preload("Skill").Where("user_id IN ?", userIDs).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, e := range entries {
		out[e.UserID] = append(out[e.UserID], e)
	}
	return out, nil
}

func (r *userSkillRepository) ListWantedForUsers(ctx context.Context, userIDs []uint) (map[uint][]models.UserSkillWanted, error) {
	out := make(map[uint][]models.UserSkillWanted, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var entries []models.UserSkillWanted
	if err := r.db.WithContext(ctx).Preload("Skill").Where("user_id IN ?", userIDs).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, e := range entries {
		out[e.UserID] = append(out[e.UserID], e)
	}
	return out, nil
}

func (r *userSkillRepository) AddOffered(ctx context.Context, entry *models.UserSkillOffered) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(entry).Error; err != nil {
		return wrapWriteError(err, "skill is already in your offered list")
	}
	if err := r.db.WithContext(ctx).Preload("Skill").First(entry, entry.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userSkillRepository) AddWanted(ctx context.Context, entry *models.UserSkillWanted) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(entry).Error; err != nil {
		return wrapWriteError(err, "skill is already in your wanted list")
	}
	if err := r.db.WithContext(ctx).Preload("Skill").First(entry, entry.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userSkillRepository) RemoveOffered(ctx context.Context, userID, skillID uint) error {
	result := r.db.WithContext(ctx).Where("user_id = ? AND skill_id = ?", userID, skillID).Delete(&models.UserSkillOffered{})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Offered skill", skillID)
	}
	return nil
}

func (r *userSkillRepository) RemoveWanted(ctx context.Context, userID, skillID uint) error {
	result := r.db.WithContext(ctx).Where("user_id = ? AND skill_id = ?", userID, skillID).Delete(&models.UserSkillWanted{})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Wanted skill", skillID)
	}
	return nil
}

func (r *userSkillRepository) Offers(ctx context.Context, userID, skillID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UserSkillOffered{}).Where("user_id = ? AND skill_id = ?", userID, skillID).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userSkillRepository) Wants(ctx context.Context, userID, skillID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UserSkillWanted{}).Where("user_id = ? AND skill_id = ?", userID, skillID).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
