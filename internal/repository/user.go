package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"skillswap/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetAdmin(ctx context.Context, id uint, isAdmin bool) (*models.User, error)
	TouchLastSeen(ctx context.Context, id uint, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]models.User, int64, error)
	Browse(ctx context.Context, filter models.BrowseFilter) ([]models.User, error)
	ListActive(ctx context.Context, since time.Time) ([]models.User, error)
	CountInactive(ctx context.Context, since time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return wrapWriteError(err, "a user with that email or username already exists")
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, wrapLookupError(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", email)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return wrapWriteError(err, "a user with that email or username already exists")
	}
	return nil
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, isAdmin bool) (*models.User, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_admin", isAdmin)
	if result.Error != nil {
		return nil, models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", id)
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) TouchLastSeen(ctx context.Context, id uint, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_seen_at", at).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	limit, offset = clampPage(limit, offset)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

// Browse lists public users matching every filter that is set.
func (r *userRepository) Browse(ctx context.Context, f models.BrowseFilter) ([]models.User, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	q := r.db.WithContext(ctx).Model(&models.User{}).Where("users.is_public = ?", true)
	if f.ExcludeID != 0 {
		q = q.Where("users.id <> ?", f.ExcludeID)
	}
	if f.Location != "" {
		q = q.Where("LOWER(users.location) LIKE ?", "%"+strings.ToLower(f.Location)+"%")
	}
	if f.Skill != "" {
		sub := r.db.Table("user_skills_offered uso").
			Select("uso.user_id").
			Joins("JOIN skills s ON s.id = uso.skill_id").
			Where("LOWER(s.name) LIKE ?", "%"+strings.ToLower(f.Skill)+"%")
		q = q.Where("users.id IN (?)", sub)
	}
	if len(f.Availability) > 0 {
		// availability is a JSON array; match any quoted tag in its text form
		var clauses []string
		var args []interface{}
		for _, tag := range f.Availability {
			clauses = append(clauses, "CAST(users.availability AS TEXT) LIKE ?")
			args = append(args, `%"`+tag+`"%`)
		}
		q = q.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}

	var users []models.User
	if err := q.Order("users.created_at DESC, users.id DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ListActive(ctx context.Context, since time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("last_seen_at >= ? OR created_at >= ?", since, since).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) CountInactive(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("(last_seen_at IS NULL AND created_at < ?) OR last_seen_at < ?", since, since).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
