package service

import (
	"context"
	"strings"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/repository"
)

const (
	defaultBrowseLimit = 10
	maxBrowseLimit     = 50
	defaultAdminLimit  = 50
	maxAdminLimit      = 200
)

// UserService serves profiles, the member directory and admin user actions.
type UserService struct {
	users      repository.UserRepository
	userSkills repository.UserSkillRepository
}

// UpdateProfileInput carries PATCH /api/users/me. Nil fields are left alone.
type UpdateProfileInput struct {
	FirstName    *string
	LastName     *string
	Title        *string
	Location     *string
	IsPublic     *bool
	Availability []string
}

func NewUserService(users repository.UserRepository, userSkills repository.UserSkillRepository) *UserService {
	return &UserService{users: users, userSkills: userSkills}
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Title != nil {
		user.Title = strings.TrimSpace(*in.Title)
	}
	if in.Location != nil {
		user.Location = strings.TrimSpace(*in.Location)
	}
	if in.IsPublic != nil {
		user.IsPublic = *in.IsPublic
	}
	if in.Availability != nil {
		user.Availability = normalizeTags(in.Availability)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetProfileImage stores the avatar URL on the user.
func (s *UserService) SetProfileImage(ctx context.Context, userID uint, url string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.ProfileImageURL = url
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Browse lists public members other than the caller with their skills.
func (s *UserService) Browse(ctx context.Context, filter models.BrowseFilter) ([]models.UserWithSkills, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultBrowseLimit
	}
	if filter.Limit > maxBrowseLimit {
		filter.Limit = maxBrowseLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Skill = strings.TrimSpace(filter.Skill)
	filter.Location = strings.TrimSpace(filter.Location)
	filter.Availability = normalizeTags(filter.Availability)

	users, err := s.users.Browse(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return []models.UserWithSkills{}, nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	offered, err := s.userSkills.ListOfferedForUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	wanted, err := s.userSkills.ListWantedForUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.UserWithSkills, 0, len(users))
	for _, u := range users {
		row := models.UserWithSkills{
			PublicUser:    u.Public(),
			SkillsOffered: offered[u.ID],
			SkillsWanted:  wanted[u.ID],
		}
		if row.SkillsOffered == nil {
			row.SkillsOffered = []models.UserSkillOffered{}
		}
		if row.SkillsWanted == nil {
			row.SkillsWanted = []models.UserSkillWanted{}
		}
		out = append(out, row)
	}
	return out, nil
}

// ListUsers is the admin listing, newest first.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	if limit <= 0 {
		limit = defaultAdminLimit
	}
	if limit > maxAdminLimit {
		limit = maxAdminLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, limit, offset)
}

func (s *UserService) SetAdmin(ctx context.Context, actorID, targetID uint, isAdmin bool) (*models.User, error) {
	if actorID == targetID && !isAdmin {
		return nil, models.NewValidationError("Admins cannot revoke their own admin role")
	}
	return s.users.SetAdmin(ctx, targetID, isAdmin)
}

// TouchLastSeen records activity; presence disconnects call it.
func (s *UserService) TouchLastSeen(ctx context.Context, userID uint) error {
	return s.users.TouchLastSeen(ctx, userID, time.Now().UTC())
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
