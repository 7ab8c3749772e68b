package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"skillswap/internal/middleware"
	"skillswap/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the login for every generated member.
const DefaultPassword = "password123"

var availabilityTags = []string{"weekdays", "weekends", "mornings", "afternoons", "evenings"}

// Options configures the seeder.
type Options struct {
	NumUsers int
	NumSwaps int
	// Clean removes members and their activity first. Skills are kept.
	Clean bool
	// RandSeed makes a run reproducible; zero picks a time based seed.
	RandSeed int64
	Password string
}

// Summary counts what a run created.
type Summary struct {
	Skills   int
	Users    int
	Swaps    int
	Messages int
	Feedback int
}

// Seed loads the built-in catalogue and generates members, swaps, chat
// and feedback over it.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	if opts.Clean {
		if err := Clean(ctx, db); err != nil {
			return nil, err
		}
	}

	catalogue, err := BuiltInCatalogue()
	if err != nil {
		return nil, err
	}
	created, err := Skills(ctx, db, catalogue)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Skills: created}

	var skills []models.Skill
	if err := db.WithContext(ctx).Order("id").Find(&skills).Error; err != nil {
		return nil, err
	}
	if len(skills) < 2 {
		return nil, errors.New("at least two skills are needed to seed swaps")
	}

	f, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}

	users, err := f.CreateUsers(ctx, opts.NumUsers, skills)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	summary.Users = len(users)

	if err := f.CreateSwaps(ctx, users, opts.NumSwaps, summary); err != nil {
		return nil, fmt.Errorf("failed to create swaps: %w", err)
	}

	middleware.Logger.InfoContext(ctx, "database seeded",
		slog.Int("skills", summary.Skills),
		slog.Int("users", summary.Users),
		slog.Int("swaps", summary.Swaps),
		slog.Int("messages", summary.Messages),
		slog.Int("feedback", summary.Feedback),
	)
	return summary, nil
}

// Clean removes every member and everything hanging off them.
func Clean(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Feedback{},
			&models.Message{},
			&models.SwapRequest{},
			&models.UserSkillWanted{},
			&models.UserSkillOffered{},
			&models.Upload{},
			&models.User{},
		} {
			if err := tx.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("clean %T: %w", model, err)
			}
		}
		return nil
	})
}

// Factory builds members and their activity with fake data.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	hash  string
	now   time.Time
}

// NewFactory hashes the shared password once and seeds the faker.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	password := opts.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, faker: gofakeit.New(seed), hash: string(hash), now: time.Now().UTC()}, nil
}

// BuildUser returns an unsaved member. n keeps usernames and emails unique
// within a run.
func (f *Factory) BuildUser(n int) *models.User {
	first := f.faker.FirstName()
	handle := strings.ToLower(strings.ReplaceAll(first, " ", "")) + fmt.Sprint(n)

	avail := make([]string, 0, 2)
	for _, tag := range availabilityTags {
		if f.faker.Number(0, 2) == 0 {
			avail = append(avail, tag)
		}
	}
	if len(avail) == 0 {
		avail = append(avail, f.faker.RandomString(availabilityTags))
	}

	joined := f.now.Add(-time.Duration(f.faker.Number(1, 120)) * 24 * time.Hour)
	return &models.User{
		Username:     handle,
		Email:        handle + "@skillswap.local",
		Password:     f.hash,
		FirstName:    first,
		LastName:     f.faker.LastName(),
		Title:        f.faker.JobTitle(),
		Location:     f.faker.City(),
		IsPublic:     f.faker.Number(0, 9) > 0,
		Availability: datatypes.JSONSlice[string](avail),
		CreatedAt:    joined,
		LastSeenAt:   &joined,
	}
}

// CreateUsers persists n members, each offering two skills and wanting one
// they do not offer.
func (f *Factory) CreateUsers(ctx context.Context, n int, skills []models.Skill) ([]*models.User, error) {
	var start int64
	if err := f.db.WithContext(ctx).Unscoped().Model(&models.User{}).Count(&start).Error; err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		u := f.BuildUser(int(start) + i + 1)
		err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(u).Error; err != nil {
				return err
			}
			picks := f.faker.Rand.Perm(len(skills))
			for _, idx := range picks[:2] {
				if err := tx.Omit(clause.Associations).Create(&models.UserSkillOffered{
					UserID:           u.ID,
					SkillID:          skills[idx].ID,
					ProficiencyLevel: f.proficiency(),
				}).Error; err != nil {
					return err
				}
			}
			if len(picks) < 3 {
				return nil
			}
			want := skills[picks[len(picks)-1]]
			return tx.Omit(clause.Associations).Create(&models.UserSkillWanted{
				UserID:  u.ID,
				SkillID: want.ID,
				Urgency: f.urgency(),
			}).Error
		})
		if err != nil {
			return nil, fmt.Errorf("create user %s: %w", u.Username, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// CreateSwaps pairs random members. Accepted and completed swaps get a chat
// thread; completed swaps get feedback from the requester.
func (f *Factory) CreateSwaps(ctx context.Context, users []*models.User, n int, summary *Summary) error {
	if len(users) < 2 {
		return nil
	}

	offered := make(map[uint][]uint, len(users))
	var rows []models.UserSkillOffered
	if err := f.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		offered[r.UserID] = append(offered[r.UserID], r.SkillID)
	}

	for i := 0; i < n; i++ {
		pair := f.faker.Rand.Perm(len(users))
		requester, receiver := users[pair[0]], users[pair[1]]
		give, take := offered[requester.ID], offered[receiver.ID]
		if len(give) == 0 || len(take) == 0 {
			continue
		}

		status := f.status()
		created := f.now.Add(-time.Duration(f.faker.Number(1, 60)) * 24 * time.Hour)
		swap := &models.SwapRequest{
			RequesterID:      requester.ID,
			ReceiverID:       receiver.ID,
			OfferedSkillID:   give[f.faker.Number(0, len(give)-1)],
			RequestedSkillID: take[f.faker.Number(0, len(take)-1)],
			Message:          f.faker.Sentence(12),
			PreferredTime:    f.faker.RandomString(availabilityTags),
			Status:           status,
			CreatedAt:        created,
			UpdatedAt:        created,
		}
		if err := f.db.WithContext(ctx).Omit(clause.Associations).Create(swap).Error; err != nil {
			return err
		}
		summary.Swaps++

		if status != models.SwapStatusAccepted && status != models.SwapStatusCompleted {
			continue
		}
		for j, lines := 0, f.faker.Number(2, 6); j < lines; j++ {
			sender := requester.ID
			if j%2 == 1 {
				sender = receiver.ID
			}
			msg := &models.Message{
				SwapRequestID: swap.ID,
				SenderID:      sender,
				Content:       f.faker.Sentence(f.faker.Number(4, 14)),
				IsRead:        status == models.SwapStatusCompleted,
				CreatedAt:     created.Add(time.Duration(j+1) * time.Hour),
			}
			if err := f.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error; err != nil {
				return err
			}
			summary.Messages++
		}

		if status == models.SwapStatusCompleted {
			fb := &models.Feedback{
				SwapRequestID: swap.ID,
				ReviewerID:    requester.ID,
				RevieweeID:    receiver.ID,
				Rating:        f.faker.Number(3, 5),
				Comment:       f.faker.Sentence(10),
			}
			if err := f.db.WithContext(ctx).Omit(clause.Associations).Create(fb).Error; err != nil {
				return err
			}
			summary.Feedback++
		}
	}
	return nil
}

func (f *Factory) status() models.SwapStatus {
	return models.SwapStatuses[f.faker.Number(0, len(models.SwapStatuses)-1)]
}

func (f *Factory) proficiency() models.ProficiencyLevel {
	levels := []models.ProficiencyLevel{
		models.ProficiencyBeginner, models.ProficiencyIntermediate,
		models.ProficiencyAdvanced, models.ProficiencyExpert,
	}
	return levels[f.faker.Number(0, len(levels)-1)]
}

func (f *Factory) urgency() models.Urgency {
	levels := []models.Urgency{models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh}
	return levels[f.faker.Number(0, len(levels)-1)]
}
