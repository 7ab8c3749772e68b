// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"skillswap/internal/database"
	"skillswap/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory sqlite database with the full schema.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, or every pooled connection sees its own empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// NewTestRedis starts miniredis and returns a client bound to it.
func NewTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// CreateUser inserts a public user named after username.
func CreateUser(t testing.TB, db *gorm.DB, username string, availability ...string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@example.com", username),
		Password:     "hashed",
		FirstName:    username,
		IsPublic:     true,
		Availability: datatypes.JSONSlice[string](availability),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateSkill inserts a skill.
func CreateSkill(t testing.TB, db *gorm.DB, name, category string) *models.Skill {
	t.Helper()
	s := &models.Skill{Name: name, Category: category}
	require.NoError(t, db.Create(s).Error)
	return s
}

// Offer adds skill to the user's offered list.
func Offer(t testing.TB, db *gorm.DB, user *models.User, skill *models.Skill) {
	t.Helper()
	require.NoError(t, db.Omit("User", "Skill").Create(&models.UserSkillOffered{
		UserID: user.ID, SkillID: skill.ID, ProficiencyLevel: models.ProficiencyIntermediate,
	}).Error)
}

// Want adds skill to the user's wanted list.
func Want(t testing.TB, db *gorm.DB, user *models.User, skill *models.Skill) {
	t.Helper()
	require.NoError(t, db.Omit("User", "Skill").Create(&models.UserSkillWanted{
		UserID: user.ID, SkillID: skill.ID, Urgency: models.UrgencyMedium,
	}).Error)
}

// SwapFixture is the canonical two-user exchange: A offers Guitar and wants
// Python, B offers Python and wants Guitar.
type SwapFixture struct {
	A, B, C        *models.User
	Guitar, Python *models.Skill
}

// NewSwapFixture seeds SwapFixture into db.
func NewSwapFixture(t testing.TB, db *gorm.DB) *SwapFixture {
	t.Helper()
	f := &SwapFixture{
		A:      CreateUser(t, db, "alice", "weekends"),
		B:      CreateUser(t, db, "bob", "evenings"),
		C:      CreateUser(t, db, "carol"),
		Guitar: CreateSkill(t, db, "Guitar", "Music"),
		Python: CreateSkill(t, db, "Python", "Programming"),
	}
	Offer(t, db, f.A, f.Guitar)
	Want(t, db, f.A, f.Python)
	Offer(t, db, f.B, f.Python)
	Want(t, db, f.B, f.Guitar)
	return f
}

// CreateSwap inserts a swap from A to B (A offers Guitar, asks for Python)
// in the given status.
func (f *SwapFixture) CreateSwap(t testing.TB, db *gorm.DB, status models.SwapStatus) *models.SwapRequest {
	t.Helper()
	swap := &models.SwapRequest{
		RequesterID:      f.A.ID,
		ReceiverID:       f.B.ID,
		OfferedSkillID:   f.Guitar.ID,
		RequestedSkillID: f.Python.ID,
		Status:           status,
	}
	require.NoError(t, db.Omit("Requester", "Receiver", "OfferedSkill", "RequestedSkill").Create(swap).Error)
	return swap
}
