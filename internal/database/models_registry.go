package database

import "skillswap/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Parents come before children so foreign keys resolve on first migration.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Skill{},
		&models.UserSkillOffered{},
		&models.UserSkillWanted{},
		&models.SwapRequest{},
		&models.Feedback{},
		&models.Message{},
		&models.Upload{},
	}
}
