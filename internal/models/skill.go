package models

import "time"

// Skill is a named capability shared across all users.
type Skill struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Category  string    `gorm:"size:50;not null;index" json:"category"`
	Icon      string    `gorm:"size:50" json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Skill) TableName() string {
	return "skills"
}

// ProficiencyLevel qualifies an offered skill.
type ProficiencyLevel string

const (
	ProficiencyBeginner     ProficiencyLevel = "beginner"
	ProficiencyIntermediate ProficiencyLevel = "intermediate"
	ProficiencyAdvanced     ProficiencyLevel = "advanced"
	ProficiencyExpert       ProficiencyLevel = "expert"
)

// Valid reports whether p is a known level.
func (p ProficiencyLevel) Valid() bool {
	switch p {
	case ProficiencyBeginner, ProficiencyIntermediate, ProficiencyAdvanced, ProficiencyExpert:
		return true
	}
	return false
}

// Urgency qualifies a wanted skill.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// UserSkillOffered links a user to a skill they can teach.
type UserSkillOffered struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	UserID           uint             `gorm:"not null;uniqueIndex:idx_user_skill_offered" json:"user_id"`
	SkillID          uint             `gorm:"not null;uniqueIndex:idx_user_skill_offered" json:"skill_id"`
	ProficiencyLevel ProficiencyLevel `gorm:"type:varchar(20);default:'intermediate'" json:"proficiency_level"`
	CreatedAt        time.Time        `json:"created_at"`

	User  *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Skill Skill `gorm:"foreignKey:SkillID;constraint:OnDelete:CASCADE" json:"skill"`
}

// TableName specifies the table name for GORM
func (UserSkillOffered) TableName() string {
	return "user_skills_offered"
}

// UserSkillWanted links a user to a skill they want to learn.
type UserSkillWanted struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_skill_wanted" json:"user_id"`
	SkillID   uint      `gorm:"not null;uniqueIndex:idx_user_skill_wanted" json:"skill_id"`
	Urgency   Urgency   `gorm:"type:varchar(20);default:'medium'" json:"urgency"`
	CreatedAt time.Time `json:"created_at"`

	User  *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Skill Skill `gorm:"foreignKey:SkillID;constraint:OnDelete:CASCADE" json:"skill"`
}

// TableName specifies the table name for GORM
func (UserSkillWanted) TableName() string {
	return "user_skills_wanted"
}

// SkillDirection selects the offered or wanted list.
type SkillDirection string

const (
	SkillsOffered SkillDirection = "offered"
	SkillsWanted  SkillDirection = "wanted"
)
