// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents a member of the SkillSwap platform.
type User struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	Username        string                      `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email           string                      `gorm:"uniqueIndex;not null" json:"email"`
	Password        string                      `gorm:"not null" json:"-"`
	FirstName       string                      `gorm:"size:100" json:"first_name"`
	LastName        string                      `gorm:"size:100" json:"last_name"`
	ProfileImageURL string                      `json:"profile_image_url"`
	Title           string                      `gorm:"size:150" json:"title"`
	Location        string                      `gorm:"size:150;index" json:"location"`
	IsPublic        bool                        `gorm:"default:true" json:"is_public"`
	Availability    datatypes.JSONSlice[string] `json:"availability"`
	IsAdmin         bool                        `gorm:"default:false" json:"is_admin"`
	LastSeenAt      *time.Time                  `json:"last_seen_at,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	DeletedAt       gorm.DeletedAt              `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// DisplayName is the first name when set, otherwise the username.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// PublicUser is the profile shape exposed to other members.
type PublicUser struct {
	ID              uint     `json:"id"`
	Username        string   `json:"username"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	ProfileImageURL string   `json:"profile_image_url"`
	Title           string   `json:"title"`
	Location        string   `json:"location"`
	Availability    []string `json:"availability"`
}

// Public strips private fields such as email and admin flag.
func (u User) Public() PublicUser {
	availability := []string(u.Availability)
	if availability == nil {
		availability = []string{}
	}
	return PublicUser{
		ID:              u.ID,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		ProfileImageURL: u.ProfileImageURL,
		Title:           u.Title,
		Location:        u.Location,
		Availability:    availability,
	}
}

// UserWithSkills is a browse result row.
type UserWithSkills struct {
	PublicUser
	SkillsOffered []UserSkillOffered `json:"skills_offered"`
	SkillsWanted  []UserSkillWanted  `json:"skills_wanted"`
}

// BrowseFilter narrows the public user directory.
type BrowseFilter struct {
	Skill        string
	Availability []string
	Location     string
	ExcludeID    uint
	Limit        int
	Offset       int
}
