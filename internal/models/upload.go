package models

import "time"

// UploadKind classifies stored files.
type UploadKind string

const (
	UploadKindProfile UploadKind = "profile"
)

// Upload records a file written under the upload directory.
type Upload struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Path      string     `gorm:"not null;uniqueIndex" json:"path"`
	Kind      UploadKind `gorm:"type:varchar(20);not null" json:"kind"`
	SizeBytes int64      `json:"size_bytes"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Upload) TableName() string {
	return "uploads"
}
