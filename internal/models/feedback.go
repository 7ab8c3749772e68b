package models

import "time"

// Feedback is a rating one participant leaves about the other after a
// completed swap.
type Feedback struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SwapRequestID uint      `gorm:"not null;uniqueIndex:idx_feedback_swap_reviewer" json:"swap_request_id"`
	ReviewerID    uint      `gorm:"not null;uniqueIndex:idx_feedback_swap_reviewer" json:"reviewer_id"`
	RevieweeID    uint      `gorm:"not null;index" json:"reviewee_id"`
	Rating        int       `gorm:"not null" json:"rating"`
	Comment       string    `gorm:"type:text" json:"comment"`
	CreatedAt     time.Time `json:"created_at"`

	SwapRequest *SwapRequest `gorm:"foreignKey:SwapRequestID;constraint:OnDelete:CASCADE" json:"-"`
	Reviewer    User         `gorm:"foreignKey:ReviewerID;constraint:OnDelete:CASCADE" json:"-"`
	Reviewee    User         `gorm:"foreignKey:RevieweeID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Feedback) TableName() string {
	return "feedback"
}

// FeedbackWithReviewer is a feedback row joined with its author.
type FeedbackWithReviewer struct {
	ID            uint       `json:"id"`
	SwapRequestID uint       `json:"swap_request_id"`
	RevieweeID    uint       `json:"reviewee_id"`
	Rating        int        `json:"rating"`
	Comment       string     `json:"comment"`
	Reviewer      PublicUser `json:"reviewer"`
	CreatedAt     time.Time  `json:"created_at"`
}

// WithReviewer converts a preloaded Feedback into its API shape.
func (f *Feedback) WithReviewer() FeedbackWithReviewer {
	return FeedbackWithReviewer{
		ID:            f.ID,
		SwapRequestID: f.SwapRequestID,
		RevieweeID:    f.RevieweeID,
		Rating:        f.Rating,
		Comment:       f.Comment,
		Reviewer:      f.Reviewer.Public(),
		CreatedAt:     f.CreatedAt,
	}
}
