package models

import "time"

// PlatformStats are the admin dashboard aggregates.
type PlatformStats struct {
	TotalUsers     int64                `json:"total_users"`
	TotalSwaps     int64                `json:"total_swaps"`
	AverageRating  float64              `json:"average_rating"`
	FlaggedContent int64                `json:"flagged_content"`
	SwapsByStatus  map[SwapStatus]int64 `json:"swaps_by_status"`
	GeneratedAt    time.Time            `json:"generated_at"`
}

// DigestStats summarize one user's week for the digest email.
type DigestStats struct {
	NewSwapRequests int64
	CompletedSwaps  int64
	NewSkills       int64
	SuggestedUsers  []User
}
