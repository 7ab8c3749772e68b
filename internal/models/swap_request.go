package models

import "time"

// SwapStatus is the lifecycle state of a swap request.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusAccepted  SwapStatus = "accepted"
	SwapStatusRejected  SwapStatus = "rejected"
	SwapStatusCompleted SwapStatus = "completed"
)

// SwapStatuses lists every status, in lifecycle order.
var SwapStatuses = []SwapStatus{SwapStatusPending, SwapStatusAccepted, SwapStatusRejected, SwapStatusCompleted}

// Valid reports whether s is a known status.
func (s SwapStatus) Valid() bool {
	for _, known := range SwapStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s SwapStatus) Terminal() bool {
	_, ok := swapTransitions[s]
	return !ok
}

// SwapRole is the part a user plays in a swap request.
type SwapRole int

const (
	SwapRoleNone SwapRole = iota
	SwapRoleRequester
	SwapRoleReceiver
)

// transition (from -> to) and the roles allowed to perform it.
var swapTransitions = map[SwapStatus]map[SwapStatus][]SwapRole{
	SwapStatusPending: {
		SwapStatusAccepted: {SwapRoleReceiver},
		SwapStatusRejected: {SwapRoleReceiver},
	},
	SwapStatusAccepted: {
		SwapStatusCompleted: {SwapRoleRequester, SwapRoleReceiver},
	},
}

// TransitionRoles returns the roles allowed to move a request from one status
// to another. ok is false when the pair is not a defined transition.
func TransitionRoles(from, to SwapStatus) (roles []SwapRole, ok bool) {
	next, found := swapTransitions[from]
	if !found {
		return nil, false
	}
	roles, ok = next[to]
	return roles, ok
}

// SwapRequest is an offer to exchange one skill for another.
type SwapRequest struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	RequesterID      uint       `gorm:"not null;index" json:"requester_id"`
	ReceiverID       uint       `gorm:"not null;index" json:"receiver_id"`
	OfferedSkillID   uint       `gorm:"not null" json:"offered_skill_id"`
	RequestedSkillID uint       `gorm:"not null" json:"requested_skill_id"`
	Message          string     `gorm:"type:text" json:"message"`
	PreferredTime    string     `gorm:"size:50" json:"preferred_time"`
	Status           SwapStatus `gorm:"type:varchar(20);default:'pending';index:idx_swap_requests_status" json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Relationships
	Requester      User  `gorm:"foreignKey:RequesterID;constraint:OnDelete:CASCADE" json:"-"`
	Receiver       User  `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE" json:"-"`
	OfferedSkill   Skill `gorm:"foreignKey:OfferedSkillID;constraint:OnDelete:CASCADE" json:"-"`
	RequestedSkill Skill `gorm:"foreignKey:RequestedSkillID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (SwapRequest) TableName() string {
	return "swap_requests"
}

// RoleOf reports the part userID plays in the request.
func (s *SwapRequest) RoleOf(userID uint) SwapRole {
	switch userID {
	case s.RequesterID:
		return SwapRoleRequester
	case s.ReceiverID:
		return SwapRoleReceiver
	default:
		return SwapRoleNone
	}
}

// IsParticipant reports whether userID is the requester or the receiver.
func (s *SwapRequest) IsParticipant(userID uint) bool {
	return s.RoleOf(userID) != SwapRoleNone
}

// OtherParticipant returns the counterpart of userID. It returns 0 for a
// non-participant.
func (s *SwapRequest) OtherParticipant(userID uint) uint {
	switch userID {
	case s.RequesterID:
		return s.ReceiverID
	case s.ReceiverID:
		return s.RequesterID
	default:
		return 0
	}
}

// SwapRequestWithParticipants is the API shape of a swap request joined with
// both users and both skills.
type SwapRequestWithParticipants struct {
	ID             uint       `json:"id"`
	Status         SwapStatus `json:"status"`
	Message        string     `json:"message"`
	PreferredTime  string     `json:"preferred_time"`
	Requester      PublicUser `json:"requester"`
	Receiver       PublicUser `json:"receiver"`
	OfferedSkill   Skill      `json:"offered_skill"`
	RequestedSkill Skill      `json:"requested_skill"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// WithParticipants converts a preloaded SwapRequest into its API shape.
func (s *SwapRequest) WithParticipants() SwapRequestWithParticipants {
	return SwapRequestWithParticipants{
		ID:             s.ID,
		Status:         s.Status,
		Message:        s.Message,
		PreferredTime:  s.PreferredTime,
		Requester:      s.Requester.Public(),
		Receiver:       s.Receiver.Public(),
		OfferedSkill:   s.OfferedSkill,
		RequestedSkill: s.RequestedSkill,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
