package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChallengeType string

const (
	ChallengeTypeIndividual ChallengeType = "INDIVIDUAL"
	ChallengeTypeCircle     ChallengeType = "CIRCLE"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// Challenge represents a staking commitment. Stake amount and deadline are fixed
// at creation; a challenge is never deleted and counts as closed once the
// deadline passes.
type Challenge struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID       uint            `gorm:"not null;index" json:"creator_id"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	Description     string          `gorm:"size:2000" json:"description"`
	StakeAmount     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"stake_amount"`
	Deadline        time.Time       `gorm:"not null" json:"deadline"`
	MaxParticipants int             `gorm:"not null" json:"max_participants"`
	TemplateURL     *string         `gorm:"size:500" json:"template_url,omitempty"`
	ChallengeType   ChallengeType   `gorm:"size:20;not null;default:INDIVIDUAL;index" json:"challenge_type"`
	CircleName      *string         `gorm:"size:255" json:"circle_name,omitempty"`
	CircleLevel     *string         `gorm:"size:50" json:"circle_level,omitempty"`
	CustodyAddress  string          `gorm:"size:255;not null" json:"custody_address"`
	CreatedAt       time.Time       `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// Closed reports whether the challenge deadline has passed. Derived, not stored.
func (c *Challenge) Closed(now time.Time) bool {
	return now.After(c.Deadline)
}

// ParticipationRequest is a prospective participant's ask to join a challenge.
// At most one exists per (challenge, applicant) pair, enforced by a unique index.
type ParticipationRequest struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ChallengeID uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_request_challenge_applicant" json:"challenge_id"`
	ApplicantID uint          `gorm:"not null;index;uniqueIndex:idx_request_challenge_applicant" json:"applicant_id"`
	Status      RequestStatus `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	DecidedByID *uint         `json:"decided_by_id,omitempty"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
	CreatedAt   time.Time     `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ParticipationRequest) TableName() string {
	return "participation_requests"
}

// CreateChallengeRequest represents a request to create a new challenge
type CreateChallengeRequest struct {
	ChallengeID     *uuid.UUID      `json:"challenge_id"` // from a custody reservation
	Title           string          `json:"title" binding:"required"`
	Description     string          `json:"description"`
	StakeAmount     decimal.Decimal `json:"stake_amount" binding:"required"`
	Deadline        time.Time       `json:"deadline" binding:"required"`
	MaxParticipants int             `json:"max_participants" binding:"required"`
	TemplateURL     *string         `json:"template_url"`
	ChallengeType   string          `json:"challenge_type"`
	CircleName      *string         `json:"circle_name"`
	CircleLevel     *string         `json:"circle_level"`
	Signature       string          `json:"signature" binding:"required"` // creator's custody deposit
}

// DecideRequestRequest represents the leader's decision on a join request
type DecideRequestRequest struct {
	Decision string `json:"decision" binding:"required"` // "approved" | "rejected"
}
