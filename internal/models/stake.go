package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StakeStatus string

const (
	StakeStatusJoined         StakeStatus = "JOINED"
	StakeStatusProofSubmitted StakeStatus = "PROOF_SUBMITTED"
	StakeStatusVerified       StakeStatus = "VERIFIED"
	StakeStatusSettled        StakeStatus = "SETTLED"
	StakeStatusForfeited      StakeStatus = "FORFEITED"
)

// Rank orders stake statuses along the lifecycle. Transitions must only move
// to a strictly higher rank; SETTLED and FORFEITED are terminal.
func (s StakeStatus) Rank() int {
	switch s {
	case StakeStatusJoined:
		return 0
	case StakeStatusProofSubmitted:
		return 1
	case StakeStatusVerified:
		return 2
	case StakeStatusSettled, StakeStatusForfeited:
		return 3
	}
	return -1
}

func (s StakeStatus) Terminal() bool {
	return s == StakeStatusSettled || s == StakeStatusForfeited
}

type CustodyTransactionType string

const (
	CustodyTransactionTypeDeposit CustodyTransactionType = "DEPOSIT"
	CustodyTransactionTypeRelease CustodyTransactionType = "RELEASE"
)

type CustodyTransactionStatus string

const (
	CustodyTransactionStatusPending   CustodyTransactionStatus = "PENDING"
	CustodyTransactionStatusConfirmed CustodyTransactionStatus = "CONFIRMED"
	CustodyTransactionStatusFailed    CustodyTransactionStatus = "FAILED"
)

// Stake is one participant's paid commitment in one challenge. Created only
// after the join request is approved (the creator is auto-joined) and the
// custody deposit is confirmed.
type Stake struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ChallengeID   uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_stake_challenge_participant" json:"challenge_id"`
	ParticipantID uint            `gorm:"not null;index;uniqueIndex:idx_stake_challenge_participant" json:"participant_id"`
	StakeAmount   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"stake_amount"`
	Deadline      time.Time       `gorm:"not null" json:"deadline"`
	Status        StakeStatus     `gorm:"size:30;not null;default:JOINED;index" json:"status"`
	ProofURL      *string         `gorm:"size:500" json:"proof_url,omitempty"`
	ProofNote     *string         `gorm:"size:2000" json:"proof_note,omitempty"`
	SubmittedAt   *time.Time      `json:"submitted_at,omitempty"`
	VerifiedAt    *time.Time      `json:"verified_at,omitempty"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
	DepositTxHash *string         `gorm:"size:255" json:"deposit_tx_hash,omitempty"`
	ReleaseTxHash *string         `gorm:"size:255" json:"release_tx_hash,omitempty"`
	CreatedAt     time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Stake) TableName() string {
	return "stakes"
}

// ProofSubmitted is kept as a derived flag for API compatibility with clients
// that render it separately from the status label.
func (s *Stake) ProofSubmitted() bool {
	return s.ProofURL != nil
}

// StakeVote is one participant's endorsement of another participant's
// submitted proof. Set semantics: the unique index makes duplicate votes a
// no-op, so concurrent casts commute.
type StakeVote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StakeID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_vote_stake_voter" json:"stake_id"`
	VoterID   uint      `gorm:"not null;uniqueIndex:idx_vote_stake_voter" json:"voter_id"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (StakeVote) TableName() string {
	return "stake_votes"
}

// CustodyTransaction records one custody movement for a stake
type CustodyTransaction struct {
	ID              uuid.UUID                `gorm:"type:uuid;primaryKey" json:"id"`
	ChallengeID     uuid.UUID                `gorm:"type:uuid;not null;index" json:"challenge_id"`
	ParticipantID   uint                     `gorm:"not null;index" json:"participant_id"`
	TransactionType CustodyTransactionType   `gorm:"size:20;not null" json:"transaction_type"`
	Amount          decimal.Decimal          `gorm:"type:decimal(20,8);not null" json:"amount"`
	TxHash          *string                  `gorm:"size:255" json:"tx_hash"`
	Status          CustodyTransactionStatus `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	CreatedAt       time.Time                `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	ConfirmedAt     *time.Time               `json:"confirmed_at,omitempty"`
}

func (CustodyTransaction) TableName() string {
	return "custody_transactions"
}

// ParticipantStatistics aggregates a user's challenge history
type ParticipantStatistics struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalChallenges int64           `gorm:"default:0" json:"total_challenges"`
	Settled         int64           `gorm:"default:0" json:"settled"`
	Forfeited       int64           `gorm:"default:0" json:"forfeited"`
	TotalStaked     decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"total_staked"`
	TotalReclaimed  decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"total_reclaimed"`
	UpdatedAt       time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ParticipantStatistics) TableName() string {
	return "participant_statistics"
}

// SubmitProofRequest represents a proof submission
type SubmitProofRequest struct {
	ProofURL  string  `json:"proof_url" binding:"required"`
	ProofNote *string `json:"proof_note"`
}

// PayAndJoinRequest carries the custody deposit signature
type PayAndJoinRequest struct {
	Signature string `json:"signature" binding:"required"`
}

// CastVoteRequest identifies whose submission is being endorsed
type CastVoteRequest struct {
	SubmissionOwnerID uint `json:"submission_owner_id" binding:"required"`
}

// SubmissionState is the verification view of one participant's submission
type SubmissionState struct {
	Stake          *Stake `json:"stake"`
	Votes          int    `json:"votes"`
	EligibleVoters int    `json:"eligible_voters"`
	HasConsensus   bool   `json:"has_consensus"`
}
