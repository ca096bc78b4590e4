package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"commitfi/internal/events"
	"commitfi/internal/models"
	"commitfi/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChallengeService manages the challenge registry
type ChallengeService struct {
	repo    *repository.Repository
	custody CustodyClient
	bus     *events.Bus
}

func NewChallengeService(repo *repository.Repository, custody CustodyClient, bus *events.Bus) *ChallengeService {
	return &ChallengeService{
		repo:    repo,
		custody: custody,
		bus:     bus,
	}
}

// ReserveCustody mints a challenge ID and returns the custody address derived
// from it, so the creator can deposit before calling CreateChallenge. No state
// is written; the derivation is deterministic and the ID is only bound once
// CreateChallenge persists it.
func (cs *ChallengeService) ReserveCustody(ctx context.Context) (uuid.UUID, string, error) {
	challengeID := uuid.New()
	custodyAddress, err := cs.custody.DeriveCustodyAddress(challengeID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to derive custody address: %w", err)
	}
	return challengeID, custodyAddress, nil
}

// CreateChallenge validates and persists a new challenge. The creator is
// auto-joined as the first participant, so the request must carry the
// creator's confirmed custody deposit, paid to the address returned by
// ReserveCustody for the request's challenge ID.
func (cs *ChallengeService) CreateChallenge(
	ctx context.Context,
	creatorID uint,
	req *models.CreateChallengeRequest,
) (*models.Challenge, error) {
	if req.StakeAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: stake amount must be positive", ErrValidation)
	}
	if !req.Deadline.After(time.Now()) {
		return nil, fmt.Errorf("%w: deadline must be in the future", ErrValidation)
	}
	if req.MaxParticipants < 1 {
		return nil, fmt.Errorf("%w: max participants must be at least 1", ErrValidation)
	}

	challengeType := models.ChallengeTypeIndividual
	if req.ChallengeType == string(models.ChallengeTypeCircle) || req.ChallengeType == "circle" {
		challengeType = models.ChallengeTypeCircle
		if req.CircleName == nil || *req.CircleName == "" {
			return nil, fmt.Errorf("%w: circle name required for circle challenges", ErrValidation)
		}
	}

	challengeID := uuid.New()
	if req.ChallengeID != nil && *req.ChallengeID != uuid.Nil {
		challengeID = *req.ChallengeID
		_, err := cs.repo.GetChallengeByID(ctx, challengeID)
		if err == nil {
			return nil, fmt.Errorf("%w: challenge id already in use", ErrValidation)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check challenge id: %w", err)
		}
	}

	custodyAddress, err := cs.custody.DeriveCustodyAddress(challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive custody address: %w", err)
	}

	// The creator pays up front; verify before any record exists
	creatorWallet, err := cs.repo.GetUserWalletAddress(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get creator wallet: %w", err)
	}

	confirmed, err := cs.custody.VerifyDeposit(ctx, req.Signature, creatorWallet, custodyAddress, req.StakeAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if !confirmed {
		return nil, fmt.Errorf("%w: creator deposit not confirmed", ErrPaymentFailed)
	}

	challenge := &models.Challenge{
		ID:              challengeID,
		CreatorID:       creatorID,
		Title:           req.Title,
		Description:     req.Description,
		StakeAmount:     req.StakeAmount,
		Deadline:        req.Deadline,
		MaxParticipants: req.MaxParticipants,
		TemplateURL:     req.TemplateURL,
		ChallengeType:   challengeType,
		CircleName:      req.CircleName,
		CircleLevel:     req.CircleLevel,
		CustodyAddress:  custodyAddress,
		CreatedAt:       time.Now(),
	}

	if err := cs.repo.CreateChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	// Auto-join the creator as leader with a live stake
	stake := &models.Stake{
		ID:            uuid.New(),
		ChallengeID:   challengeID,
		ParticipantID: creatorID,
		StakeAmount:   challenge.StakeAmount,
		Deadline:      challenge.Deadline,
		Status:        models.StakeStatusJoined,
		DepositTxHash: &req.Signature,
		CreatedAt:     time.Now(),
	}

	if _, err := cs.repo.CreateStake(ctx, stake); err != nil {
		return nil, fmt.Errorf("failed to create creator stake: %w", err)
	}

	now := time.Now()
	custodyTx := &models.CustodyTransaction{
		ID:              uuid.New(),
		ChallengeID:     challengeID,
		ParticipantID:   creatorID,
		TransactionType: models.CustodyTransactionTypeDeposit,
		Amount:          challenge.StakeAmount,
		TxHash:          &req.Signature,
		Status:          models.CustodyTransactionStatusConfirmed,
		CreatedAt:       now,
		ConfirmedAt:     &now,
	}
	if err := cs.repo.CreateCustodyTransaction(ctx, custodyTx); err != nil {
		log.Printf("Warning: failed to record creator deposit for challenge %s: %v", challengeID, err)
	}

	if err := cs.repo.IncrementParticipantStats(ctx, creatorID, 1, 0, 0, challenge.StakeAmount, decimal.Zero); err != nil {
		log.Printf("Warning: failed to update statistics for user %d: %v", creatorID, err)
	}

	cs.bus.Publish(events.Update{
		Topic:       events.ChallengeTopic(challengeID),
		Kind:        "challenge",
		ChallengeID: challengeID,
		UserID:      creatorID,
		Payload:     challenge,
	})

	log.Printf("Challenge %s created by user %d (stake %s, deadline %s)",
		challengeID, creatorID, challenge.StakeAmount, challenge.Deadline.Format(time.RFC3339))

	return challenge, nil
}

// GetChallenge retrieves a challenge by ID
func (cs *ChallengeService) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*models.Challenge, error) {
	challenge, err := cs.repo.GetChallengeByID(ctx, challengeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return challenge, nil
}

// ListChallenges retrieves challenges ordered by creation time descending
func (cs *ChallengeService) ListChallenges(ctx context.Context, limit, offset int) ([]*models.Challenge, int64, error) {
	return cs.repo.ListChallenges(ctx, limit, offset)
}

// ListOpenChallenges retrieves challenges still accepting activity
func (cs *ChallengeService) ListOpenChallenges(ctx context.Context, limit, offset int) ([]*models.Challenge, int64, error) {
	return cs.repo.ListOpenChallenges(ctx, time.Now(), limit, offset)
}

// ListParticipationRequests retrieves join requests for a challenge. Only the
// leader may see them.
func (cs *ChallengeService) ListParticipationRequests(
	ctx context.Context,
	challengeID uuid.UUID,
	actorID uint,
) ([]*models.ParticipationRequest, error) {
	challenge, err := cs.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.CreatorID != actorID {
		return nil, fmt.Errorf("%w: only the leader can list join requests", ErrUnauthorized)
	}
	return cs.repo.ListParticipationRequests(ctx, challengeID)
}

// ListCustodyTransactions retrieves the custody ledger for a challenge
func (cs *ChallengeService) ListCustodyTransactions(ctx context.Context, challengeID uuid.UUID) ([]*models.CustodyTransaction, error) {
	return cs.repo.ListCustodyTransactions(ctx, challengeID)
}
