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

// StakeService runs the participant lifecycle: request, approval, payment,
// proof, settlement. Every transition moves a stake strictly forward.
type StakeService struct {
	repo    *repository.Repository
	custody CustodyClient
	bus     *events.Bus
}

func NewStakeService(repo *repository.Repository, custody CustodyClient, bus *events.Bus) *StakeService {
	return &StakeService{
		repo:    repo,
		custody: custody,
		bus:     bus,
	}
}

// RequestJoin records a prospective participant's ask to join a challenge.
// Duplicates per (challenge, applicant) are rejected; the creator never
// requests because they are auto-joined.
func (ss *StakeService) RequestJoin(ctx context.Context, challengeID uuid.UUID, applicantID uint) (*models.ParticipationRequest, error) {
	challenge, err := ss.getChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.CreatorID == applicantID {
		return nil, fmt.Errorf("%w", ErrSelfJoin)
	}
	if challenge.Closed(time.Now()) {
		return nil, fmt.Errorf("%w: challenge %s", ErrDeadlinePassed, challengeID)
	}

	request := &models.ParticipationRequest{
		ID:          uuid.New(),
		ChallengeID: challengeID,
		ApplicantID: applicantID,
		Status:      models.RequestStatusPending,
		CreatedAt:   time.Now(),
	}

	created, err := ss.repo.CreateParticipationRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create participation request: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("%w: user %d on challenge %s", ErrAlreadyRequested, applicantID, challengeID)
	}

	ss.bus.Publish(events.Update{
		Topic:       events.ChallengeTopic(challengeID),
		Kind:        "join_request",
		ChallengeID: challengeID,
		UserID:      applicantID,
		Payload:     request,
	})
	ss.bus.Publish(events.Update{
		Topic:       events.UserTopic(challenge.CreatorID),
		Kind:        "join_request",
		ChallengeID: challengeID,
		UserID:      applicantID,
		Payload:     request,
	})

	log.Printf("User %d requested to join challenge %s", applicantID, challengeID)
	return request, nil
}

// DecideRequest is the leader's approval or rejection of a pending join
// request. Only pending requests can be decided, and only by the creator.
func (ss *StakeService) DecideRequest(
	ctx context.Context,
	requestID uuid.UUID,
	actorID uint,
	approve bool,
) (*models.ParticipationRequest, error) {
	request, err := ss.repo.GetParticipationRequestByID(ctx, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participation request: %w", err)
	}

	challenge, err := ss.getChallenge(ctx, request.ChallengeID)
	if err != nil {
		return nil, err
	}
	if challenge.CreatorID != actorID {
		return nil, fmt.Errorf("%w: only the leader can decide join requests", ErrUnauthorized)
	}
	if request.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("%w: request %s is %s", ErrInvalidState, requestID, request.Status)
	}

	if approve {
		request.Status = models.RequestStatusApproved
	} else {
		request.Status = models.RequestStatusRejected
	}
	now := time.Now()
	request.DecidedByID = &actorID
	request.DecidedAt = &now

	if err := ss.repo.UpdateParticipationRequest(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to update participation request: %w", err)
	}

	ss.bus.Publish(events.Update{
		Topic:       events.UserTopic(request.ApplicantID),
		Kind:        "request_decided",
		ChallengeID: request.ChallengeID,
		UserID:      request.ApplicantID,
		Payload:     request,
	})

	log.Printf("Request %s on challenge %s %s by user %d", requestID, request.ChallengeID, request.Status, actorID)
	return request, nil
}

// PayAndJoin converts an approved request into a stake once the custody
// deposit is confirmed. Payment is checked idempotently: an earlier confirmed
// deposit (recorded locally or visible in custody state) is honored instead
// of demanding a second payment.
func (ss *StakeService) PayAndJoin(
	ctx context.Context,
	challengeID uuid.UUID,
	participantID uint,
	signature string,
) (*models.Stake, error) {
	challenge, err := ss.getChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.Closed(time.Now()) {
		return nil, fmt.Errorf("%w: challenge %s", ErrDeadlinePassed, challengeID)
	}

	if _, err := ss.repo.GetStake(ctx, challengeID, participantID); err == nil {
		return nil, fmt.Errorf("%w: user %d on challenge %s", ErrAlreadyJoined, participantID, challengeID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing stake: %w", err)
	}

	// The creator joins at creation time; everyone else needs approval
	if challenge.CreatorID != participantID {
		request, err := ss.repo.GetParticipationRequest(ctx, challengeID, participantID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no join request from user %d", ErrNotApproved, participantID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get participation request: %w", err)
		}
		if request.Status != models.RequestStatusApproved {
			return nil, fmt.Errorf("%w: request is %s", ErrNotApproved, request.Status)
		}
	}

	count, err := ss.repo.CountStakes(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to count stakes: %w", err)
	}
	if count >= int64(challenge.MaxParticipants) {
		return nil, fmt.Errorf("%w: challenge %s has %d participants", ErrChallengeFull, challengeID, count)
	}

	wallet, err := ss.repo.GetUserWalletAddress(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant wallet: %w", err)
	}

	txHash, err := ss.confirmDeposit(ctx, challenge, participantID, wallet, signature)
	if err != nil {
		return nil, err
	}

	stake := &models.Stake{
		ID:            uuid.New(),
		ChallengeID:   challengeID,
		ParticipantID: participantID,
		StakeAmount:   challenge.StakeAmount,
		Deadline:      challenge.Deadline,
		Status:        models.StakeStatusJoined,
		DepositTxHash: txHash,
		CreatedAt:     time.Now(),
	}

	created, err := ss.repo.CreateStake(ctx, stake)
	if err != nil {
		return nil, fmt.Errorf("failed to create stake: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("%w: user %d on challenge %s", ErrAlreadyJoined, participantID, challengeID)
	}

	if err := ss.repo.IncrementParticipantStats(ctx, participantID, 1, 0, 0, challenge.StakeAmount, decimal.Zero); err != nil {
		log.Printf("Warning: failed to update statistics for user %d: %v", participantID, err)
	}

	ss.bus.Publish(events.Update{
		Topic:       events.ChallengeTopic(challengeID),
		Kind:        "participant_joined",
		ChallengeID: challengeID,
		UserID:      participantID,
		Payload:     stake,
	})

	log.Printf("User %d joined challenge %s with stake %s", participantID, challengeID, stake.StakeAmount)
	return stake, nil
}

// confirmDeposit resolves the participant's custody deposit. Order matters:
// the local ledger first, then custody state, then the fresh signature. A
// deposit that landed before a crashed record write is found by the first two
// checks and never demanded again.
func (ss *StakeService) confirmDeposit(
	ctx context.Context,
	challenge *models.Challenge,
	participantID uint,
	wallet string,
	signature string,
) (*string, error) {
	if tx, err := ss.repo.GetConfirmedDeposit(ctx, challenge.ID, participantID); err == nil {
		log.Printf("User %d already has a confirmed deposit for challenge %s", participantID, challenge.ID)
		return tx.TxHash, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check deposit ledger: %w", err)
	}

	found, err := ss.custody.HasDeposit(ctx, wallet, challenge.CustodyAddress, challenge.StakeAmount)
	if err != nil {
		log.Printf("Warning: custody deposit scan failed for user %d on challenge %s: %v", participantID, challenge.ID, err)
	}

	var txHash *string
	if found {
		log.Printf("Found existing custody deposit from user %d for challenge %s", participantID, challenge.ID)
	} else {
		if signature == "" {
			return nil, fmt.Errorf("%w: no deposit found and no signature provided", ErrPaymentFailed)
		}
		confirmed, err := ss.custody.VerifyDeposit(ctx, signature, wallet, challenge.CustodyAddress, challenge.StakeAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
		if !confirmed {
			return nil, fmt.Errorf("%w: deposit %s not confirmed", ErrPaymentFailed, signature)
		}
		txHash = &signature
	}

	now := time.Now()
	record := &models.CustodyTransaction{
		ID:              uuid.New(),
		ChallengeID:     challenge.ID,
		ParticipantID:   participantID,
		TransactionType: models.CustodyTransactionTypeDeposit,
		Amount:          challenge.StakeAmount,
		TxHash:          txHash,
		Status:          models.CustodyTransactionStatusConfirmed,
		CreatedAt:       now,
		ConfirmedAt:     &now,
	}
	if err := ss.repo.CreateCustodyTransaction(ctx, record); err != nil {
		log.Printf("Warning: failed to record deposit for user %d on challenge %s: %v", participantID, challenge.ID, err)
	}

	return txHash, nil
}

// SubmitProof attaches evidence to a joined stake. One submission per stake;
// late submissions are rejected.
func (ss *StakeService) SubmitProof(
	ctx context.Context,
	challengeID uuid.UUID,
	participantID uint,
	req *models.SubmitProofRequest,
) (*models.Stake, error) {
	stake, err := ss.getStake(ctx, challengeID, participantID)
	if err != nil {
		return nil, err
	}

	if stake.Status.Terminal() {
		return nil, fmt.Errorf("%w: stake is %s", ErrAlreadySettled, stake.Status)
	}
	if stake.Status != models.StakeStatusJoined {
		return nil, fmt.Errorf("%w: stake is %s", ErrAlreadySubmitted, stake.Status)
	}
	if time.Now().After(stake.Deadline) {
		return nil, fmt.Errorf("%w: deadline was %s", ErrDeadlinePassed, stake.Deadline.Format(time.RFC3339))
	}
	if req.ProofURL == "" {
		return nil, fmt.Errorf("%w: proof URL required", ErrValidation)
	}

	now := time.Now()
	stake.Status = models.StakeStatusProofSubmitted
	stake.ProofURL = &req.ProofURL
	stake.ProofNote = req.ProofNote
	stake.SubmittedAt = &now

	if err := ss.repo.UpdateStake(ctx, stake); err != nil {
		return nil, fmt.Errorf("failed to update stake: %w", err)
	}

	ss.bus.Publish(events.Update{
		Topic:       events.ChallengeTopic(challengeID),
		Kind:        "proof_submitted",
		ChallengeID: challengeID,
		UserID:      participantID,
		Payload:     stake,
	})

	log.Printf("User %d submitted proof for challenge %s", participantID, challengeID)
	return stake, nil
}

// Settle releases a verified participant's stake back to their wallet after
// the deadline. Terminal: a settled stake never moves again.
func (ss *StakeService) Settle(ctx context.Context, challengeID uuid.UUID, participantID uint) (*models.Stake, error) {
	stake, err := ss.getStake(ctx, challengeID, participantID)
	if err != nil {
		return nil, err
	}

	if stake.Status.Terminal() {
		return nil, fmt.Errorf("%w: stake is %s", ErrAlreadySettled, stake.Status)
	}
	if stake.Status != models.StakeStatusVerified {
		return nil, fmt.Errorf("%w: stake is %s", ErrNotVerified, stake.Status)
	}
	if !time.Now().After(stake.Deadline) {
		return nil, fmt.Errorf("%w: deadline is %s", ErrNotExpired, stake.Deadline.Format(time.RFC3339))
	}

	wallet, err := ss.repo.GetUserWalletAddress(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant wallet: %w", err)
	}

	releaseTx, err := ss.custody.Release(ctx, wallet, stake.StakeAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: release failed: %v", ErrPaymentFailed, err)
	}

	now := time.Now()
	stake.Status = models.StakeStatusSettled
	stake.SettledAt = &now
	stake.ReleaseTxHash = &releaseTx

	if err := ss.repo.UpdateStake(ctx, stake); err != nil {
		// The release went out; surface the hash so operators can reconcile
		log.Printf("ERROR: release %s sent but stake update failed for user %d on challenge %s: %v",
			releaseTx, participantID, challengeID, err)
		return nil, fmt.Errorf("failed to update stake after release %s: %w", releaseTx, err)
	}

	record := &models.CustodyTransaction{
		ID:              uuid.New(),
		ChallengeID:     challengeID,
		ParticipantID:   participantID,
		TransactionType: models.CustodyTransactionTypeRelease,
		Amount:          stake.StakeAmount,
		TxHash:          &releaseTx,
		Status:          models.CustodyTransactionStatusConfirmed,
		CreatedAt:       now,
		ConfirmedAt:     &now,
	}
	if err := ss.repo.CreateCustodyTransaction(ctx, record); err != nil {
		log.Printf("Warning: failed to record release for user %d on challenge %s: %v", participantID, challengeID, err)
	}

	if err := ss.repo.IncrementParticipantStats(ctx, participantID, 0, 1, 0, decimal.Zero, stake.StakeAmount); err != nil {
		log.Printf("Warning: failed to update statistics for user %d: %v", participantID, err)
	}

	ss.bus.Publish(events.Update{
		Topic:       events.ChallengeTopic(challengeID),
		Kind:        "stake_settled",
		ChallengeID: challengeID,
		UserID:      participantID,
		Payload:     stake,
	})
	ss.bus.Publish(events.Update{
		Topic:       events.UserTopic(participantID),
		Kind:        "stake_settled",
		ChallengeID: challengeID,
		UserID:      participantID,
		Payload:     stake,
	})

	log.Printf("Settled stake for user %d on challenge %s (release %s)", participantID, challengeID, releaseTx)
	return stake, nil
}

// GetStake retrieves the caller's stake in a challenge
func (ss *StakeService) GetStake(ctx context.Context, challengeID uuid.UUID, participantID uint) (*models.Stake, error) {
	return ss.getStake(ctx, challengeID, participantID)
}

// ListStakes retrieves all stakes in a challenge
func (ss *StakeService) ListStakes(ctx context.Context, challengeID uuid.UUID) ([]*models.Stake, error) {
	return ss.repo.ListStakesByChallenge(ctx, challengeID)
}

// ListParticipantStakes retrieves a participant's stakes across challenges
func (ss *StakeService) ListParticipantStakes(ctx context.Context, participantID uint, limit, offset int) ([]*models.Stake, int64, error) {
	return ss.repo.ListStakesByParticipant(ctx, participantID, limit, offset)
}

func (ss *StakeService) getChallenge(ctx context.Context, challengeID uuid.UUID) (*models.Challenge, error) {
	challenge, err := ss.repo.GetChallengeByID(ctx, challengeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return challenge, nil
}

func (ss *StakeService) getStake(ctx context.Context, challengeID uuid.UUID, participantID uint) (*models.Stake, error) {
	stake, err := ss.repo.GetStake(ctx, challengeID, participantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d on challenge %s", ErrNoStake, participantID, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stake: %w", err)
	}
	return stake, nil
}
