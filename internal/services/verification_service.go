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
	"gorm.io/gorm"
)

// VerificationService runs peer verification of submitted proofs. Votes have
// set semantics; consensus is monotone in the vote count, so once reached it
// holds under any later cast.
type VerificationService struct {
	repo *repository.Repository
	bus  *events.Bus
}

func NewVerificationService(repo *repository.Repository, bus *events.Bus) *VerificationService {
	return &VerificationService{
		repo: repo,
		bus:  bus,
	}
}

// CastVote records a voter's endorsement of another participant's submission.
// Duplicate casts are no-ops. Only staked participants may vote, and never on
// their own submission.
func (vs *VerificationService) CastVote(
	ctx context.Context,
	challengeID uuid.UUID,
	voterID uint,
	submissionOwnerID uint,
) (*models.SubmissionState, error) {
	if voterID == submissionOwnerID {
		return nil, fmt.Errorf("%w", ErrSelfVote)
	}

	// The voter must hold a stake in the same challenge
	if _, err := vs.repo.GetStake(ctx, challengeID, voterID); errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: voter %d", ErrNoStake, voterID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get voter stake: %w", err)
	}

	stake, err := vs.repo.GetStake(ctx, challengeID, submissionOwnerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d on challenge %s", ErrNoStake, submissionOwnerID, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stake: %w", err)
	}

	if stake.Status.Rank() < models.StakeStatusProofSubmitted.Rank() {
		return nil, fmt.Errorf("%w: no proof submitted yet", ErrInvalidState)
	}

	vote := &models.StakeVote{
		ID:        uuid.New(),
		StakeID:   stake.ID,
		VoterID:   voterID,
		CreatedAt: time.Now(),
	}
	if err := vs.repo.AddVote(ctx, vote); err != nil {
		return nil, fmt.Errorf("failed to add vote: %w", err)
	}

	state, err := vs.submissionState(ctx, stake)
	if err != nil {
		return nil, err
	}

	vs.bus.Publish(events.Update{
		Topic:       events.ChallengeTopic(challengeID),
		Kind:        "vote_cast",
		ChallengeID: challengeID,
		UserID:      voterID,
		Payload:     state,
	})

	log.Printf("User %d voted on submission of user %d in challenge %s (%d/%d)",
		voterID, submissionOwnerID, challengeID, state.Votes, state.EligibleVoters)
	return state, nil
}

// GetSubmissionState retrieves the verification view of one submission
func (vs *VerificationService) GetSubmissionState(
	ctx context.Context,
	challengeID uuid.UUID,
	submissionOwnerID uint,
) (*models.SubmissionState, error) {
	stake, err := vs.repo.GetStake(ctx, challengeID, submissionOwnerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d on challenge %s", ErrNoStake, submissionOwnerID, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stake: %w", err)
	}
	return vs.submissionState(ctx, stake)
}

// Finalize marks a submission verified. For individual challenges the leader
// verifies directly; for circle challenges the peer-vote threshold must be
// met first. Idempotent on already-verified stakes is an error the handler
// maps to conflict, keeping the transition monotone.
func (vs *VerificationService) Finalize(
	ctx context.Context,
	challengeID uuid.UUID,
	actorID uint,
	submissionOwnerID uint,
) (*models.Stake, error) {
	challenge, err := vs.repo.GetChallengeByID(ctx, challengeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	if challenge.CreatorID != actorID {
		return nil, fmt.Errorf("%w: only the leader can finalize", ErrUnauthorized)
	}

	stake, err := vs.repo.GetStake(ctx, challengeID, submissionOwnerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d on challenge %s", ErrNoStake, submissionOwnerID, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stake: %w", err)
	}

	if stake.Status.Terminal() {
		return nil, fmt.Errorf("%w: stake is %s", ErrAlreadySettled, stake.Status)
	}
	if stake.Status == models.StakeStatusVerified {
		return nil, fmt.Errorf("%w: user %d on challenge %s", ErrAlreadyFinalized, submissionOwnerID, challengeID)
	}
	if stake.Status != models.StakeStatusProofSubmitted {
		return nil, fmt.Errorf("%w: no proof submitted yet", ErrInvalidState)
	}

	if challenge.ChallengeType == models.ChallengeTypeCircle {
		state, err := vs.submissionState(ctx, stake)
		if err != nil {
			return nil, err
		}
		if !state.HasConsensus {
			return nil, fmt.Errorf("%w: %d of %d votes", ErrNoConsensus, state.Votes, state.EligibleVoters)
		}
	}

	now := time.Now()
	stake.Status = models.StakeStatusVerified
	stake.VerifiedAt = &now

	if err := vs.repo.UpdateStake(ctx, stake); err != nil {
		return nil, fmt.Errorf("failed to update stake: %w", err)
	}

	vs.bus.Publish(events.Update{
		Topic:       events.ChallengeTopic(challengeID),
		Kind:        "submission_verified",
		ChallengeID: challengeID,
		UserID:      submissionOwnerID,
		Payload:     stake,
	})
	vs.bus.Publish(events.Update{
		Topic:       events.UserTopic(submissionOwnerID),
		Kind:        "submission_verified",
		ChallengeID: challengeID,
		UserID:      submissionOwnerID,
		Payload:     stake,
	})

	log.Printf("Submission of user %d in challenge %s verified by user %d", submissionOwnerID, challengeID, actorID)
	return stake, nil
}

// submissionState computes the consensus view. Eligible voters are all staked
// participants except the submission owner; a circle with nobody else to vote
// reaches consensus trivially.
func (vs *VerificationService) submissionState(ctx context.Context, stake *models.Stake) (*models.SubmissionState, error) {
	votes, err := vs.repo.CountVotes(ctx, stake.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}

	participants, err := vs.repo.CountStakes(ctx, stake.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	eligible := int(participants) - 1

	return &models.SubmissionState{
		Stake:          stake,
		Votes:          int(votes),
		EligibleVoters: eligible,
		HasConsensus:   hasConsensus(int(votes), eligible),
	}, nil
}

func hasConsensus(votes, eligible int) bool {
	if eligible <= 0 {
		return true
	}
	threshold := eligible
	if threshold < 1 {
		threshold = 1
	}
	return votes >= threshold
}
