package repository

import (
	"context"
	"time"

	"commitfi/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// CreateStake inserts a stake if none exists for the (challenge, participant)
// pair. Returns false without error when the pair is already staked.
func (r *Repository) CreateStake(ctx context.Context, stake *models.Stake) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "challenge_id"}, {Name: "participant_id"}},
		DoNothing: true,
	}).Create(stake)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetStake retrieves the stake for a (challenge, participant) pair
func (r *Repository) GetStake(ctx context.Context, challengeID uuid.UUID, participantID uint) (*models.Stake, error) {
	var stake models.Stake
	err := r.db.WithContext(ctx).
		Where("challenge_id = ? AND participant_id = ?", challengeID, participantID).
		First(&stake).Error
	if err != nil {
		return nil, err
	}
	return &stake, nil
}

// UpdateStake updates a stake
func (r *Repository) UpdateStake(ctx context.Context, stake *models.Stake) error {
	return r.db.WithContext(ctx).Save(stake).Error
}

// ListStakesByChallenge retrieves all stakes in a challenge
func (r *Repository) ListStakesByChallenge(ctx context.Context, challengeID uuid.UUID) ([]*models.Stake, error) {
	var stakes []*models.Stake
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("created_at ASC").
		Find(&stakes).Error
	if err != nil {
		return nil, err
	}
	return stakes, nil
}

// ListStakesByParticipant retrieves all stakes for a participant with total count
func (r *Repository) ListStakesByParticipant(ctx context.Context, participantID uint, limit, offset int) ([]*models.Stake, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Stake{}).
		Where("participant_id = ?", participantID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var stakes []*models.Stake
	err = r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&stakes).Error
	if err != nil {
		return nil, 0, err
	}

	return stakes, total, nil
}

// CountStakes counts paid participants in a challenge
func (r *Repository) CountStakes(ctx context.Context, challengeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Stake{}).
		Where("challenge_id = ?", challengeID).
		Count(&count).Error
	return count, err
}

// ListExpiredActiveStakes retrieves non-terminal, unverified stakes whose
// deadline passed before the cutoff
func (r *Repository) ListExpiredActiveStakes(ctx context.Context, cutoff time.Time, limit int) ([]*models.Stake, error) {
	var stakes []*models.Stake
	err := r.db.WithContext(ctx).
		Where("status IN ? AND deadline < ?",
			[]models.StakeStatus{models.StakeStatusJoined, models.StakeStatusProofSubmitted},
			cutoff).
		Order("deadline ASC").
		Limit(limit).
		Find(&stakes).Error
	if err != nil {
		return nil, err
	}
	return stakes, nil
}

// AddVote inserts a vote with set semantics: a duplicate (stake, voter) pair
// is a no-op, so concurrent casts of the same vote commute and none are lost.
func (r *Repository) AddVote(ctx context.Context, vote *models.StakeVote) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stake_id"}, {Name: "voter_id"}},
		DoNothing: true,
	}).Create(vote).Error
}

// CountVotes counts distinct voters on a submission
func (r *Repository) CountVotes(ctx context.Context, stakeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StakeVote{}).
		Where("stake_id = ?", stakeID).
		Count(&count).Error
	return count, err
}

// HasVoted reports whether a voter already endorsed a submission
func (r *Repository) HasVoted(ctx context.Context, stakeID uuid.UUID, voterID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StakeVote{}).
		Where("stake_id = ? AND voter_id = ?", stakeID, voterID).
		Count(&count).Error
	return count > 0, err
}

// CreateCustodyTransaction records a custody movement
func (r *Repository) CreateCustodyTransaction(ctx context.Context, tx *models.CustodyTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// GetConfirmedDeposit retrieves the confirmed deposit for a (challenge,
// participant) pair, if any. Local idempotency check before hitting the chain.
func (r *Repository) GetConfirmedDeposit(ctx context.Context, challengeID uuid.UUID, participantID uint) (*models.CustodyTransaction, error) {
	var tx models.CustodyTransaction
	err := r.db.WithContext(ctx).
		Where("challenge_id = ? AND participant_id = ? AND transaction_type = ? AND status = ?",
			challengeID, participantID,
			models.CustodyTransactionTypeDeposit, models.CustodyTransactionStatusConfirmed).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListCustodyTransactions retrieves all custody movements for a challenge
func (r *Repository) ListCustodyTransactions(ctx context.Context, challengeID uuid.UUID) ([]*models.CustodyTransaction, error) {
	var txs []*models.CustodyTransaction
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("created_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}
