package repository

import (
	"context"

	"commitfi/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetParticipantStatistics retrieves statistics for a user, creating an empty
// record on first access
func (r *Repository) GetParticipantStatistics(ctx context.Context, userID uint) (*models.ParticipantStatistics, error) {
	var stats models.ParticipantStatistics
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error

	if err == gorm.ErrRecordNotFound {
		stats = models.ParticipantStatistics{
			ID:             uuid.New(),
			UserID:         userID,
			TotalStaked:    decimal.Zero,
			TotalReclaimed: decimal.Zero,
		}

		if err := r.db.WithContext(ctx).Create(&stats).Error; err != nil {
			return nil, err
		}

		return &stats, nil
	}

	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// IncrementParticipantStats updates a user's aggregate counters atomically
func (r *Repository) IncrementParticipantStats(
	ctx context.Context,
	userID uint,
	challengesIncr int64,
	settledIncr int64,
	forfeitedIncr int64,
	stakedIncr decimal.Decimal,
	reclaimedIncr decimal.Decimal,
) error {
	// Initial values cover the INSERT case; the assignments cover the UPDATE case
	initialStats := models.ParticipantStatistics{
		ID:              uuid.New(),
		UserID:          userID,
		TotalChallenges: challengesIncr,
		Settled:         settledIncr,
		Forfeited:       forfeitedIncr,
		TotalStaked:     stakedIncr,
		TotalReclaimed:  reclaimedIncr,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_challenges": gorm.Expr("participant_statistics.total_challenges + ?", challengesIncr),
			"settled":          gorm.Expr("participant_statistics.settled + ?", settledIncr),
			"forfeited":        gorm.Expr("participant_statistics.forfeited + ?", forfeitedIncr),
			"total_staked":     gorm.Expr("participant_statistics.total_staked + ?", stakedIncr),
			"total_reclaimed":  gorm.Expr("participant_statistics.total_reclaimed + ?", reclaimedIncr),
			"updated_at":       gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&initialStats).Error
}
