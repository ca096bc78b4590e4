package repository

import (
	"context"
	"time"

	"commitfi/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// CreateChallenge creates a new challenge
func (r *Repository) CreateChallenge(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

// GetChallengeByID retrieves a challenge by ID
func (r *Repository) GetChallengeByID(ctx context.Context, challengeID uuid.UUID) (*models.Challenge, error) {
	var challenge models.Challenge
	err := r.db.WithContext(ctx).Where("id = ?", challengeID).First(&challenge).Error
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// ListChallenges retrieves challenges ordered by creation time descending
func (r *Repository) ListChallenges(ctx context.Context, limit, offset int) ([]*models.Challenge, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Challenge{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var challenges []*models.Challenge
	err = r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&challenges).Error
	if err != nil {
		return nil, 0, err
	}

	return challenges, total, nil
}

// ListOpenChallenges retrieves challenges whose deadline has not yet passed
func (r *Repository) ListOpenChallenges(ctx context.Context, now time.Time, limit, offset int) ([]*models.Challenge, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Challenge{}).
		Where("deadline > ?", now).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var challenges []*models.Challenge
	err = r.db.WithContext(ctx).
		Where("deadline > ?", now).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&challenges).Error
	if err != nil {
		return nil, 0, err
	}

	return challenges, total, nil
}

// CreateParticipationRequest inserts a join request if none exists for the
// (challenge, applicant) pair. Returns false without error when the pair is
// already present, so concurrent duplicate requests surface deterministically.
func (r *Repository) CreateParticipationRequest(ctx context.Context, request *models.ParticipationRequest) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "challenge_id"}, {Name: "applicant_id"}},
		DoNothing: true,
	}).Create(request)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetParticipationRequestByID retrieves a request by ID
func (r *Repository) GetParticipationRequestByID(ctx context.Context, requestID uuid.UUID) (*models.ParticipationRequest, error) {
	var request models.ParticipationRequest
	err := r.db.WithContext(ctx).Where("id = ?", requestID).First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// GetParticipationRequest retrieves the request for a (challenge, applicant) pair
func (r *Repository) GetParticipationRequest(ctx context.Context, challengeID uuid.UUID, applicantID uint) (*models.ParticipationRequest, error) {
	var request models.ParticipationRequest
	err := r.db.WithContext(ctx).
		Where("challenge_id = ? AND applicant_id = ?", challengeID, applicantID).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateParticipationRequest updates a join request
func (r *Repository) UpdateParticipationRequest(ctx context.Context, request *models.ParticipationRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// ListParticipationRequests retrieves all requests for a challenge, pending first
func (r *Repository) ListParticipationRequests(ctx context.Context, challengeID uuid.UUID) ([]*models.ParticipationRequest, error) {
	var requests []*models.ParticipationRequest
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("status DESC, created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}
