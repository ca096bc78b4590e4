package jobs

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"commitfi/internal/events"
	"commitfi/internal/models"
	"commitfi/internal/repository"

	"github.com/google/uuid"
)

// ForfeitJob marks expired unverified stakes as forfeited. A stake that never
// reached VERIFIED by the deadline plus the grace window loses its deposit to
// custody.
type ForfeitJob struct {
	repo     *repository.Repository
	bus      *events.Bus
	grace    time.Duration
	interval time.Duration
	stopChan chan struct{}
}

// NewForfeitJob creates a new forfeiture job
func NewForfeitJob(repo *repository.Repository, bus *events.Bus, grace, interval time.Duration) *ForfeitJob {
	return &ForfeitJob{
		repo:     repo,
		bus:      bus,
		grace:    grace,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the forfeiture loop
func (fj *ForfeitJob) Start() {
	log.Printf("[ForfeitJob] Starting forfeiture job (interval: %v, grace: %v)", fj.interval, fj.grace)

	ticker := time.NewTicker(fj.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fj.forfeitExpiredStakes()
		case <-fj.stopChan:
			log.Println("[ForfeitJob] Stopping forfeiture job")
			return
		}
	}
}

// Stop stops the forfeiture loop
func (fj *ForfeitJob) Stop() {
	close(fj.stopChan)
}

// forfeitExpiredStakes finds and forfeits stakes past deadline plus grace
func (fj *ForfeitJob) forfeitExpiredStakes() {
	ctx := context.Background()

	cutoff := time.Now().Add(-fj.grace)
	stakes, err := fj.repo.ListExpiredActiveStakes(ctx, cutoff, 100)
	if err != nil {
		log.Printf("[ForfeitJob] Error fetching expired stakes: %v", err)
		return
	}

	if len(stakes) == 0 {
		return
	}

	log.Printf("[ForfeitJob] Checking %d expired stakes", len(stakes))

	forfeitedCount := 0
	for _, stake := range stakes {
		if err := fj.forfeit(ctx, stake); err != nil {
			log.Printf("[ForfeitJob] Error forfeiting stake %s: %v", stake.ID, err)
			continue
		}
		forfeitedCount++
	}

	if forfeitedCount > 0 {
		log.Printf("[ForfeitJob] Forfeited %d stakes", forfeitedCount)
	}
}

func (fj *ForfeitJob) forfeit(ctx context.Context, stake *models.Stake) error {
	now := time.Now()
	stake.Status = models.StakeStatusForfeited
	stake.SettledAt = &now

	if err := fj.repo.UpdateStake(ctx, stake); err != nil {
		return err
	}

	if err := fj.repo.IncrementParticipantStats(ctx, stake.ParticipantID, 0, 0, 1, decimal.Zero, decimal.Zero); err != nil {
		log.Printf("[ForfeitJob] Warning: failed to update statistics for user %d: %v", stake.ParticipantID, err)
	}

	fj.publish(stake.ChallengeID, stake)
	log.Printf("[ForfeitJob] Forfeited stake of user %d on challenge %s (deadline %v)",
		stake.ParticipantID, stake.ChallengeID, stake.Deadline)
	return nil
}

func (fj *ForfeitJob) publish(challengeID uuid.UUID, stake *models.Stake) {
	fj.bus.Publish(events.Update{
		Topic:       events.ChallengeTopic(challengeID),
		Kind:        "stake_forfeited",
		ChallengeID: challengeID,
		UserID:      stake.ParticipantID,
		Payload:     stake,
	})
	fj.bus.Publish(events.Update{
		Topic:       events.UserTopic(stake.ParticipantID),
		Kind:        "stake_forfeited",
		ChallengeID: challengeID,
		UserID:      stake.ParticipantID,
		Payload:     stake,
	})
}
