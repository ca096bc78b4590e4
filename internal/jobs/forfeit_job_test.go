package jobs

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"commitfi/internal/events"
	"commitfi/internal/models"
	"commitfi/internal/repository"
)

func setupJobDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.Stake{},
		&models.ParticipantStatistics{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	db.Exec("DELETE FROM participant_statistics")
	db.Exec("DELETE FROM stakes")
	db.Exec("DELETE FROM challenges")
	db.Exec("DELETE FROM users")

	return db
}

func seedStake(t *testing.T, db *gorm.DB, status models.StakeStatus, deadline time.Time) *models.Stake {
	stake := &models.Stake{
		ID:            uuid.New(),
		ChallengeID:   uuid.New(),
		ParticipantID: uint(time.Now().UnixNano() % 100000),
		StakeAmount:   decimal.NewFromInt(2),
		Deadline:      deadline,
		Status:        status,
	}
	if err := db.Create(stake).Error; err != nil {
		t.Fatalf("failed to seed stake: %v", err)
	}
	return stake
}

func TestForfeitExpiredStakes(t *testing.T) {
	db := setupJobDB(t)
	repo := repository.NewRepository(db)
	bus := events.NewBus()

	expired := seedStake(t, db, models.StakeStatusJoined, time.Now().Add(-48*time.Hour))
	submitted := seedStake(t, db, models.StakeStatusProofSubmitted, time.Now().Add(-48*time.Hour))
	active := seedStake(t, db, models.StakeStatusJoined, time.Now().Add(48*time.Hour))
	verified := seedStake(t, db, models.StakeStatusVerified, time.Now().Add(-48*time.Hour))

	job := NewForfeitJob(repo, bus, 24*time.Hour, time.Minute)
	job.forfeitExpiredStakes()

	assertStatus := func(id uuid.UUID, want models.StakeStatus) {
		t.Helper()
		var stake models.Stake
		if err := db.First(&stake, "id = ?", id).Error; err != nil {
			t.Fatalf("failed to load stake: %v", err)
		}
		if stake.Status != want {
			t.Errorf("stake %s: expected %s, got %s", id, want, stake.Status)
		}
	}

	assertStatus(expired.ID, models.StakeStatusForfeited)
	assertStatus(submitted.ID, models.StakeStatusForfeited)
	assertStatus(active.ID, models.StakeStatusJoined)
	// VERIFIED stakes wait for settlement, never forfeited
	assertStatus(verified.ID, models.StakeStatusVerified)
}

func TestForfeitRespectsGrace(t *testing.T) {
	db := setupJobDB(t)
	repo := repository.NewRepository(db)
	bus := events.NewBus()

	// Deadline passed but still inside the 24h grace window
	inGrace := seedStake(t, db, models.StakeStatusJoined, time.Now().Add(-time.Hour))

	job := NewForfeitJob(repo, bus, 24*time.Hour, time.Minute)
	job.forfeitExpiredStakes()

	var stake models.Stake
	if err := db.First(&stake, "id = ?", inGrace.ID).Error; err != nil {
		t.Fatalf("failed to load stake: %v", err)
	}
	if stake.Status != models.StakeStatusJoined {
		t.Errorf("expected JOINED inside grace window, got %s", stake.Status)
	}
}

func TestForfeitPublishesUpdates(t *testing.T) {
	db := setupJobDB(t)
	repo := repository.NewRepository(db)
	bus := events.NewBus()

	expired := seedStake(t, db, models.StakeStatusJoined, time.Now().Add(-48*time.Hour))
	sub := bus.Subscribe(events.ChallengeTopic(expired.ChallengeID))
	defer sub.Close()

	job := NewForfeitJob(repo, bus, 24*time.Hour, time.Minute)
	job.forfeitExpiredStakes()

	select {
	case update := <-sub.Updates():
		if update.Kind != "stake_forfeited" {
			t.Errorf("expected stake_forfeited, got %s", update.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a forfeiture update on the challenge topic")
	}
}
