package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"commitfi/internal/events"
	"commitfi/internal/models"
	"commitfi/internal/repository"
)

type stakeFixture struct {
	db               *gorm.DB
	repo             *repository.Repository
	custody          *fakeCustody
	challengeService *ChallengeService
	stakeService     *StakeService
	creator          *models.User
	challenge        *models.Challenge
}

func setupStakeFixture(t *testing.T) *stakeFixture {
	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	custody := newFakeCustody()
	bus := events.NewBus()

	f := &stakeFixture{
		db:               db,
		repo:             repo,
		custody:          custody,
		challengeService: NewChallengeService(repo, custody, bus),
		stakeService:     NewStakeService(repo, custody, bus),
	}

	f.creator = createTestUser(t, db, "creator-wallet")

	challenge, err := f.challengeService.CreateChallenge(context.Background(), f.creator.ID, validCreateRequest())
	if err != nil {
		t.Fatalf("CreateChallenge failed: %v", err)
	}
	f.challenge = challenge

	return f
}

// approveAndJoin runs a participant through request, approval and payment
func (f *stakeFixture) approveAndJoin(t *testing.T, user *models.User) *models.Stake {
	ctx := context.Background()

	request, err := f.stakeService.RequestJoin(ctx, f.challenge.ID, user.ID)
	if err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	if _, err := f.stakeService.DecideRequest(ctx, request.ID, f.creator.ID, true); err != nil {
		t.Fatalf("DecideRequest failed: %v", err)
	}
	stake, err := f.stakeService.PayAndJoin(ctx, f.challenge.ID, user.ID, "sig-"+user.WalletAddress)
	if err != nil {
		t.Fatalf("PayAndJoin failed: %v", err)
	}
	return stake
}

func TestRequestJoin(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	ctx := context.Background()

	request, err := f.stakeService.RequestJoin(ctx, f.challenge.ID, applicant.ID)
	if err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	if request.Status != models.RequestStatusPending {
		t.Errorf("expected PENDING, got %s", request.Status)
	}

	// Second request for the same pair is rejected
	_, err = f.stakeService.RequestJoin(ctx, f.challenge.ID, applicant.ID)
	if !errors.Is(err, ErrAlreadyRequested) {
		t.Errorf("expected ErrAlreadyRequested, got %v", err)
	}
}

func TestRequestJoinSelf(t *testing.T) {
	f := setupStakeFixture(t)

	_, err := f.stakeService.RequestJoin(context.Background(), f.challenge.ID, f.creator.ID)
	if !errors.Is(err, ErrSelfJoin) {
		t.Fatalf("expected ErrSelfJoin, got %v", err)
	}
}

func TestDecideRequest(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	stranger := createTestUser(t, f.db, "stranger-wallet")
	ctx := context.Background()

	request, err := f.stakeService.RequestJoin(ctx, f.challenge.ID, applicant.ID)
	if err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}

	// Only the leader decides
	_, err = f.stakeService.DecideRequest(ctx, request.ID, stranger.ID, true)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	decided, err := f.stakeService.DecideRequest(ctx, request.ID, f.creator.ID, true)
	if err != nil {
		t.Fatalf("DecideRequest failed: %v", err)
	}
	if decided.Status != models.RequestStatusApproved {
		t.Errorf("expected APPROVED, got %s", decided.Status)
	}
	if decided.DecidedAt == nil {
		t.Error("expected decided_at to be set")
	}

	// A decided request cannot be decided again
	_, err = f.stakeService.DecideRequest(ctx, request.ID, f.creator.ID, false)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestPayAndJoin(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")

	stake := f.approveAndJoin(t, applicant)

	if stake.Status != models.StakeStatusJoined {
		t.Errorf("expected JOINED, got %s", stake.Status)
	}
	if !stake.StakeAmount.Equal(f.challenge.StakeAmount) {
		t.Errorf("expected stake %s, got %s", f.challenge.StakeAmount, stake.StakeAmount)
	}

	// Joining twice is rejected
	_, err := f.stakeService.PayAndJoin(context.Background(), f.challenge.ID, applicant.ID, "sig-again")
	if !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("expected ErrAlreadyJoined, got %v", err)
	}
}

func TestPayAndJoinRequiresApproval(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	ctx := context.Background()

	// No request at all
	_, err := f.stakeService.PayAndJoin(ctx, f.challenge.ID, applicant.ID, "sig")
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}

	// Pending request is not enough
	if _, err := f.stakeService.RequestJoin(ctx, f.challenge.ID, applicant.ID); err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	_, err = f.stakeService.PayAndJoin(ctx, f.challenge.ID, applicant.ID, "sig")
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved for pending request, got %v", err)
	}
}

func TestPayAndJoinPaymentFailure(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	ctx := context.Background()

	request, err := f.stakeService.RequestJoin(ctx, f.challenge.ID, applicant.ID)
	if err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	if _, err := f.stakeService.DecideRequest(ctx, request.ID, f.creator.ID, true); err != nil {
		t.Fatalf("DecideRequest failed: %v", err)
	}

	f.custody.verifyOK = false
	_, err = f.stakeService.PayAndJoin(ctx, f.challenge.ID, applicant.ID, "bad-sig")
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}

	// No stake was created on failed payment
	if _, err := f.repo.GetStake(ctx, f.challenge.ID, applicant.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected no stake, got %v", err)
	}
}

func TestPayAndJoinIdempotentPayment(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	ctx := context.Background()

	request, err := f.stakeService.RequestJoin(ctx, f.challenge.ID, applicant.ID)
	if err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	if _, err := f.stakeService.DecideRequest(ctx, request.ID, f.creator.ID, true); err != nil {
		t.Fatalf("DecideRequest failed: %v", err)
	}

	// Deposit already sits in custody from a previous crashed attempt.
	// No fresh signature is needed and verification is never reached.
	f.custody.deposits[applicant.WalletAddress] = true
	f.custody.verifyOK = false

	stake, err := f.stakeService.PayAndJoin(ctx, f.challenge.ID, applicant.ID, "")
	if err != nil {
		t.Fatalf("PayAndJoin with existing deposit failed: %v", err)
	}
	if stake.Status != models.StakeStatusJoined {
		t.Errorf("expected JOINED, got %s", stake.Status)
	}
}

func TestPayAndJoinChallengeFull(t *testing.T) {
	f := setupStakeFixture(t)
	ctx := context.Background()

	// Challenge allows 5; creator occupies one slot
	wallets := []string{"w1", "w2", "w3", "w4"}
	for _, w := range wallets {
		f.approveAndJoin(t, createTestUser(t, f.db, w))
	}

	late := createTestUser(t, f.db, "late-wallet")
	request, err := f.stakeService.RequestJoin(ctx, f.challenge.ID, late.ID)
	if err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	if _, err := f.stakeService.DecideRequest(ctx, request.ID, f.creator.ID, true); err != nil {
		t.Fatalf("DecideRequest failed: %v", err)
	}

	_, err = f.stakeService.PayAndJoin(ctx, f.challenge.ID, late.ID, "sig-late")
	if !errors.Is(err, ErrChallengeFull) {
		t.Fatalf("expected ErrChallengeFull, got %v", err)
	}
}

func TestSubmitProof(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	f.approveAndJoin(t, applicant)
	ctx := context.Background()

	req := &models.SubmitProofRequest{ProofURL: "https://proof.example/run.png"}
	stake, err := f.stakeService.SubmitProof(ctx, f.challenge.ID, applicant.ID, req)
	if err != nil {
		t.Fatalf("SubmitProof failed: %v", err)
	}
	if stake.Status != models.StakeStatusProofSubmitted {
		t.Errorf("expected PROOF_SUBMITTED, got %s", stake.Status)
	}
	if stake.SubmittedAt == nil {
		t.Error("expected submitted_at to be set")
	}

	// One submission per stake
	_, err = f.stakeService.SubmitProof(ctx, f.challenge.ID, applicant.ID, req)
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSubmitProofWithoutStake(t *testing.T) {
	f := setupStakeFixture(t)
	outsider := createTestUser(t, f.db, "outsider-wallet")

	req := &models.SubmitProofRequest{ProofURL: "https://proof.example/run.png"}
	_, err := f.stakeService.SubmitProof(context.Background(), f.challenge.ID, outsider.ID, req)
	if !errors.Is(err, ErrNoStake) {
		t.Fatalf("expected ErrNoStake, got %v", err)
	}
}

func TestSubmitProofAfterDeadline(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	f.approveAndJoin(t, applicant)
	ctx := context.Background()

	// Push the stake's deadline into the past
	f.db.Model(&models.Stake{}).
		Where("challenge_id = ? AND participant_id = ?", f.challenge.ID, applicant.ID).
		Update("deadline", time.Now().Add(-time.Hour))

	req := &models.SubmitProofRequest{ProofURL: "https://proof.example/run.png"}
	_, err := f.stakeService.SubmitProof(ctx, f.challenge.ID, applicant.ID, req)
	if !errors.Is(err, ErrDeadlinePassed) {
		t.Fatalf("expected ErrDeadlinePassed, got %v", err)
	}
}

func TestSettle(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	f.approveAndJoin(t, applicant)
	ctx := context.Background()

	// Drive the stake to VERIFIED with an expired deadline
	now := time.Now()
	f.db.Model(&models.Stake{}).
		Where("challenge_id = ? AND participant_id = ?", f.challenge.ID, applicant.ID).
		Updates(map[string]interface{}{
			"status":      models.StakeStatusVerified,
			"verified_at": now,
			"deadline":    now.Add(-time.Hour),
		})

	stake, err := f.stakeService.Settle(ctx, f.challenge.ID, applicant.ID)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if stake.Status != models.StakeStatusSettled {
		t.Errorf("expected SETTLED, got %s", stake.Status)
	}
	if stake.ReleaseTxHash == nil {
		t.Error("expected release tx hash to be set")
	}
	if len(f.custody.released) != 1 {
		t.Errorf("expected 1 release, got %d", len(f.custody.released))
	}

	// Settling twice is rejected and no second release happens
	_, err = f.stakeService.Settle(ctx, f.challenge.ID, applicant.ID)
	if !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("expected ErrAlreadySettled, got %v", err)
	}
	if len(f.custody.released) != 1 {
		t.Errorf("expected still 1 release, got %d", len(f.custody.released))
	}

	// Reclaimed amount lands in statistics
	stats, err := f.repo.GetParticipantStatistics(ctx, applicant.ID)
	if err != nil {
		t.Fatalf("GetParticipantStatistics failed: %v", err)
	}
	if stats.Settled != 1 {
		t.Errorf("expected 1 settled, got %d", stats.Settled)
	}
	if !stats.TotalReclaimed.Equal(f.challenge.StakeAmount) {
		t.Errorf("expected reclaimed %s, got %s", f.challenge.StakeAmount, stats.TotalReclaimed)
	}
}

func TestSettleRequiresVerification(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	f.approveAndJoin(t, applicant)
	ctx := context.Background()

	// Expired but never verified
	f.db.Model(&models.Stake{}).
		Where("challenge_id = ? AND participant_id = ?", f.challenge.ID, applicant.ID).
		Update("deadline", time.Now().Add(-time.Hour))

	_, err := f.stakeService.Settle(ctx, f.challenge.ID, applicant.ID)
	if !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
}

func TestSettleBeforeDeadline(t *testing.T) {
	f := setupStakeFixture(t)
	applicant := createTestUser(t, f.db, "applicant-wallet")
	f.approveAndJoin(t, applicant)
	ctx := context.Background()

	now := time.Now()
	f.db.Model(&models.Stake{}).
		Where("challenge_id = ? AND participant_id = ?", f.challenge.ID, applicant.ID).
		Updates(map[string]interface{}{
			"status":      models.StakeStatusVerified,
			"verified_at": now,
		})

	_, err := f.stakeService.Settle(ctx, f.challenge.ID, applicant.ID)
	if !errors.Is(err, ErrNotExpired) {
		t.Fatalf("expected ErrNotExpired, got %v", err)
	}
}

func TestSettleUnknownChallenge(t *testing.T) {
	f := setupStakeFixture(t)

	_, err := f.stakeService.Settle(context.Background(), uuid.New(), f.creator.ID)
	if !errors.Is(err, ErrNoStake) {
		t.Fatalf("expected ErrNoStake, got %v", err)
	}
}

func TestStakeStatusMonotonic(t *testing.T) {
	order := []models.StakeStatus{
		models.StakeStatusJoined,
		models.StakeStatusProofSubmitted,
		models.StakeStatusVerified,
		models.StakeStatusSettled,
	}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("expected %s to outrank %s", order[i], order[i-1])
		}
	}
	if models.StakeStatusForfeited.Rank() != models.StakeStatusSettled.Rank() {
		t.Error("expected terminal statuses to share a rank")
	}
	if !models.StakeStatusForfeited.Terminal() || !models.StakeStatusSettled.Terminal() {
		t.Error("expected SETTLED and FORFEITED to be terminal")
	}
}

func TestParticipantStatisticsAccumulate(t *testing.T) {
	f := setupStakeFixture(t)
	ctx := context.Background()

	stats, err := f.repo.GetParticipantStatistics(ctx, f.creator.ID)
	if err != nil {
		t.Fatalf("GetParticipantStatistics failed: %v", err)
	}
	if stats.TotalChallenges != 1 {
		t.Errorf("expected 1 challenge from auto-join, got %d", stats.TotalChallenges)
	}
	if !stats.TotalStaked.Equal(f.challenge.StakeAmount) {
		t.Errorf("expected staked %s, got %s", f.challenge.StakeAmount, stats.TotalStaked)
	}

	if err := f.repo.IncrementParticipantStats(ctx, f.creator.ID, 0, 0, 1, decimal.Zero, decimal.Zero); err != nil {
		t.Fatalf("IncrementParticipantStats failed: %v", err)
	}

	stats, err = f.repo.GetParticipantStatistics(ctx, f.creator.ID)
	if err != nil {
		t.Fatalf("GetParticipantStatistics failed: %v", err)
	}
	if stats.Forfeited != 1 {
		t.Errorf("expected 1 forfeited, got %d", stats.Forfeited)
	}
}
