package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustodyClient is the narrow payment interface the stake lifecycle depends
// on. Implemented by blockchain.CustodyContract; tests substitute a fake.
type CustodyClient interface {
	// DeriveCustodyAddress returns the custody point holding a challenge's pool
	DeriveCustodyAddress(challengeID uuid.UUID) (string, error)

	// VerifyDeposit confirms a signed transfer of the stake amount from the
	// sender's wallet into custody
	VerifyDeposit(ctx context.Context, signature, senderWallet, custodyAddress string, amount decimal.Decimal) (bool, error)

	// HasDeposit checks custody state for an existing confirmed deposit from
	// the participant. Idempotency pre-check: a payment that succeeded before
	// a failed record write must not be demanded twice.
	HasDeposit(ctx context.Context, participantWallet, custodyAddress string, amount decimal.Decimal) (bool, error)

	// Release transfers a participant's stake back out of custody
	Release(ctx context.Context, recipientWallet string, amount decimal.Decimal) (string, error)
}
