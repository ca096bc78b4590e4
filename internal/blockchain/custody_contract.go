package blockchain

import (
	"context"
	"fmt"
	"log"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustodyContract manages the per-challenge custody accounts that hold staked
// funds between join and settlement.
type CustodyContract struct {
	client    *SolanaClient
	programID string
}

// NewCustodyContract creates a new custody contract instance
func NewCustodyContract(client *SolanaClient, programID string) *CustodyContract {
	return &CustodyContract{
		client:    client,
		programID: programID,
	}
}

// DeriveCustodyAddress derives the custody address for a challenge. With a
// program configured this is the challenge's PDA; otherwise the server wallet
// acts as the custody point (devnet setup).
func (c *CustodyContract) DeriveCustodyAddress(challengeID uuid.UUID) (string, error) {
	if c.programID == "" {
		if c.client.serverWallet == nil {
			return "", fmt.Errorf("no custody program and no server wallet configured")
		}
		return c.client.serverWallet.PublicKey().String(), nil
	}

	program, err := solana.PublicKeyFromBase58(c.programID)
	if err != nil {
		return "", fmt.Errorf("invalid custody program ID: %w", err)
	}

	seeds := [][]byte{[]byte("custody"), challengeID[:]}
	pda, _, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return "", fmt.Errorf("failed to derive custody address: %w", err)
	}

	return pda.String(), nil
}

// VerifyDeposit confirms that the signed transaction moved at least the stake
// amount from the participant's wallet into the challenge custody address.
func (c *CustodyContract) VerifyDeposit(
	ctx context.Context,
	signature string,
	senderWallet string,
	custodyAddress string,
	amount decimal.Decimal,
) (bool, error) {
	details, err := c.client.VerifyTransaction(ctx, signature)
	if err != nil {
		return false, fmt.Errorf("failed to verify deposit: %w", err)
	}
	if details == nil || !details.Confirmed {
		return false, nil
	}

	if details.Sender != "" && details.Sender != senderWallet {
		log.Printf("Deposit %s sender mismatch: got %s, want %s", signature, details.Sender, senderWallet)
		return false, nil
	}
	if details.Receiver != "" && details.Receiver != custodyAddress {
		log.Printf("Deposit %s receiver mismatch: got %s, want %s", signature, details.Receiver, custodyAddress)
		return false, nil
	}

	wantLamports := lamports(amount)
	if details.Amount > 0 && details.Amount < wantLamports {
		log.Printf("Deposit %s amount too low: got %d lamports, want %d", signature, details.Amount, wantLamports)
		return false, nil
	}

	return true, nil
}

// HasDeposit checks the chain for an existing confirmed deposit from the
// participant into the custody address. Used as the idempotency pre-check
// before asking a participant to pay again.
func (c *CustodyContract) HasDeposit(
	ctx context.Context,
	participantWallet string,
	custodyAddress string,
	amount decimal.Decimal,
) (bool, error) {
	custody, err := solana.PublicKeyFromBase58(custodyAddress)
	if err != nil {
		return false, fmt.Errorf("invalid custody address: %w", err)
	}

	limit := 50
	sigs, err := c.client.rpcClient.GetSignaturesForAddressWithOpts(ctx, custody, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return false, fmt.Errorf("failed to list custody signatures: %w", err)
	}

	for _, sig := range sigs {
		if sig.Err != nil {
			continue
		}
		ok, err := c.VerifyDeposit(ctx, sig.Signature.String(), participantWallet, custodyAddress, amount)
		if err != nil {
			log.Printf("Warning: could not inspect custody signature %s: %v", sig.Signature, err)
			continue
		}
		if ok {
			return true, nil
		}
	}

	return false, nil
}

// Release transfers staked funds from custody back to the participant. The
// server wallet signs as the custody authority.
func (c *CustodyContract) Release(
	ctx context.Context,
	recipientWallet string,
	amount decimal.Decimal,
) (string, error) {
	if c.client.serverWallet == nil {
		return "", fmt.Errorf("custody authority wallet not configured")
	}

	recipient, err := solana.PublicKeyFromBase58(recipientWallet)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}

	blockhash, err := c.client.GetRecentBlockhash(ctx)
	if err != nil {
		return "", err
	}

	authority := c.client.serverWallet.PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(
				lamports(amount),
				authority,
				recipient,
			).Build(),
		},
		blockhash,
		solana.TransactionPayer(authority),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build release transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(authority) {
			return &c.client.serverWallet.PrivateKey
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign release transaction: %w", err)
	}

	sig, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	log.Printf("Released %s SOL from custody to %s (tx %s)", amount, recipientWallet, sig)
	return sig.String(), nil
}

// lamports converts a SOL amount to lamports, truncating sub-lamport dust
func lamports(amount decimal.Decimal) uint64 {
	return uint64(amount.Mul(decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))).IntPart())
}
