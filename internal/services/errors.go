package services

import "errors"

// Error taxonomy for the challenge/stake lifecycle. Handlers map these to
// HTTP status codes; services wrap them with context via fmt.Errorf and %w.
var (
	// Creation input failures
	ErrValidation = errors.New("validation failed")

	// Duplicate-action guards
	ErrAlreadyRequested = errors.New("participation already requested")
	ErrAlreadyJoined    = errors.New("stake already exists for this challenge")
	ErrAlreadySubmitted = errors.New("proof already submitted")
	ErrAlreadyFinalized = errors.New("submission already verified")
	ErrAlreadySettled   = errors.New("stake already settled")

	// Permission failures
	ErrUnauthorized = errors.New("actor not permitted")

	// Precondition failures
	ErrNotFound       = errors.New("not found")
	ErrNotApproved    = errors.New("participation request not approved")
	ErrNoStake        = errors.New("no stake for this participant")
	ErrNotVerified    = errors.New("stake not verified")
	ErrNotExpired     = errors.New("challenge deadline not passed")
	ErrDeadlinePassed = errors.New("challenge deadline passed")
	ErrInvalidState   = errors.New("invalid state for this operation")
	ErrChallengeFull  = errors.New("challenge is full")

	// Identity-conflict guards
	ErrSelfJoin = errors.New("creator cannot request to join own challenge")
	ErrSelfVote = errors.New("cannot vote on own submission")

	// Consensus gate
	ErrNoConsensus = errors.New("consensus threshold not met")

	// External collaborator failures
	ErrPaymentFailed = errors.New("payment not confirmed")
)
