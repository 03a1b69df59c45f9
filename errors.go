// Errors.go
//
// Purpose: Named precondition failures for the commit-reveal ballot contract.
// Every public operation validates against these before its first write, so a
// Rejected transaction leaves world state untouched (the peer discards the
// Read/write set of a failed invocation anyway; the contract additionally
// Orders its own checks before mutations).

package main

import "errors"

var (
	// ErrUnauthorized rejects a privileged call from anyone but the chairperson.
	ErrUnauthorized = errors.New("unauthorized caller")

	// ErrWrongPhase rejects an operation invoked outside its time window.
	ErrWrongPhase = errors.New("operation not permitted in current phase")

	// ErrNoRightToVote rejects commits/delegations from zero-weight identities.
	ErrNoRightToVote = errors.New("caller has no right to vote")

	// ErrAlreadyActive rejects a second grant for an identity that already
	// holds weight or has voted.
	ErrAlreadyActive = errors.New("voter already active")

	// ErrAlreadyVoted rejects commit/delegate after the caller committed or delegated.
	ErrAlreadyVoted = errors.New("caller already voted")

	// ErrNotCommitted rejects reveal/cancel when there is no pending commitment
	// (never committed, delegated away, or already revealed).
	ErrNotCommitted = errors.New("no pending commitment or already revealed")

	// ErrInvalidHash rejects a zero or malformed commitment digest.
	ErrInvalidHash = errors.New("invalid commitment hash")

	// ErrCommitmentMismatch rejects a reveal whose recomputed binding differs
	// from the stored commitment.
	ErrCommitmentMismatch = errors.New("reveal does not match stored commitment")

	// ErrDelegationCycle rejects self-referential or cyclic delegation.
	ErrDelegationCycle = errors.New("delegation cycle detected")

	// ErrInvalidDelegate rejects delegation resolving to an identity without voting rights.
	ErrInvalidDelegate = errors.New("resolved delegate has no right to vote")

	// ErrInvalidProposal rejects an out-of-range proposal index.
	ErrInvalidProposal = errors.New("proposal index out of range")

	// ErrConfiguration rejects malformed constructor input or double initialization.
	ErrConfiguration = errors.New("invalid ballot configuration")

	// ErrVotingNotFinished rejects tally queries before the reveal window closes.
	ErrVotingNotFinished = errors.New("voting not finished")
)
