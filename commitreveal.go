/*
commitreveal.go — the per-voter commit/reveal lifecycle.

A commitment is SHA-256 over the fixed-width encoding of the hidden choice:
8-byte big-endian proposal index followed by the caller-chosen salt bytes.
Commit and reveal agree on this encoding bit-for-bit, so the stored digest
binds exactly one (index, salt) pair.

States: Uncommitted → Committed → Revealed, with Committed → Uncommitted via
Cancel before the reveal window. Reveal is the single point where weight is
attributed to a proposal, and its precondition (voted && !revealed) makes
double counting structurally impossible.
*/
package main

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

// commitmentDigest recomputes the one-way binding of (index, salt).
func commitmentDigest(index uint64, salt []byte) string {
	buf := make([]byte, 8, 8+len(salt))
	binary.BigEndian.PutUint64(buf, index)
	buf = append(buf, salt...)
	h := sha256.Sum256(buf)
	return hex.EncodeToString(h[:])
}

// Commit stores the caller's commitment digest. Voting window only. The engine
// never sees the plaintext choice here — only its binding.
func (c *BallotContract) Commit(ctx contractapi.TransactionContextInterface, commitmentHex string) error {
	cfg, _, err := requirePhase(ctx, phaseVoting)
	if err != nil {
		return err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}

	sender, err := loadVoter(ctx, caller)
	if err != nil {
		return err
	}
	if sender.Voted {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, caller)
	}
	if sender.Weight == 0 {
		return fmt.Errorf("%w: %s holds no weight", ErrNoRightToVote, caller)
	}

	commitmentHex = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(commitmentHex), "0x"))
	raw, err := hex.DecodeString(commitmentHex)
	if err != nil || len(raw) != sha256.Size {
		return fmt.Errorf("%w: want %d-byte hex digest", ErrInvalidHash, sha256.Size)
	}
	zero := true
	for _, b := range raw {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return fmt.Errorf("%w: zero digest", ErrInvalidHash)
	}

	sender.Voted = true
	sender.Commitment = commitmentHex
	if err := saveVoter(ctx, caller, sender); err != nil {
		return err
	}

	emit(ctx, cfg, eventVoteCast, map[string]any{"voter": caller, "commitment": commitmentHex})
	return nil
}

// Reveal discloses the (index, salt) pair behind the caller's commitment and
// adds the caller's weight to the chosen proposal. Reveal window only.
func (c *BallotContract) Reveal(ctx contractapi.TransactionContextInterface, proposalIndex uint64, saltHex string) error {
	cfg, _, err := requirePhase(ctx, phaseReveal)
	if err != nil {
		return err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}

	sender, err := loadVoter(ctx, caller)
	if err != nil {
		return err
	}
	if !sender.Voted || sender.Revealed {
		return fmt.Errorf("%w: %s", ErrNotCommitted, caller)
	}
	if proposalIndex >= cfg.Proposals {
		return fmt.Errorf("%w: index %d of %d", ErrInvalidProposal, proposalIndex, cfg.Proposals)
	}
	salt, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(saltHex), "0x"))
	if err != nil {
		return fmt.Errorf("%w: undecodable salt", ErrCommitmentMismatch)
	}
	// A voter who delegated carries no commitment; the recomputed digest can
	// never match, so the mismatch path also covers that case.
	if commitmentDigest(proposalIndex, salt) != sender.Commitment {
		return fmt.Errorf("%w: voter %s", ErrCommitmentMismatch, caller)
	}

	p, err := loadProposal(ctx, cfg, proposalIndex)
	if err != nil {
		return err
	}

	sender.Revealed = true
	sender.Choice = proposalIndex
	if err := saveVoter(ctx, caller, sender); err != nil {
		return err
	}
	p.VoteCount += sender.Weight
	if err := saveProposal(ctx, proposalIndex, p); err != nil {
		return err
	}

	emit(ctx, cfg, eventVoteRevealed, map[string]any{"voter": caller, "proposal": proposalIndex})
	return nil
}

// Cancel withdraws a pending commitment, restoring the caller to Uncommitted
// with weight intact. Voting window only; impossible once revealed or after
// delegating (a delegated voter has no commitment to withdraw).
func (c *BallotContract) Cancel(ctx contractapi.TransactionContextInterface) error {
	cfg, _, err := requirePhase(ctx, phaseVoting)
	if err != nil {
		return err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}

	sender, err := loadVoter(ctx, caller)
	if err != nil {
		return err
	}
	if !sender.Voted || sender.Revealed || sender.Commitment == "" {
		return fmt.Errorf("%w: %s", ErrNotCommitted, caller)
	}

	sender.Voted = false
	sender.Commitment = ""
	if err := saveVoter(ctx, caller, sender); err != nil {
		return err
	}

	emit(ctx, cfg, eventVoteCancelled, map[string]any{"voter": caller})
	return nil
}
