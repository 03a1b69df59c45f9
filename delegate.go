/*
delegate.go — transitive delegation over the voter registry.

Delegation links form a forest: resolution follows Delegate pointers to a
non-delegating endpoint and rejects any chain that returns to the caller. The
chain length is bounded by the number of distinct active voters, so plain
iteration terminates without a hop limit.
*/
package main

import (
	"fmt"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

// Delegate irrevocably transfers the caller's weight along the delegation
// chain starting at target. Voting window only.
//
// If the resolved endpoint has already revealed, the caller's weight is added
// straight into the endpoint's recorded proposal count; otherwise it
// accumulates on the endpoint's weight and compounds into the endpoint's
// eventual reveal or further delegation.
func (c *BallotContract) Delegate(ctx contractapi.TransactionContextInterface, target string) error {
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
	if sender.Weight == 0 {
		return fmt.Errorf("%w: %s holds no weight", ErrNoRightToVote, caller)
	}
	if sender.Voted {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, caller)
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("%w: empty delegate identity", ErrInvalidDelegate)
	}
	if target == caller {
		return fmt.Errorf("%w: self-delegation", ErrDelegationCycle)
	}

	resolved, endpoint, err := resolveDelegate(ctx, caller, target)
	if err != nil {
		return err
	}
	if endpoint.Weight == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDelegate, resolved)
	}

	// All preconditions hold; mutations start here.
	sender.Voted = true
	sender.Delegate = resolved
	if err := saveVoter(ctx, caller, sender); err != nil {
		return err
	}

	if endpoint.Revealed {
		// The endpoint's choice is already public and counted; fold the
		// caller's weight into that count directly.
		p, err := loadProposal(ctx, cfg, endpoint.Choice)
		if err != nil {
			return err
		}
		p.VoteCount += sender.Weight
		if err := saveProposal(ctx, endpoint.Choice, p); err != nil {
			return err
		}
	} else {
		endpoint.Weight += sender.Weight
		if err := saveVoter(ctx, resolved, endpoint); err != nil {
			return err
		}
	}

	emit(ctx, cfg, eventVoteDelegated, map[string]any{"from": caller, "to": resolved})
	return nil
}

// resolveDelegate walks the chain of Delegate pointers from target to its
// non-delegating endpoint. Encountering the original caller anywhere on the
// chain is a cycle and aborts resolution.
func resolveDelegate(ctx contractapi.TransactionContextInterface, caller, target string) (string, *Voter, error) {
	resolved := target
	for {
		v, err := loadVoter(ctx, resolved)
		if err != nil {
			return "", nil, err
		}
		if v.Delegate == "" {
			return resolved, v, nil
		}
		resolved = v.Delegate
		if resolved == caller {
			return "", nil, fmt.Errorf("%w: chain returns to %s", ErrDelegationCycle, caller)
		}
	}
}
