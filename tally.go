/*
tally.go — winner computation over the fixed proposal list.

The scan is a pure read bounded by the proposal count; ties break toward the
earliest registration index (a later proposal with an equal count never
displaces the leader).
*/
package main

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

// WinningProposal returns the index of the proposal with the highest weighted
// count. Fails until the reveal window has closed.
func (c *BallotContract) WinningProposal(ctx contractapi.TransactionContextInterface) (uint64, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return 0, err
	}
	now, err := txNow(ctx)
	if err != nil {
		return 0, err
	}
	if now < cfg.RevealEnd {
		return 0, fmt.Errorf("%w: reveal window closes at %d", ErrVotingNotFinished, cfg.RevealEnd)
	}

	var winner uint64
	var best uint64
	for i := uint64(0); i < cfg.Proposals; i++ {
		p, err := loadProposal(ctx, cfg, i)
		if err != nil {
			return 0, err
		}
		// Strict > keeps the first index on ties.
		if p.VoteCount > best {
			best = p.VoteCount
			winner = i
		}
	}

	emit(ctx, cfg, eventVotingEnded, map[string]any{"winner": winner})
	return winner, nil
}

// WinnerName returns the winning proposal's name. Same failure condition as
// WinningProposal.
func (c *BallotContract) WinnerName(ctx contractapi.TransactionContextInterface) (string, error) {
	idx, err := c.WinningProposal(ctx)
	if err != nil {
		return "", err
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return "", err
	}
	p, err := loadProposal(ctx, cfg, idx)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

// WinnerDescription returns the winning proposal's description.
func (c *BallotContract) WinnerDescription(ctx contractapi.TransactionContextInterface) (string, error) {
	idx, err := c.WinningProposal(ctx)
	if err != nil {
		return "", err
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return "", err
	}
	p, err := loadProposal(ctx, cfg, idx)
	if err != nil {
		return "", err
	}
	return p.Description, nil
}
