// -----------------------------------------------------------------------------
// CommitBallot contract (Go, Fabric v3.1.1)
// Purpose: Implements a weighted, delegable commit-reveal ballot. Voters are
// Granted weight by the chairperson, may delegate it transitively, commit to a
// Hidden choice via a SHA-256 binding, and reveal it for tallying — all gated
// By two sequential time windows derived from the transaction timestamp.
// Role in system: The chaincode holds the entire voter/proposal state machine;
// The peer supplies atomic per-transaction storage, the caller's identity
// (GetCreator), the time oracle (GetTxTimestamp), and the event log (SetEvent).
// Key dependencies: Hyperledger Fabric contractapi; protos (msp) + protobuf for
// Creator identity parsing.
// -----------------------------------------------------------------------------

/*
ballot.go — contract struct, data model, phase machine, and registration path.

State layout (single namespace for this chaincode):
  - CONFIG        → ballotConfig JSON (chairperson, window boundaries, flags)
  - PROP::<%06d>  → Proposal JSON, fixed at construction; only VoteCount mutates
  - VTR::<id>     → Voter JSON; an absent key is a valid zero-valued voter

The chaincode does not expose any HTTP endpoints. A gateway/service is expected
to invoke these contract functions and subscribe to emitted events.
*/
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
	msp "github.com/hyperledger/fabric-protos-go-apiv2/msp"
	"google.golang.org/protobuf/proto"
)

/* Keys & constants */

const (
	keyConfig        = "CONFIG" // Singleton ballotConfig JSON
	keyProposalPrefx = "PROP::" // PROP::<%06d> → Proposal JSON
	keyVoterPrefix   = "VTR::"  // VTR::<identity> → Voter JSON

	maxProposalName = 32 // Bytes; names are short fixed-size identifiers
)

const (
	eventVotingStarted   = "VotingStarted"
	eventVoterRegistered = "VoterRegistered"
	eventVoteDelegated   = "VoteDelegated"
	eventVoteCast        = "VoteCast"
	eventVoteRevealed    = "VoteRevealed"
	eventVoteCancelled   = "VoteCancelled"
	eventVotingEnded     = "VotingEnded"
)

// Phase names exposed by GetVotingStatus.
const (
	phaseVoting = "voting"
	phaseReveal = "reveal"
	phaseEnded  = "ended"
)

/* Types & small data models */

// BallotContract implements the Fabric contract for the commit-reveal ballot.
//
// Responsibilities:
// - Bind the chairperson and the two window boundaries at construction.
// - Gate every public operation on phase and caller identity before mutating.
// - Keep the voter/delegation/commit-reveal state machine and the tally.
type BallotContract struct{ contractapi.Contract }

// ballotConfig is the singleton configuration record written once at InitBallot.
//
// VotingEnd/RevealEnd are unix seconds; together with the tx timestamp they
// partition time into voting → reveal → ended. EmitEvents mirrors the runtime
// toggle used elsewhere in this codebase family.
type ballotConfig struct {
	Chairperson string `json:"chairperson"`
	VotingEnd   int64  `json:"votingEnd"`
	RevealEnd   int64  `json:"revealEnd"`
	Proposals   uint64 `json:"proposals"`
	EmitEvents  bool   `json:"emitEvents"`
}

// Proposal is one immutable ballot option plus its weighted accumulator.
type Proposal struct {
	Name        string `json:"name"`
	VoteCount   uint64 `json:"voteCount"`
	Description string `json:"description"`
}

// Voter is the per-identity record. An identity with no stored record is a
// valid zero voter (weight 0, never granted). Commitment is the hex SHA-256
// binding of (choice, salt); empty means none.
type Voter struct {
	Weight     uint64 `json:"weight"`
	Voted      bool   `json:"voted"`
	Delegate   string `json:"delegate,omitempty"`
	Choice     uint64 `json:"choice"`
	Commitment string `json:"commitment,omitempty"`
	Revealed   bool   `json:"revealed"`
}

/* Small helpers */

// mustJSON marshals v and ignores errors (used for events and small writes).
func mustJSON(v any) []byte { b, _ := json.Marshal(v); return b }

// sha256Hex returns the SHA-256 hash of a byte slice, hex-encoded.
func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// propKey builds the world-state key for proposal i. Zero-padding keeps range
// scans in registration order.
func propKey(i uint64) string { return fmt.Sprintf("%s%06d", keyProposalPrefx, i) }

// voterKey builds the world-state key for an identity's voter record.
func voterKey(identity string) string { return keyVoterPrefix + identity }

// txNow returns the transaction timestamp as unix seconds. The orderer
// guarantees it is non-decreasing across the channel's transactions.
func txNow(ctx contractapi.TransactionContextInterface) (int64, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return 0, fmt.Errorf("tx timestamp: %w", err)
	}
	return ts.GetSeconds(), nil
}

// nowRFC3339 renders the transaction timestamp for event payloads.
func nowRFC3339(ctx contractapi.TransactionContextInterface) string {
	ts, _ := ctx.GetStub().GetTxTimestamp()
	return time.Unix(ts.GetSeconds(), int64(ts.GetNanos())).UTC().Format(time.RFC3339)
}

// callerID derives the acting identity from the transaction creator:
// MSPID::sha256(certBytes). The hash keeps the key short and stable while the
// MSP prefix keeps identities from distinct orgs disjoint.
func callerID(ctx contractapi.TransactionContextInterface) (string, error) {
	creator, err := ctx.GetStub().GetCreator()
	if err != nil {
		return "", fmt.Errorf("get creator: %w", err)
	}
	var sid msp.SerializedIdentity
	if err := proto.Unmarshal(creator, &sid); err != nil {
		return "", fmt.Errorf("creator unmarshal: %w", err)
	}
	if sid.Mspid == "" || len(sid.IdBytes) == 0 {
		return "", fmt.Errorf("creator identity empty")
	}
	return sid.Mspid + "::" + sha256Hex(sid.IdBytes), nil
}

/* State access */

// loadConfig reads the singleton config; a missing record means the ballot was
// never constructed.
func loadConfig(ctx contractapi.TransactionContextInterface) (*ballotConfig, error) {
	raw, err := ctx.GetStub().GetState(keyConfig)
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: ballot not initialized", ErrConfiguration)
	}
	var cfg ballotConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config json: %w", err)
	}
	return &cfg, nil
}

// loadVoter reads a voter record; an absent key yields the zero voter.
func loadVoter(ctx contractapi.TransactionContextInterface, identity string) (*Voter, error) {
	raw, err := ctx.GetStub().GetState(voterKey(identity))
	if err != nil {
		return nil, fmt.Errorf("get voter: %w", err)
	}
	v := &Voter{}
	if raw == nil {
		return v, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("voter json: %w", err)
	}
	return v, nil
}

func saveVoter(ctx contractapi.TransactionContextInterface, identity string, v *Voter) error {
	return ctx.GetStub().PutState(voterKey(identity), mustJSON(v))
}

// loadProposal reads proposal i, failing on out-of-range indexes.
func loadProposal(ctx contractapi.TransactionContextInterface, cfg *ballotConfig, i uint64) (*Proposal, error) {
	if i >= cfg.Proposals {
		return nil, fmt.Errorf("%w: index %d of %d", ErrInvalidProposal, i, cfg.Proposals)
	}
	raw, err := ctx.GetStub().GetState(propKey(i))
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("proposal %d missing", i)
	}
	var p Proposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("proposal json: %w", err)
	}
	return &p, nil
}

func saveProposal(ctx contractapi.TransactionContextInterface, i uint64, p *Proposal) error {
	return ctx.GetStub().PutState(propKey(i), mustJSON(p))
}

/* Phase machine */

// phaseAt maps a timestamp to its phase. Boundaries are half-open: a call at
// exactly votingEnd is already in the reveal window, and at exactly revealEnd
// the ballot has ended.
func phaseAt(cfg *ballotConfig, now int64) string {
	switch {
	case now < cfg.VotingEnd:
		return phaseVoting
	case now < cfg.RevealEnd:
		return phaseReveal
	default:
		return phaseEnded
	}
}

// requirePhase loads config and time and checks the operation's permitted phase.
// Returns the config and current time so callers avoid duplicate reads.
func requirePhase(ctx contractapi.TransactionContextInterface, want string) (*ballotConfig, int64, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, 0, err
	}
	now, err := txNow(ctx)
	if err != nil {
		return nil, 0, err
	}
	if got := phaseAt(cfg, now); got != want {
		return nil, 0, fmt.Errorf("%w: need %s phase, currently %s", ErrWrongPhase, want, got)
	}
	return cfg, now, nil
}

// emit writes a chaincode event when the config toggle allows it.
func emit(ctx contractapi.TransactionContextInterface, cfg *ballotConfig, name string, payload map[string]any) {
	if cfg != nil && !cfg.EmitEvents {
		return
	}
	payload["time"] = nowRFC3339(ctx)
	_ = ctx.GetStub().SetEvent(name, mustJSON(payload))
}

/* Construction */

// InitBallot constructs the ballot: an ordered, immutable proposal list and the
// two window boundaries. The caller becomes the chairperson and is pre-granted
// weight 1. Callable exactly once.
//
// namesJSON and descriptionsJSON are equal-length JSON string arrays;
// votingSeconds and revealSeconds are the (positive) window durations.
func (c *BallotContract) InitBallot(
	ctx contractapi.TransactionContextInterface,
	namesJSON, descriptionsJSON string,
	votingSeconds, revealSeconds uint64,
) error {
	existing, err := ctx.GetStub().GetState(keyConfig)
	if err != nil {
		return fmt.Errorf("get config: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: ballot already initialized", ErrConfiguration)
	}

	var names, descs []string
	if err := json.Unmarshal([]byte(namesJSON), &names); err != nil {
		return fmt.Errorf("%w: parse names: %v", ErrConfiguration, err)
	}
	if err := json.Unmarshal([]byte(descriptionsJSON), &descs); err != nil {
		return fmt.Errorf("%w: parse descriptions: %v", ErrConfiguration, err)
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: empty proposal list", ErrConfiguration)
	}
	if len(names) != len(descs) {
		return fmt.Errorf("%w: %d names vs %d descriptions", ErrConfiguration, len(names), len(descs))
	}
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%w: proposal %d has empty name", ErrConfiguration, i)
		}
		if len(n) > maxProposalName {
			return fmt.Errorf("%w: proposal name %q exceeds %d bytes", ErrConfiguration, n, maxProposalName)
		}
	}
	if votingSeconds == 0 || revealSeconds == 0 {
		return fmt.Errorf("%w: window durations must be positive", ErrConfiguration)
	}

	chair, err := callerID(ctx)
	if err != nil {
		return err
	}
	now, err := txNow(ctx)
	if err != nil {
		return err
	}

	cfg := &ballotConfig{
		Chairperson: chair,
		VotingEnd:   now + int64(votingSeconds),
		RevealEnd:   now + int64(votingSeconds) + int64(revealSeconds),
		Proposals:   uint64(len(names)),
		EmitEvents:  true,
	}
	if err := ctx.GetStub().PutState(keyConfig, mustJSON(cfg)); err != nil {
		return err
	}
	for i := range names {
		p := &Proposal{Name: names[i], Description: descs[i]}
		if err := saveProposal(ctx, uint64(i), p); err != nil {
			return err
		}
	}
	// The chairperson holds one unit of weight from the start.
	if err := saveVoter(ctx, chair, &Voter{Weight: 1}); err != nil {
		return err
	}

	emit(ctx, cfg, eventVotingStarted, map[string]any{
		"votingEnd": cfg.VotingEnd,
		"revealEnd": cfg.RevealEnd,
	})
	return nil
}

/* Registration */

// GrantRight gives one unit of voting weight to an identity. Chairperson-only,
// voting window only, one grant per identity for its lifetime.
func (c *BallotContract) GrantRight(ctx contractapi.TransactionContextInterface, identity string) error {
	cfg, _, err := requirePhase(ctx, phaseVoting)
	if err != nil {
		return err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	if caller != cfg.Chairperson {
		return fmt.Errorf("%w: only the chairperson may grant voting rights", ErrUnauthorized)
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return fmt.Errorf("%w: empty identity", ErrInvalidDelegate)
	}
	target, err := loadVoter(ctx, identity)
	if err != nil {
		return err
	}
	if target.Weight > 0 || target.Voted {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, identity)
	}
	target.Weight = 1
	if err := saveVoter(ctx, identity, target); err != nil {
		return err
	}

	emit(ctx, cfg, eventVoterRegistered, map[string]any{"voter": identity})
	return nil
}

/* Queries */

// GetVotingStatus reports the current phase as a plain string.
func (c *BallotContract) GetVotingStatus(ctx contractapi.TransactionContextInterface) (string, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return "", err
	}
	now, err := txNow(ctx)
	if err != nil {
		return "", err
	}
	return phaseAt(cfg, now), nil
}

// GetVoter returns any identity's voter record. Identities never granted
// weight read back as the zero voter.
func (c *BallotContract) GetVoter(ctx contractapi.TransactionContextInterface, identity string) (*Voter, error) {
	if _, err := loadConfig(ctx); err != nil {
		return nil, err
	}
	return loadVoter(ctx, identity)
}

// GetProposal returns proposal fields by registration index.
func (c *BallotContract) GetProposal(ctx contractapi.TransactionContextInterface, index uint64) (*Proposal, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return loadProposal(ctx, cfg, index)
}

/* Health */

// Ping is a simple health check used by deployment tooling and test harnesses.
func (c *BallotContract) Ping(ctx contractapi.TransactionContextInterface) (string, error) {
	return "OK:" + ctx.GetStub().GetTxID(), nil
}
