// Harness_test.go
//
// Purpose: Minimal, deterministic test harness for the CommitBallot chaincode.
// Role: Provides an in-memory world-state “ledger”, a mocked Fabric
// ChaincodeStub (via gomock), a registry of named caller identities, and a
// Settable transaction clock. It lets tests drive the contract through the
// Voting/reveal/ended windows without real peers, orderers, or crypto material.
// Key deps:
// - Hyperledger Fabric Go SDKs: chaincode-go/shim, contractapi, protos (msp)
// - gomock for stub expectations and return paths
// - Google protobuf/timestamppb for stable TxTimestamp values
// - Local fakes package: github.com/yourorg/commitballot_cc/fakes (mock stub interface)
// Notes:
// - This harness makes defensive copies of byte slices to avoid aliasing between
// The test code and the “ledger” maps.
// - Caller certificates are generated once per logical name and cached, so an
// Identity string stays stable for the lifetime of a harness.

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"strings"
	testing "testing"
	"time"

	msp "github.com/hyperledger/fabric-protos-go-apiv2/msp"

	"github.com/golang/mock/gomock"
	"github.com/hyperledger/fabric-chaincode-go/v2/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/v2/shim"
	contractapi "github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	f "github.com/yourorg/commitballot_cc/fakes"
)

const (
	testMSP        = "TestMSP"
	testStartTime  int64 = 1763173800
	testVotingSecs uint64 = 3600
	testRevealSecs uint64 = 1800

	testSalt1 = "aa11aa11aa11aa11"
	testSalt2 = "bb22bb22bb22bb22"
)

/* in-memory WS harness */

// MemWorld is a tiny in-memory ledger used by the mock stub.
// It tracks world state (ws), emitted events, and op counts.
type memWorld struct {
	ws     map[string][]byte
	events []struct {
		name    string
		payload []byte
	}
	opsCounts struct {
		getState, putState int
		setEvent           int
	}
}

// NewMemWorld allocates an empty memWorld.
// Params: none.
// Returns: pointer to a zeroed, ready-to-use memWorld.
func newMemWorld() *memWorld {
	return &memWorld{ws: make(map[string][]byte)}
}

// GetState simulates GetState on the in-mem world state.
// Copies the value before returning to avoid aliasing in tests.
// Params: key (string).
// Returns: value ([]byte) or nil, error (always nil here).
func (m *memWorld) getState(key string) ([]byte, error) {
	m.opsCounts.getState++
	if v, ok := m.ws[key]; ok {
		return append([]byte(nil), v...), nil // Copy for safety
	}
	return nil, nil
}

// PutState simulates PutState on the in-mem world state.
// Params: key, value.
// Returns: error (always nil here).
func (m *memWorld) putState(key string, val []byte) error {
	m.opsCounts.putState++
	m.ws[key] = append([]byte(nil), val...) // Copy for safety
	return nil
}

// SetEvent records a chaincode event into the in-mem log.
// Params: name, payload.
// Returns: error (always nil here).
func (m *memWorld) setEvent(name string, payload []byte) error {
	m.opsCounts.setEvent++
	m.events = append(m.events, struct {
		name    string
		payload []byte
	}{name: name, payload: append([]byte(nil), payload...)}) // Copy for safety
	return nil
}

/* tx context w/ real stub (no gomock ctx) */

// SimpleTxCtx adapts a raw shim.ChaincodeStubInterface to a contractapi TransactionContext.
// It keeps the shape tiny because tests only need GetStub.
type simpleTxCtx struct{ s shim.ChaincodeStubInterface }

// GetStub returns the underlying ChaincodeStubInterface.
func (c *simpleTxCtx) GetStub() shim.ChaincodeStubInterface { return c.s }

// GetClientIdentity is not used by the tests; it returns nil to satisfy the interface.
func (c *simpleTxCtx) GetClientIdentity() cid.ClientIdentity { return nil }

/* test harness (single definition) */

// TestHarness bundles the mock controller, stub, in-mem ledger, and the contract
// Under test. The mutable caller/now/txID fields let tests act as different
// Identities at different points in the ballot's timeline.
type testHarness struct {
	ctrl   *gomock.Controller
	ctx    contractapi.TransactionContextInterface
	stub   *f.MockChaincodeStubInterface
	mem    *memWorld
	cc     *BallotContract
	t      *testing.T
	txID   string
	caller string            // Logical name of the acting identity
	now    int64             // Unix seconds reported by GetTxTimestamp
	ids    map[string][]byte // Logical name → cached serialized creator
}

// newHarness builds a mocked Fabric transaction context for unit tests.
// It wires world state, events, creator, and the tx clock to harness fields so
// Tests flip callers and advance time between invocations.
func newHarness(t *testing.T) *testHarness {
	t.Helper()

	ctrl := gomock.NewController(t)
	stub := f.NewMockChaincodeStubInterface(ctrl)
	txctx := &simpleTxCtx{s: stub}
	mem := newMemWorld()

	h := &testHarness{
		ctrl: ctrl, ctx: txctx, stub: stub, mem: mem,
		cc: new(BallotContract), t: t, txID: "tx-0001",
		caller: "chair", now: testStartTime,
		ids: make(map[string][]byte),
	}

	// Creator follows the harness's current caller name.
	stub.EXPECT().GetCreator().AnyTimes().DoAndReturn(func() ([]byte, error) {
		return h.creatorFor(h.caller), nil
	})

	// Return the current harness txID; tests may override it per case.
	stub.EXPECT().GetTxID().AnyTimes().DoAndReturn(func() string { return h.txID })

	// The tx clock is the harness's now field; advance() moves it forward.
	stub.EXPECT().
		GetTxTimestamp().
		AnyTimes().
		DoAndReturn(func() (*timestamppb.Timestamp, error) {
			return &timestamppb.Timestamp{Seconds: h.now}, nil
		})

	// Wire world state to the in-mem map.
	stub.EXPECT().GetState(gomock.Any()).AnyTimes().DoAndReturn(mem.getState)
	stub.EXPECT().PutState(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(mem.putState)

	// Capture events into the in-mem log for assertions.
	stub.EXPECT().SetEvent(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(mem.setEvent)

	return h
}

/* identities */

// CreatorFor returns the cached serialized creator for a logical name,
// Generating a fresh self-signed cert on first use.
// Params: name.
// Returns: raw serialized identity bytes.
func (h *testHarness) creatorFor(name string) []byte {
	if b, ok := h.ids[name]; ok {
		return b
	}
	b := devSerializedIdentity(testMSP)
	h.ids[name] = b
	return b
}

// IdOf returns the contract-visible identity string for a logical name.
// Params: name.
// Returns: MSPID::sha256(certBytes) string.
func (h *testHarness) idOf(name string) string {
	var sid msp.SerializedIdentity
	if err := proto.Unmarshal(h.creatorFor(name), &sid); err != nil {
		h.t.Fatalf("bad cached creator for %s: %v", name, err)
	}
	return sid.Mspid + "::" + sha256Hex(sid.IdBytes)
}

// As switches the acting identity for subsequent contract calls.
// Params: name.
// Returns: none.
func (h *testHarness) as(name string) { h.caller = name }

/* time */

// Advance moves the tx clock forward by secs seconds.
// Params: secs.
// Returns: none.
func (h *testHarness) advance(secs int64) { h.now += secs }

/* contract call wrappers */

// InitDefaultBallot constructs the canonical two-proposal ballot as the chair.
// Params: none.
// Returns: error from InitBallot.
func (h *testHarness) initDefaultBallot() error {
	h.as("chair")
	return h.cc.InitBallot(h.ctx,
		`["A","B"]`, `["Proposal A","Proposal B"]`,
		testVotingSecs, testRevealSecs)
}

// Grant gives one unit of weight to the named identity, acting as the chair.
// Params: name.
// Returns: error from GrantRight.
func (h *testHarness) grant(name string) error {
	h.as("chair")
	return h.cc.GrantRight(h.ctx, h.idOf(name))
}

// CommitAs computes the binding for (index, saltHex) and commits it as name.
// Params: name, index, saltHex.
// Returns: error from Commit.
func (h *testHarness) commitAs(name string, index uint64, saltHex string) error {
	h.as(name)
	return h.cc.Commit(h.ctx, commitHexFor(h.t, index, saltHex))
}

// RevealAs discloses (index, saltHex) as name.
// Params: name, index, saltHex.
// Returns: error from Reveal.
func (h *testHarness) revealAs(name string, index uint64, saltHex string) error {
	h.as(name)
	return h.cc.Reveal(h.ctx, index, saltHex)
}

// DelegateAs delegates name's weight toward the named target identity.
// Params: name, target.
// Returns: error from Delegate.
func (h *testHarness) delegateAs(name, target string) error {
	h.as(name)
	return h.cc.Delegate(h.ctx, h.idOf(target))
}

/* state readback */

// VoterRec reads a voter record for a logical name straight from the in-mem
// Ledger, bypassing the contract. Fails the test on malformed JSON; an absent
// Key reads back as the zero voter, matching the contract's own semantics.
// Params: name.
// Returns: Voter value.
func (h *testHarness) voterRec(name string) Voter {
	h.t.Helper()
	raw, ok := h.mem.ws[voterKey(h.idOf(name))]
	if !ok {
		return Voter{}
	}
	var v Voter
	if err := json.Unmarshal(raw, &v); err != nil {
		h.t.Fatalf("bad voter json for %s: %v", name, err)
	}
	return v
}

// PropRec reads proposal i straight from the in-mem ledger.
// Params: i.
// Returns: Proposal value.
func (h *testHarness) propRec(i uint64) Proposal {
	h.t.Helper()
	raw, ok := h.mem.ws[propKey(i)]
	if !ok {
		h.t.Fatalf("missing proposal key %s", propKey(i))
	}
	var p Proposal
	if err := json.Unmarshal(raw, &p); err != nil {
		h.t.Fatalf("bad proposal json for %d: %v", i, err)
	}
	return p
}

// ForceVoter writes a voter record directly into the ledger, bypassing every
// Contract precondition. Used to reach states the phase gates make otherwise
// Unreachable.
// Params: name, v.
// Returns: none.
func (h *testHarness) forceVoter(name string, v *Voter) {
	h.t.Helper()
	if err := h.mem.putState(voterKey(h.idOf(name)), mustJSON(v)); err != nil {
		h.t.Fatalf("force voter: %v", err)
	}
}

// HasEvent reports whether an event with the given name was emitted.
// Params: name.
// Returns: bool.
func (h *testHarness) hasEvent(name string) bool {
	for _, e := range h.mem.events {
		if e.name == name {
			return true
		}
	}
	return false
}

// LastEventPayload returns the payload of the most recent event with the given
// Name, unmarshalled into a generic map. Fails the test if absent.
// Params: name.
// Returns: payload map.
func (h *testHarness) lastEventPayload(name string) map[string]any {
	h.t.Helper()
	for i := len(h.mem.events) - 1; i >= 0; i-- {
		if h.mem.events[i].name == name {
			var p map[string]any
			if err := json.Unmarshal(h.mem.events[i].payload, &p); err != nil {
				h.t.Fatalf("bad event payload for %s: %v", name, err)
			}
			return p
		}
	}
	h.t.Fatalf("no %s event emitted", name)
	return nil
}

/* small helpers */

// SetTxID overrides the txID seen by the contract for the next operations.
// Params: id.
// Returns: none.
func (h *testHarness) setTxID(id string) { h.txID = id }

// CommitHexFor recomputes the commitment digest for a (index, saltHex) pair
// The way a client would before calling Commit.
// Params: t, index, saltHex.
// Returns: hex digest string.
func commitHexFor(t *testing.T, index uint64, saltHex string) string {
	t.Helper()
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		t.Fatalf("bad test salt %q: %v", saltHex, err)
	}
	return commitmentDigest(index, salt)
}

// RequireNoErr fails the test immediately if err != nil, labeling it unexpected.
// Params: t, err.
// Returns: none.
func requireNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// RequireErrContains asserts that err is non-nil and its message contains wantSubstr (case-insensitive).
// Params: t, err, wantSubstr (may be empty to assert only non-nil).
// Returns: none.
func requireErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", wantSubstr)
	}
	if wantSubstr != "" && !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(wantSubstr)) {
		t.Fatalf("error %q does not contain %q", err.Error(), wantSubstr)
	}
}

/* identity helper */

// DevSerializedIdentity generates a minimal SerializedIdentity with a self-signed cert.
// It’s good enough for GetCreator parsing in contract code.
// Params: ms (MSP ID).
// Returns: raw serialized identity bytes.
func devSerializedIdentity(ms string) []byte {
	key, _ := rsa.GenerateKey(rand.Reader, 1024)
	tpl := &x509.Certificate{SerialNumber: big.NewInt(1), NotBefore: time.Now().Add(-time.Hour), NotAfter: time.Now().Add(time.Hour)}
	der, _ := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	pemCert := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	sid := &msp.SerializedIdentity{Mspid: ms, IdBytes: pemCert}
	b, _ := proto.Marshal(sid)
	return b
}
