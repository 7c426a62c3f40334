package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// MockGateway is an in-memory Gateway for local runs and tests. Every
// initialized session verifies as DefaultOutcome unless overridden with
// SetOutcome.
type MockGateway struct {
	CheckoutBaseURL string
	DefaultOutcome  Outcome

	mu       sync.RWMutex
	sessions map[string]InitializeRequest
	outcomes map[string]Outcome
	verifies map[string]int
}

// NewMockGateway creates a MockGateway that approves every payment.
func NewMockGateway(checkoutBaseURL string) *MockGateway {
	return &MockGateway{
		CheckoutBaseURL: checkoutBaseURL,
		DefaultOutcome:  OutcomeSuccess,
		sessions:        make(map[string]InitializeRequest),
		outcomes:        make(map[string]Outcome),
		verifies:        make(map[string]int),
	}
}

// InitializePayment records the session and returns a checkout URL under
// CheckoutBaseURL. A reused reference is rejected.
func (g *MockGateway) InitializePayment(ctx context.Context, req InitializeRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.sessions[req.TxRef]; exists {
		return "", fmt.Errorf("transaction %s already initialized", req.TxRef)
	}
	g.sessions[req.TxRef] = req
	return g.CheckoutBaseURL + "/checkout/" + req.TxRef, nil
}

// VerifyPayment reports the outcome set for txRef, or DefaultOutcome.
// Unknown references verify as failed.
func (g *MockGateway) VerifyPayment(ctx context.Context, txRef string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.verifies[txRef]++
	session, ok := g.sessions[txRef]
	if !ok {
		return &Verification{TxRef: txRef, Outcome: OutcomeFailed, RawStatus: "not_found"}, nil
	}
	outcome, ok := g.outcomes[txRef]
	if !ok {
		outcome = g.DefaultOutcome
	}
	return &Verification{
		TxRef:     txRef,
		Outcome:   outcome,
		RawStatus: string(outcome),
		Amount:    session.Amount,
		Currency:  session.Currency,
	}, nil
}

// SetOutcome fixes what VerifyPayment reports for txRef.
func (g *MockGateway) SetOutcome(txRef string, outcome Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes[txRef] = outcome
}

// Session returns the request a transaction was initialized with.
func (g *MockGateway) Session(txRef string) (InitializeRequest, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	req, ok := g.sessions[txRef]
	return req, ok
}

// VerifyCalls reports how many times txRef was verified.
func (g *MockGateway) VerifyCalls(txRef string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.verifies[txRef]
}

// SessionAmount is a convenience for asserting the charged amount.
func (g *MockGateway) SessionAmount(txRef string) decimal.Decimal {
	req, _ := g.Session(txRef)
	return req.Amount
}
