package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrTimeout is wrapped into errors caused by the provider not answering in time.
var ErrTimeout = errors.New("payment gateway timed out")

// Outcome is the provider's verdict on a transaction.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

// InitializeRequest describes the hosted payment session to open.
type InitializeRequest struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Amount      decimal.Decimal
	Currency    string
	TxRef       string
	CallbackURL string
	ReturnURL   string
}

// Verification is what the provider reports for a transaction reference.
type Verification struct {
	TxRef     string
	Outcome   Outcome
	RawStatus string
	Amount    decimal.Decimal
	Currency  string
}

// Gateway opens payment sessions and verifies their result.
type Gateway interface {
	// InitializePayment returns the hosted checkout URL for the request.
	InitializePayment(ctx context.Context, req InitializeRequest) (string, error)
	// VerifyPayment asks the provider for the authoritative status of txRef.
	VerifyPayment(ctx context.Context, txRef string) (*Verification, error)
}
