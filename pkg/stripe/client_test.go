package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v82"

	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
)

func TestCreateTransferBuildsParams(t *testing.T) {
	var captured *stripe.TransferParams
	client := newClient(testEnv, func(params *stripe.TransferParams) (*stripe.Transfer, error) {
		captured = params
		return &stripe.Transfer{ID: "tr_123"}, nil
	}, nil)

	id, err := client.CreateTransfer(context.Background(), TransferParams{
		AmountCents:    3851,
		Destination:    "acct_1",
		IdempotencyKey: "job-payout-abc",
		Metadata:       map[string]string{"appointment_id": "abc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "tr_123" {
		t.Fatalf("expected transfer id tr_123, got %q", id)
	}
	if *captured.Amount != 3851 || *captured.Destination != "acct_1" {
		t.Fatalf("unexpected params amount=%d destination=%s", *captured.Amount, *captured.Destination)
	}
	if *captured.Currency != "usd" {
		t.Fatalf("expected default currency usd, got %s", *captured.Currency)
	}
	if captured.IdempotencyKey == nil || *captured.IdempotencyKey != "job-payout-abc" {
		t.Fatalf("expected idempotency key to be forwarded")
	}
}

func TestCreateTransferRejectsEmptyAmount(t *testing.T) {
	client := newClient(testEnv, func(*stripe.TransferParams) (*stripe.Transfer, error) {
		t.Fatal("stripe should not be called")
		return nil, nil
	}, nil)

	_, err := client.CreateTransfer(context.Background(), TransferParams{Destination: "acct_1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateTransferMapsStripeErrors(t *testing.T) {
	client := newClient(testEnv, func(*stripe.TransferParams) (*stripe.Transfer, error) {
		return nil, &stripe.Error{Code: stripe.ErrorCodeBalanceInsufficient, HTTPStatusCode: 400, Msg: "insufficient"}
	}, nil)

	_, err := client.CreateTransfer(context.Background(), TransferParams{AmountCents: 100, Destination: "acct_1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	client := newClient(testEnv, func(*stripe.TransferParams) (*stripe.Transfer, error) {
		calls++
		return nil, errors.New("connection reset")
	}, nil)

	for i := 0; i < 8; i++ {
		_, _ = client.CreateTransfer(context.Background(), TransferParams{AmountCents: 100, Destination: "acct_1"})
	}
	if calls != 6 {
		t.Fatalf("expected breaker to stop calls after 6 failures, got %d", calls)
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := validateAPIKey(testEnv, "sk_live_123"); err == nil {
		t.Fatal("expected live key to be rejected in test env")
	}
	if err := validateAPIKey(liveEnv, "rk_live_123"); err != nil {
		t.Fatalf("expected restricted live key to pass: %v", err)
	}
}
