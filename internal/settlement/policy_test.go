package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func testFormula() RouteFormula {
	return RouteFormula{BaseRate: dec("20"), StopFee: dec("2"), MileageRate: dec("0.67"), TimeRate: dec("14")}
}

func TestRouteFormulaTotal(t *testing.T) {
	got := testFormula().Total(5, dec("42.3"), dec("2"))
	if !got.Equal(dec("86.34")) {
		t.Fatalf("expected 86.34, got %s", got)
	}
}

func TestFeePolicy(t *testing.T) {
	policy := FeePolicy{Percent: dec("3"), Floor: dec("0.30")}
	cases := []struct {
		gross string
		want  string
	}{
		{"39.70", "1.19"},
		{"5.00", "0.30"},
		{"0.20", "0.20"},
		{"0", "0"},
	}
	for _, tc := range cases {
		if got := policy.Fee(dec(tc.gross)); !got.Equal(dec(tc.want)) {
			t.Fatalf("fee(%s): expected %s, got %s", tc.gross, tc.want, got)
		}
	}

	if got := (FeePolicy{Floor: dec("0.30")}).Fee(dec("10")); !got.IsZero() {
		t.Fatalf("zero percent should waive the fee, got %s", got)
	}
}

func TestSplitEvenlyKeepsCents(t *testing.T) {
	shares := SplitEvenly(dec("86.34"), 5)
	if len(shares) != 5 {
		t.Fatalf("expected 5 shares, got %d", len(shares))
	}
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	if !sum.Equal(dec("86.34")) {
		t.Fatalf("shares must add back to the total, got %s", sum)
	}
	if !shares[0].Equal(dec("17.26")) || !shares[4].Equal(dec("17.30")) {
		t.Fatalf("unexpected shares %v", shares)
	}
	if SplitEvenly(dec("10"), 0) != nil {
		t.Fatal("expected nil for zero stops")
	}
}

func TestIdempotencyKeysAreDeterministic(t *testing.T) {
	id := uuid.MustParse("2f1c6a52-6c1a-4f63-8c1e-0d3b2d8d4a11")
	if JobIdempotencyKey(id) != "job-payout-2f1c6a52-6c1a-4f63-8c1e-0d3b2d8d4a11" {
		t.Fatalf("unexpected job key %s", JobIdempotencyKey(id))
	}
	if RouteIdempotencyKey(id) != "route-payout-2f1c6a52-6c1a-4f63-8c1e-0d3b2d8d4a11" {
		t.Fatalf("unexpected route key %s", RouteIdempotencyKey(id))
	}
	if FormatDollars(3851) != "$38.51" {
		t.Fatalf("unexpected dollars %s", FormatDollars(3851))
	}
}
