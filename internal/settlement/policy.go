package settlement

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stowaway-backend/pkg/config"
)

var hundred = decimal.NewFromInt(100)

// FeePolicy is the platform's cut of a job payout: a percentage with a minimum floor.
type FeePolicy struct {
	Percent decimal.Decimal
	Floor   decimal.Decimal
}

func FeePolicyFromConfig(cfg config.PayoutConfig) FeePolicy {
	return FeePolicy{Percent: cfg.PlatformFeePercent, Floor: cfg.PlatformFeeFloor}
}

// Fee never exceeds the gross amount.
func (p FeePolicy) Fee(gross decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() || p.Percent.IsZero() {
		return decimal.Zero
	}
	fee := gross.Mul(p.Percent).Div(hundred).Round(2)
	if fee.LessThan(p.Floor) {
		fee = p.Floor
	}
	if fee.GreaterThan(gross) {
		fee = gross
	}
	return fee
}

// RouteFormula prices a multi-stop packing-supply route.
type RouteFormula struct {
	BaseRate    decimal.Decimal
	StopFee     decimal.Decimal
	MileageRate decimal.Decimal
	TimeRate    decimal.Decimal
}

func RouteFormulaFromConfig(cfg config.RoutePayoutConfig) RouteFormula {
	return RouteFormula{
		BaseRate:    cfg.BaseRate,
		StopFee:     cfg.StopFee,
		MileageRate: cfg.MileageRate,
		TimeRate:    cfg.TimeRate,
	}
}

// Total = base + stopFee*stops + mileageRate*miles + timeRate*hours, rounded to cents.
func (f RouteFormula) Total(stops int, miles, hours decimal.Decimal) decimal.Decimal {
	total := f.BaseRate.
		Add(f.StopFee.Mul(decimal.NewFromInt(int64(stops)))).
		Add(f.MileageRate.Mul(miles)).
		Add(f.TimeRate.Mul(hours))
	return total.Round(2)
}

// SplitEvenly divides amount into n cent-exact shares; the last share absorbs the remainder.
func SplitEvenly(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	cents := ToCents(amount)
	base := cents / int64(n)
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = decimal.New(base, -2)
	}
	shares[n-1] = decimal.New(cents-base*int64(n-1), -2)
	return shares
}

// ToCents converts dollars to integer minor units.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FormatDollars renders cents as "$38.51" for notifications.
func FormatDollars(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

// JobIdempotencyKey is stable per appointment so one job can never produce two transfers.
func JobIdempotencyKey(appointmentID uuid.UUID) string {
	return fmt.Sprintf("job-payout-%s", appointmentID)
}

func RouteIdempotencyKey(routeID uuid.UUID) string {
	return fmt.Sprintf("route-payout-%s", routeID)
}
