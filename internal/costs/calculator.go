package costs

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stowaway-backend/pkg/config"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

var sixty = decimal.NewFromInt(60)

// Rates are worker compensation rates in dollars.
type Rates struct {
	FixedFee            decimal.Decimal
	Mileage             decimal.Decimal
	DrivePerHour        decimal.Decimal
	ServicePerHour      decimal.Decimal
	PartnerPerHour      decimal.Decimal
	PartnerMinimumHours decimal.Decimal
}

func RatesFromConfig(cfg config.RatesConfig) Rates {
	return Rates{
		FixedFee:            cfg.FixedFee,
		Mileage:             cfg.Mileage,
		DrivePerHour:        cfg.DrivePerHour,
		ServicePerHour:      cfg.ServicePerHour,
		PartnerPerHour:      cfg.PartnerPerHour,
		PartnerMinimumHours: cfg.PartnerMinimumHours,
	}
}

// Timing holds the best known event timestamps for a task.
type Timing struct {
	StartedAt   *time.Time
	ArrivedAt   *time.Time
	CompletedAt *time.Time
}

// Input describes one task leg to price.
type Input struct {
	Step                    int
	WorkerType              enums.WorkerType
	Timing                  Timing
	EstimatedDriveMinutes   *int
	EstimatedServiceMinutes *int
	EstimatedMiles          decimal.NullDecimal
	ReportedMiles           decimal.NullDecimal
	// PartnerHourlyRate overrides the default partner rate when set.
	PartnerHourlyRate decimal.NullDecimal
}

// Breakdown is the per-component pay for a task, each rounded to cents.
type Breakdown struct {
	FixedFee       decimal.Decimal
	Mileage        decimal.Decimal
	DriveTime      decimal.Decimal
	ServiceTime    decimal.Decimal
	Total          decimal.Decimal
	DriveMinutes   *int
	ServiceMinutes *int
	BilledMiles    decimal.Decimal
}

// Calculator prices tasks. It has no side effects.
type Calculator struct {
	rates Rates
}

func NewCalculator(rates Rates) Calculator {
	return Calculator{rates: rates}
}

func (c Calculator) Rates() Rates {
	return c.rates
}

// Calculate applies the per-step pay rules.
func (c Calculator) Calculate(in Input) Breakdown {
	var out Breakdown
	partner := in.WorkerType.IsPartner()

	switch in.Step {
	case 1:
		if !partner {
			out.FixedFee = c.rates.FixedFee.Round(2)
		}
	case 2:
		service := minutesOrEstimate(in.Timing.ArrivedAt, in.Timing.CompletedAt, in.EstimatedServiceMinutes)
		out.ServiceMinutes = service
		if partner {
			out.ServiceTime = c.partnerServicePay(service, in.PartnerHourlyRate)
			break
		}
		drive := minutesOrEstimate(in.Timing.StartedAt, in.Timing.ArrivedAt, in.EstimatedDriveMinutes)
		out.DriveMinutes = drive
		out.DriveTime = hourlyPay(drive, c.rates.DrivePerHour)
		out.ServiceTime = hourlyPay(service, c.rates.ServicePerHour)
		out.BilledMiles = billedMiles(in)
		out.Mileage = out.BilledMiles.Mul(c.rates.Mileage).Round(2)
	case 3:
		if partner {
			break
		}
		end := in.Timing.ArrivedAt
		if end == nil {
			end = in.Timing.CompletedAt
		}
		drive := minutesOrEstimate(in.Timing.StartedAt, end, in.EstimatedDriveMinutes)
		out.DriveMinutes = drive
		out.DriveTime = hourlyPay(drive, c.rates.DrivePerHour)
		out.BilledMiles = billedMiles(in)
		out.Mileage = out.BilledMiles.Mul(c.rates.Mileage).Round(2)
	}

	out.Total = out.FixedFee.Add(out.Mileage).Add(out.DriveTime).Add(out.ServiceTime)
	return out
}

func (c Calculator) partnerServicePay(minutes *int, override decimal.NullDecimal) decimal.Decimal {
	rate := c.rates.PartnerPerHour
	if override.Valid && override.Decimal.IsPositive() {
		rate = override.Decimal
	}
	hours := c.rates.PartnerMinimumHours
	if minutes != nil {
		worked := decimal.NewFromInt(int64(*minutes)).Div(sixty)
		hours = decimal.Max(hours, worked)
	}
	return hours.Mul(rate).Round(2)
}

// billedMiles prefers the stored estimate; the platform's reported distance is audit-only
// unless no estimate exists.
func billedMiles(in Input) decimal.Decimal {
	if in.EstimatedMiles.Valid {
		return in.EstimatedMiles.Decimal
	}
	if in.ReportedMiles.Valid {
		return in.ReportedMiles.Decimal
	}
	return decimal.Zero
}

func hourlyPay(minutes *int, perHour decimal.Decimal) decimal.Decimal {
	if minutes == nil || *minutes <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(*minutes)).Mul(perHour).Div(sixty).Round(2)
}

func minutesOrEstimate(from, to *time.Time, estimate *int) *int {
	if m := elapsedMinutes(from, to); m != nil {
		return m
	}
	if estimate != nil {
		v := *estimate
		return &v
	}
	return nil
}

func elapsedMinutes(from, to *time.Time) *int {
	if from == nil || to == nil || !to.After(*from) {
		return nil
	}
	m := int(math.Round(to.Sub(*from).Minutes()))
	return &m
}
