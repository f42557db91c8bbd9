package costs

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

func testRates() Rates {
	return Rates{
		FixedFee:            decimal.RequireFromString("10.00"),
		Mileage:             decimal.RequireFromString("0.67"),
		DrivePerHour:        decimal.RequireFromString("18"),
		ServicePerHour:      decimal.RequireFromString("18"),
		PartnerPerHour:      decimal.RequireFromString("50"),
		PartnerMinimumHours: decimal.NewFromInt(1),
	}
}

func at(minute int) *time.Time {
	ts := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
	return &ts
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func assertMoney(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", name, want, got.StringFixed(2))
	}
}

func TestIndependentServiceScenario(t *testing.T) {
	calc := NewCalculator(testRates())
	got := calc.Calculate(Input{
		Step:           2,
		WorkerType:     enums.WorkerTypeIndependent,
		Timing:         Timing{StartedAt: at(0), ArrivedAt: at(20), CompletedAt: at(110)},
		EstimatedMiles: decimal.NewNullDecimal(dec("10")),
	})

	assertMoney(t, "mileage", got.Mileage, "6.70")
	assertMoney(t, "drive", got.DriveTime, "6.00")
	assertMoney(t, "service", got.ServiceTime, "27.00")
	assertMoney(t, "total", got.Total, "39.70")
	if *got.DriveMinutes != 20 || *got.ServiceMinutes != 90 {
		t.Fatalf("unexpected minutes drive=%d service=%d", *got.DriveMinutes, *got.ServiceMinutes)
	}
}

func TestMileageUsesEstimateOverReportedDistance(t *testing.T) {
	calc := NewCalculator(testRates())
	got := calc.Calculate(Input{
		Step:           3,
		WorkerType:     enums.WorkerTypeIndependent,
		Timing:         Timing{StartedAt: at(0), CompletedAt: at(30)},
		EstimatedMiles: decimal.NewNullDecimal(dec("10")),
		ReportedMiles:  decimal.NewNullDecimal(dec("14.8")),
	})
	assertMoney(t, "mileage", got.Mileage, "6.70")

	fallback := calc.Calculate(Input{
		Step:          3,
		WorkerType:    enums.WorkerTypeIndependent,
		ReportedMiles: decimal.NewNullDecimal(dec("10")),
	})
	assertMoney(t, "reported fallback", fallback.Mileage, "6.70")
}

func TestStepPayRules(t *testing.T) {
	calc := NewCalculator(testRates())
	driveEstimate := 40

	step1 := calc.Calculate(Input{Step: 1, WorkerType: enums.WorkerTypeIndependent, Timing: Timing{StartedAt: at(0), CompletedAt: at(45)}})
	assertMoney(t, "step1 independent", step1.Total, "10.00")
	assertMoney(t, "step1 drive", step1.DriveTime, "0")

	step3 := calc.Calculate(Input{
		Step:                  3,
		WorkerType:            enums.WorkerTypeIndependent,
		EstimatedDriveMinutes: &driveEstimate,
		EstimatedMiles:        decimal.NewNullDecimal(dec("12")),
	})
	assertMoney(t, "step3 drive", step3.DriveTime, "12.00")
	assertMoney(t, "step3 mileage", step3.Mileage, "8.04")
	assertMoney(t, "step3 total", step3.Total, "20.04")
	assertMoney(t, "step3 service", step3.ServiceTime, "0")

	for _, step := range []int{1, 3, 4} {
		got := calc.Calculate(Input{
			Step:                  step,
			WorkerType:            enums.WorkerTypePartner,
			Timing:                Timing{StartedAt: at(0), ArrivedAt: at(30), CompletedAt: at(90)},
			EstimatedDriveMinutes: &driveEstimate,
			EstimatedMiles:        decimal.NewNullDecimal(dec("12")),
		})
		if !got.Total.IsZero() {
			t.Fatalf("partner step %d should be zero, got %s", step, got.Total)
		}
	}
}

func TestPartnerServiceMinimumAndOverride(t *testing.T) {
	calc := NewCalculator(testRates())

	short := calc.Calculate(Input{Step: 2, WorkerType: enums.WorkerTypePartner, Timing: Timing{ArrivedAt: at(0), CompletedAt: at(35)}})
	assertMoney(t, "minimum hour", short.ServiceTime, "50.00")
	assertMoney(t, "partner mileage", short.Mileage, "0")

	long := calc.Calculate(Input{
		Step:              2,
		WorkerType:        enums.WorkerTypePartner,
		Timing:            Timing{ArrivedAt: at(0), CompletedAt: at(150)},
		PartnerHourlyRate: decimal.NewNullDecimal(dec("120")),
	})
	assertMoney(t, "partner override", long.ServiceTime, "300.00")
	assertMoney(t, "partner total", long.Total, "300.00")
}

func TestTimingFallsBackToEstimates(t *testing.T) {
	calc := NewCalculator(testRates())
	drive, service := 30, 60
	got := calc.Calculate(Input{
		Step:                    2,
		WorkerType:              enums.WorkerTypeIndependent,
		Timing:                  Timing{ArrivedAt: at(10), CompletedAt: at(5)},
		EstimatedDriveMinutes:   &drive,
		EstimatedServiceMinutes: &service,
	})
	assertMoney(t, "drive", got.DriveTime, "9.00")
	assertMoney(t, "service", got.ServiceTime, "18.00")
	assertMoney(t, "total", got.Total, "27.00")
}
