// Package dbtest opens throwaway sqlite databases that mirror the Postgres schema
// closely enough for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE drivers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		stripe_connect_account_id TEXT,
		stripe_payouts_enabled BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE moving_partners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		hourly_rate TEXT,
		stripe_connect_account_id TEXT,
		stripe_payouts_enabled BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE appointments (
		id TEXT PRIMARY KEY,
		appointment_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Scheduled',
		customer_name TEXT NOT NULL,
		customer_phone TEXT,
		address TEXT NOT NULL DEFAULT '',
		scheduled_at DATETIME,
		number_of_units INTEGER NOT NULL DEFAULT 1,
		moving_partner_id TEXT,
		square_customer_id TEXT,
		square_card_id TEXT,
		tracking_token TEXT,
		service_start_time DATETIME,
		service_end_time DATETIME,
		balance_due_cents INTEGER NOT NULL DEFAULT 0,
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		square_payment_id TEXT,
		paid_at DATETIME,
		total_actual_cost TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE tasks (
		id TEXT PRIMARY KEY,
		appointment_id TEXT NOT NULL,
		step_number INTEGER NOT NULL,
		unit_number INTEGER NOT NULL DEFAULT 1,
		short_id TEXT NOT NULL UNIQUE,
		dispatch_id TEXT,
		worker_type TEXT NOT NULL DEFAULT 'independent',
		driver_id TEXT,
		estimated_cost TEXT,
		estimated_drive_minutes INTEGER,
		estimated_service_minutes INTEGER,
		estimated_miles TEXT,
		actual_cost TEXT,
		fixed_fee_pay TEXT,
		mileage_pay TEXT,
		drive_time_pay TEXT,
		service_time_pay TEXT,
		actual_drive_minutes INTEGER,
		actual_service_minutes INTEGER,
		reported_miles TEXT,
		cost_calculated_at DATETIME,
		photos TEXT,
		started_at DATETIME,
		arrived_at DATETIME,
		completed_at DATETIME,
		payout_status TEXT NOT NULL DEFAULT 'pending',
		payout_amount TEXT,
		payout_transfer_id TEXT,
		payout_processed_at DATETIME,
		payout_attempted_at DATETIME,
		payout_failure_reason TEXT,
		payout_retry_count INTEGER NOT NULL DEFAULT 0,
		payout_retryable BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (appointment_id, step_number, unit_number)
	)`,
	`CREATE TABLE routes (
		id TEXT PRIMARY KEY,
		driver_id TEXT,
		route_date DATETIME,
		status TEXT NOT NULL DEFAULT 'Scheduled',
		total_miles TEXT,
		started_at DATETIME,
		completed_at DATETIME,
		payout_status TEXT NOT NULL DEFAULT 'pending',
		payout_amount TEXT,
		payout_transfer_id TEXT,
		payout_processed_at DATETIME,
		payout_attempted_at DATETIME,
		payout_failure_reason TEXT,
		payout_retry_count INTEGER NOT NULL DEFAULT 0,
		payout_retryable BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE packing_supply_orders (
		id TEXT PRIMARY KEY,
		route_id TEXT,
		dispatch_short_id TEXT NOT NULL UNIQUE,
		customer_name TEXT NOT NULL,
		customer_phone TEXT,
		status TEXT NOT NULL DEFAULT 'Pending',
		tracking_token TEXT,
		reported_miles TEXT,
		photos TEXT,
		failure_reason TEXT,
		started_at DATETIME,
		arrived_at DATETIME,
		delivered_at DATETIME,
		failed_at DATETIME,
		payout_share TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE ledger_events (
		id TEXT PRIMARY KEY,
		appointment_id TEXT,
		route_id TEXT,
		worker_id TEXT,
		type TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		reference TEXT,
		metadata TEXT,
		created_at DATETIME
	)`,
}

// Open returns a fresh in-memory database with the engine's tables created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
