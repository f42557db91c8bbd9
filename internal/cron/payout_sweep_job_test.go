package cron

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/stowaway-backend/internal/settlement"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
)

type fakeJobPayouts struct {
	retryable  []uuid.UUID
	unsettled  []uuid.UUID
	resetCalls []time.Time
	maxRetries int
}

func (f *fakeJobPayouts) ResetStaleJobPayouts(_ context.Context, before time.Time) (int64, error) {
	f.resetCalls = append(f.resetCalls, before)
	return 1, nil
}

func (f *fakeJobPayouts) ListRetryableJobPayouts(_ context.Context, maxRetries, _ int) ([]uuid.UUID, error) {
	f.maxRetries = maxRetries
	return f.retryable, nil
}

func (f *fakeJobPayouts) ListUnsettledJobs(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return f.unsettled, nil
}

type fakeRoutePayouts struct {
	retryable []uuid.UUID
	listErr   error
}

func (f *fakeRoutePayouts) ResetStaleRoutePayouts(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRoutePayouts) ListRetryableRoutePayouts(context.Context, int, int) ([]uuid.UUID, error) {
	return f.retryable, f.listErr
}

func (f *fakeRoutePayouts) ListUnsettledRoutes(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeSettlement struct {
	mu     sync.Mutex
	jobs   []uuid.UUID
	routes []uuid.UUID
	errs   map[uuid.UUID]error
}

func (f *fakeSettlement) SettleJob(_ context.Context, id uuid.UUID) (settlement.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, id)
	return settlement.Result{}, f.errs[id]
}

func (f *fakeSettlement) SettleRoute(_ context.Context, id uuid.UUID) (settlement.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, id)
	return settlement.Result{}, f.errs[id]
}

func newSweep(t *testing.T, jobs *fakeJobPayouts, routes *fakeRoutePayouts, settle *fakeSettlement) *payoutSweepJob {
	t.Helper()
	job, err := NewPayoutSweepJob(PayoutSweepJobParams{
		Logger:       logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Jobs:         jobs,
		Routes:       routes,
		Settlement:   settle,
		MaxRetries:   3,
		StaleAfter:   30 * time.Minute,
		SettledGrace: 15 * time.Minute,
		Concurrency:  2,
	})
	if err != nil {
		t.Fatalf("construct sweep: %v", err)
	}
	sweep := job.(*payoutSweepJob)
	sweep.now = func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }
	return sweep
}

func TestPayoutSweepSettlesEachCandidateOnce(t *testing.T) {
	shared := uuid.New()
	jobs := &fakeJobPayouts{retryable: []uuid.UUID{shared, uuid.New()}, unsettled: []uuid.UUID{shared}}
	routes := &fakeRoutePayouts{retryable: []uuid.UUID{uuid.New()}}
	settle := &fakeSettlement{}
	sweep := newSweep(t, jobs, routes, settle)

	if err := sweep.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(settle.jobs) != 2 {
		t.Fatalf("expected 2 job settlements, got %d", len(settle.jobs))
	}
	if len(settle.routes) != 1 {
		t.Fatalf("expected 1 route settlement, got %d", len(settle.routes))
	}
	if jobs.maxRetries != 3 {
		t.Fatalf("expected retry ceiling 3, got %d", jobs.maxRetries)
	}
	want := time.Date(2026, 3, 4, 11, 30, 0, 0, time.UTC)
	if len(jobs.resetCalls) != 1 || !jobs.resetCalls[0].Equal(want) {
		t.Fatalf("expected stale cutoff %v, got %v", want, jobs.resetCalls)
	}
}

func TestPayoutSweepAggregatesFailures(t *testing.T) {
	failing, busy, blocked := uuid.New(), uuid.New(), uuid.New()
	jobs := &fakeJobPayouts{retryable: []uuid.UUID{failing, busy, blocked}}
	routes := &fakeRoutePayouts{listErr: errors.New("db down")}
	settle := &fakeSettlement{errs: map[uuid.UUID]error{
		failing: pkgerrors.New(pkgerrors.CodeDependency, "stripe unavailable"),
		busy:    pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "payout in progress"),
		blocked: pkgerrors.New(pkgerrors.CodeConfiguration, "payouts disabled"),
	}}
	sweep := newSweep(t, jobs, routes, settle)

	err := sweep.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	msgs := []string{}
	for _, e := range multierr.Errors(err) {
		msgs = append(msgs, e.Error())
	}
	sort.Strings(msgs)
	if len(msgs) != 2 {
		t.Fatalf("expected list failure and one settlement failure, got %v", msgs)
	}
	if len(settle.jobs) != 3 {
		t.Fatalf("every candidate should be attempted, got %d", len(settle.jobs))
	}
}

func TestNewPayoutSweepJobValidation(t *testing.T) {
	if _, err := NewPayoutSweepJob(PayoutSweepJobParams{}); err == nil {
		t.Fatal("expected error for missing params")
	}
}
