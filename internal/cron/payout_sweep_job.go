package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stowaway-backend/internal/settlement"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
)

const (
	defaultSweepBatchSize   = 50
	defaultSweepConcurrency = 4
)

// PayoutSweepJobParams configure the payout retry and reconciliation sweep.
type PayoutSweepJobParams struct {
	Logger       *logger.Logger
	Jobs         jobPayoutReader
	Routes       routePayoutReader
	Settlement   settlement.Service
	MaxRetries   int
	StaleAfter   time.Duration
	SettledGrace time.Duration
	BatchSize    int
	Concurrency  int
}

type jobPayoutReader interface {
	ResetStaleJobPayouts(ctx context.Context, attemptedBefore time.Time) (int64, error)
	ListRetryableJobPayouts(ctx context.Context, maxRetries, limit int) ([]uuid.UUID, error)
	ListUnsettledJobs(ctx context.Context, updatedBefore time.Time, limit int) ([]uuid.UUID, error)
}

type routePayoutReader interface {
	ResetStaleRoutePayouts(ctx context.Context, attemptedBefore time.Time) (int64, error)
	ListRetryableRoutePayouts(ctx context.Context, maxRetries, limit int) ([]uuid.UUID, error)
	ListUnsettledRoutes(ctx context.Context, updatedBefore time.Time, limit int) ([]uuid.UUID, error)
}

// NewPayoutSweepJob builds the job that retries failed payouts, recovers payouts stuck in
// processing, and settles jobs and routes whose payout never started.
func NewPayoutSweepJob(params PayoutSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("job payout reader required")
	}
	if params.Routes == nil {
		return nil, fmt.Errorf("route payout reader required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if params.StaleAfter <= 0 {
		return nil, fmt.Errorf("stale threshold must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	return &payoutSweepJob{
		logg:         params.Logger,
		jobs:         params.Jobs,
		routes:       params.Routes,
		settlement:   params.Settlement,
		maxRetries:   params.MaxRetries,
		staleAfter:   params.StaleAfter,
		settledGrace: params.SettledGrace,
		batch:        batch,
		concurrency:  concurrency,
		now:          time.Now,
	}, nil
}

type payoutSweepJob struct {
	logg         *logger.Logger
	jobs         jobPayoutReader
	routes       routePayoutReader
	settlement   settlement.Service
	maxRetries   int
	staleAfter   time.Duration
	settledGrace time.Duration
	batch        int
	concurrency  int
	now          func() time.Time
}

type sweepTarget struct {
	kind string
	id   uuid.UUID
}

func (j *payoutSweepJob) Name() string { return "payout-sweep" }

func (j *payoutSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error

	if err := j.resetStale(ctx, now.Add(-j.staleAfter)); err != nil {
		errs = multierr.Append(errs, err)
	}

	targets, err := j.collect(ctx, now.Add(-j.settledGrace))
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	if len(targets) == 0 {
		return errs
	}

	var (
		mu       sync.Mutex
		settled  int
		skipped  int
		failures error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, target := range targets {
		g.Go(func() error {
			err := j.settle(gctx, target)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				settled++
			case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed), pkgerrors.IsCode(err, pkgerrors.CodeConfiguration):
				// in flight elsewhere, or waiting on an operator
				skipped++
			default:
				failures = multierr.Append(failures, fmt.Errorf("%s %s: %w", target.kind, target.id, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(targets),
		"settled":    settled,
		"skipped":    skipped,
		"failed":     len(multierr.Errors(failures)),
	}), "payout sweep finished")
	return multierr.Append(errs, failures)
}

func (j *payoutSweepJob) resetStale(ctx context.Context, cutoff time.Time) error {
	var errs error
	jobs, err := j.jobs.ResetStaleJobPayouts(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("reset stale job payouts: %w", err))
	}
	routes, err := j.routes.ResetStaleRoutePayouts(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("reset stale route payouts: %w", err))
	}
	if jobs+routes > 0 {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{"jobs": jobs, "routes": routes}), "reset payouts stuck in processing")
	}
	return errs
}

func (j *payoutSweepJob) collect(ctx context.Context, settledBefore time.Time) ([]sweepTarget, error) {
	var errs error
	seen := map[uuid.UUID]bool{}
	targets := []sweepTarget{}
	add := func(kind string, ids []uuid.UUID) {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			targets = append(targets, sweepTarget{kind: kind, id: id})
		}
	}

	if ids, err := j.jobs.ListRetryableJobPayouts(ctx, j.maxRetries, j.batch); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list retryable job payouts: %w", err))
	} else {
		add("job", ids)
	}
	if ids, err := j.jobs.ListUnsettledJobs(ctx, settledBefore, j.batch); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list unsettled jobs: %w", err))
	} else {
		add("job", ids)
	}
	if ids, err := j.routes.ListRetryableRoutePayouts(ctx, j.maxRetries, j.batch); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list retryable route payouts: %w", err))
	} else {
		add("route", ids)
	}
	if ids, err := j.routes.ListUnsettledRoutes(ctx, settledBefore, j.batch); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list unsettled routes: %w", err))
	} else {
		add("route", ids)
	}
	return targets, errs
}

func (j *payoutSweepJob) settle(ctx context.Context, target sweepTarget) error {
	if target.kind == "route" {
		ctx = j.logg.WithRouteID(ctx, target.id.String())
		_, err := j.settlement.SettleRoute(ctx, target.id)
		return err
	}
	ctx = j.logg.WithAppointmentID(ctx, target.id.String())
	_, err := j.settlement.SettleJob(ctx, target.id)
	return err
}
