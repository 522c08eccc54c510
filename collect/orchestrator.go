// Package collect runs the periodic posture collection pass over every
// consented customer. It is a pure library component: the host owns the
// schedule and calls Run.
package collect

import (
	"context"
	"fmt"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-posture/core"
)

const defaultConcurrency = 4

type ScoreCollector interface {
	CollectScore(ctx context.Context, customerID string) (core.PostureReport, error)
}

type CustomerLister interface {
	List(ctx context.Context, filter core.ListCustomersFilter) ([]core.Customer, error)
}

// Outcome records one customer's collection attempt. Err is nil on
// success; a failed customer never aborts the run.
type Outcome struct {
	CustomerID string
	TenantID   string
	Report     core.PostureReport
	Err        error
	Duration   time.Duration
}

type RunResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
	Succeeded  int
	Failed     int
}

type Orchestrator struct {
	Customers   CustomerLister
	Collector   ScoreCollector
	Concurrency int
	Logger      core.Logger
	Now         func() time.Time
}

func NewOrchestrator(customers CustomerLister, collector ScoreCollector) *Orchestrator {
	return &Orchestrator{
		Customers:   customers,
		Collector:   collector,
		Concurrency: defaultConcurrency,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Run collects posture for every active consented customer with bounded
// parallelism. Outcomes keep the listing order regardless of which
// goroutine finished first.
func (o *Orchestrator) Run(ctx context.Context) (RunResult, error) {
	if o == nil || o.Customers == nil || o.Collector == nil {
		return RunResult{}, fmt.Errorf("collect: orchestrator requires customer lister and score collector")
	}

	logger := glog.Ensure(o.Logger)
	result := RunResult{StartedAt: o.now()}

	customers, err := o.Customers.List(ctx, core.ListCustomersFilter{
		Status:      core.CustomerStatusActive,
		ConsentOnly: true,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("collect: list consented customers: %w", err)
	}

	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	outcomes := make([]Outcome, len(customers))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, customer := range customers {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{CustomerID: customer.ID, TenantID: customer.TenantID, Err: err}
			continue
		}

		wg.Add(1)
		go func(index int, customer core.Customer) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			startedAt := o.now()
			report, collectErr := o.Collector.CollectScore(ctx, customer.ID)
			outcome := Outcome{
				CustomerID: customer.ID,
				TenantID:   customer.TenantID,
				Report:     report,
				Err:        collectErr,
				Duration:   o.now().Sub(startedAt),
			}
			outcomes[index] = outcome

			if collectErr != nil {
				logger.Warn("posture collection failed",
					"customer_id", customer.ID,
					"tenant_id", customer.TenantID,
					"error", collectErr.Error(),
				)
				return
			}
			logger.Info("posture collected",
				"customer_id", customer.ID,
				"tenant_id", customer.TenantID,
				"current_score", report.CurrentScore,
				"max_score", report.MaxScore,
			)
		}(i, customer)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	result.Outcomes = outcomes
	result.FinishedAt = o.now()
	return result, nil
}

func (o *Orchestrator) now() time.Time {
	if o == nil || o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now()
}
