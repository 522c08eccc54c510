package collect

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goliatone/go-posture/core"
)

type stubCustomerLister struct {
	customers  []core.Customer
	err        error
	lastFilter core.ListCustomersFilter
}

func (s *stubCustomerLister) List(_ context.Context, filter core.ListCustomersFilter) ([]core.Customer, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.customers, nil
}

type stubScoreCollector struct {
	mu      sync.Mutex
	reports map[string]core.PostureReport
	errs    map[string]error
	active  int
	peak    int
}

func (s *stubScoreCollector) CollectScore(_ context.Context, customerID string) (core.PostureReport, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if err, ok := s.errs[customerID]; ok {
		return core.PostureReport{}, err
	}
	return s.reports[customerID], nil
}

func testCustomers(ids ...string) []core.Customer {
	out := make([]core.Customer, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.Customer{ID: id, TenantID: "tenant-" + id, Status: core.CustomerStatusActive})
	}
	return out
}

func TestOrchestrator_RunCollectsEveryCustomer(t *testing.T) {
	lister := &stubCustomerLister{customers: testCustomers("c1", "c2", "c3")}
	collector := &stubScoreCollector{
		reports: map[string]core.PostureReport{
			"c1": {CustomerID: "c1", CurrentScore: 10},
			"c2": {CustomerID: "c2", CurrentScore: 20},
			"c3": {CustomerID: "c3", CurrentScore: 30},
		},
	}
	orchestrator := NewOrchestrator(lister, collector)

	result, err := orchestrator.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}
	if result.Succeeded != 3 || result.Failed != 0 {
		t.Fatalf("expected 3 successes, got %d/%d", result.Succeeded, result.Failed)
	}
	for i, id := range []string{"c1", "c2", "c3"} {
		if result.Outcomes[i].CustomerID != id {
			t.Fatalf("expected listing order preserved, got %q at %d", result.Outcomes[i].CustomerID, i)
		}
	}
	if result.Outcomes[1].Report.CurrentScore != 20 {
		t.Fatalf("expected report to land on the matching outcome")
	}
	if !lister.lastFilter.ConsentOnly || lister.lastFilter.Status != core.CustomerStatusActive {
		t.Fatalf("expected active consented filter, got %#v", lister.lastFilter)
	}
}

func TestOrchestrator_RunSurvivesPerCustomerFailures(t *testing.T) {
	lister := &stubCustomerLister{customers: testCustomers("c1", "c2", "c3")}
	collector := &stubScoreCollector{
		reports: map[string]core.PostureReport{
			"c1": {CustomerID: "c1"},
			"c3": {CustomerID: "c3"},
		},
		errs: map[string]error{
			"c2": errors.New("tenant token rejected"),
		},
	}
	orchestrator := NewOrchestrator(lister, collector)

	result, err := orchestrator.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 successes and 1 failure, got %d/%d", result.Succeeded, result.Failed)
	}
	if result.Outcomes[1].Err == nil {
		t.Fatalf("expected failure recorded for c2")
	}
	if result.Outcomes[0].Err != nil || result.Outcomes[2].Err != nil {
		t.Fatalf("expected neighbors unaffected by c2 failure")
	}
}

func TestOrchestrator_RunBoundsConcurrency(t *testing.T) {
	lister := &stubCustomerLister{customers: testCustomers("c1", "c2", "c3", "c4", "c5", "c6")}
	collector := &stubScoreCollector{reports: map[string]core.PostureReport{}}
	orchestrator := NewOrchestrator(lister, collector)
	orchestrator.Concurrency = 2

	if _, err := orchestrator.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if collector.peak > 2 {
		t.Fatalf("expected at most 2 concurrent collections, saw %d", collector.peak)
	}
}

func TestOrchestrator_RunPropagatesListError(t *testing.T) {
	lister := &stubCustomerLister{err: errors.New("db offline")}
	orchestrator := NewOrchestrator(lister, &stubScoreCollector{})

	if _, err := orchestrator.Run(context.Background()); err == nil {
		t.Fatalf("expected list error to abort the run")
	}
}

func TestOrchestrator_RequiresDependencies(t *testing.T) {
	var orchestrator *Orchestrator
	if _, err := orchestrator.Run(context.Background()); err == nil {
		t.Fatalf("expected error from nil orchestrator")
	}
}
