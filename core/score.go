package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// CollectScore pulls the raw score and control-catalog feeds for one
// customer and fuses them into a PostureReport. The two sub-fetches run
// concurrently; the control-profile fetch is best-effort because a
// degraded enrichment beats no score at all. License usage piggybacks on
// the profile side of the fork and degrades the same way.
func (s *Service) CollectScore(ctx context.Context, customerID string) (report PostureReport, err error) {
	startedAt := s.clock()
	fields := map[string]any{"customer_id": customerID}
	defer func() {
		s.observeOperation(ctx, startedAt, "collect_score", err, fields)
	}()

	if s == nil || s.scoreSource == nil {
		return PostureReport{}, fmt.Errorf("core: score source is not configured")
	}
	if s.customerStore == nil {
		return PostureReport{}, s.mapError(fmt.Errorf("core: customer store is required"))
	}

	customer, lookupErr := s.customerStore.Get(ctx, strings.TrimSpace(customerID))
	if lookupErr != nil {
		err = s.mapError(lookupErr)
		return PostureReport{}, err
	}
	fields["tenant_id"] = customer.TenantID

	if customer.Credentials == nil || strings.TrimSpace(customer.Credentials.ClientSecret) == "" {
		err = s.mapError(fmt.Errorf("%w: customer %s has no stored secret", ErrCredentialsMissing, customer.ID))
		return PostureReport{}, err
	}

	query := ScoreQuery{
		TenantID:     customer.TenantID,
		ClientID:     customer.Credentials.ClientID,
		ClientSecret: customer.Credentials.ClientSecret,
	}

	fetchCtx := ctx
	cancel := func() {}
	if s.config.Score.Timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, s.config.Score.Timeout)
	}
	defer cancel()

	var (
		raw        RawScore
		rawErr     error
		profiles   []ControlProfile
		profileErr error
		licenses   LicenseUsage
		licenseErr error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		raw, rawErr = s.scoreSource.FetchSecureScore(fetchCtx, query)
	}()
	go func() {
		defer wg.Done()
		profiles, profileErr = s.scoreSource.FetchControlProfiles(fetchCtx, query)
		licenses, licenseErr = s.scoreSource.FetchLicenseUsage(fetchCtx, query)
	}()
	wg.Wait()

	// The raw score feed is the authoritative one: its failure fails the
	// whole collection.
	if rawErr != nil {
		err = s.mapError(fmt.Errorf("core: secure score fetch for tenant %s: upstream unavailable: %w", customer.TenantID, rawErr))
		return PostureReport{}, err
	}

	degraded := false
	if profileErr != nil {
		s.logError(ctx, "control profile fetch degraded", map[string]any{
			"customer_id": customer.ID,
			"tenant_id":   customer.TenantID,
			"error":       profileErr.Error(),
		})
		profiles = nil
		degraded = true
	}
	if licenseErr != nil {
		s.logError(ctx, "license usage fetch degraded", map[string]any{
			"customer_id": customer.ID,
			"tenant_id":   customer.TenantID,
			"error":       licenseErr.Error(),
		})
		licenses = LicenseUsage{
			ActiveUsers:   raw.ActiveUsers,
			LicensedUsers: raw.LicensedUsers,
		}
		degraded = true
	}
	if licenses.ActiveUsers == 0 && raw.ActiveUsers > 0 {
		licenses.ActiveUsers = raw.ActiveUsers
	}
	if licenses.LicensedUsers == 0 && raw.LicensedUsers > 0 {
		licenses.LicensedUsers = raw.LicensedUsers
	}

	controls := EnrichControls(raw.ControlScores, profiles)
	maxScore := raw.MaxScore
	if maxScore <= 0 {
		for _, control := range controls {
			maxScore += control.MaxScore
		}
	}

	report = PostureReport{
		CustomerID:   customer.ID,
		TenantID:     customer.TenantID,
		CurrentScore: raw.CurrentScore,
		MaxScore:     maxScore,
		Controls:     controls,
		Licenses:     licenses,
		Degraded:     degraded,
		CollectedAt:  s.clock(),
	}
	return report, nil
}
