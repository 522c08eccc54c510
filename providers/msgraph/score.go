package msgraph

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-posture/auth"
	"github.com/goliatone/go-posture/core"
)

type secureScoreResource struct {
	ID                string    `json:"id"`
	CurrentScore      float64   `json:"currentScore"`
	MaxScore          float64   `json:"maxScore"`
	ActiveUserCount   int       `json:"activeUserCount"`
	LicensedUserCount int       `json:"licensedUserCount"`
	CreatedDateTime   time.Time `json:"createdDateTime"`
	ControlScores     []struct {
		ControlName     string  `json:"controlName"`
		ControlCategory string  `json:"controlCategory"`
		Score           float64 `json:"score"`
		Description     string  `json:"description"`
	} `json:"controlScores"`
}

type controlProfileResource struct {
	ID                 string   `json:"id"`
	ControlName        string   `json:"controlName"`
	Title              string   `json:"title"`
	MaxScore           float64  `json:"maxScore"`
	Rank               int      `json:"rank"`
	ControlCategory    string   `json:"controlCategory"`
	ActionType         string   `json:"actionType"`
	Remediation        string   `json:"remediation"`
	RemediationImpact  string   `json:"remediationImpact"`
	UserImpact         string   `json:"userImpact"`
	ImplementationCost string   `json:"implementationCost"`
	Threats            []string `json:"threats"`
	Deprecated         bool     `json:"deprecated"`
}

type subscribedSKUResource struct {
	SKUID         string `json:"skuId"`
	SKUPartNumber string `json:"skuPartNumber"`
	ConsumedUnits int    `json:"consumedUnits"`
	PrepaidUnits  struct {
		Enabled int `json:"enabled"`
	} `json:"prepaidUnits"`
}

func (p *Provider) scoreToken(ctx context.Context, query core.ScoreQuery) (auth.Token, error) {
	return p.tokens.Token(ctx, auth.TokenRequest{
		TenantID:     strings.TrimSpace(query.TenantID),
		ClientID:     strings.TrimSpace(query.ClientID),
		ClientSecret: query.ClientSecret,
	})
}

// FetchSecureScore returns the most recent secure score snapshot for the
// tenant. The feed is ordered newest first, so a single-item page is
// enough.
func (p *Provider) FetchSecureScore(ctx context.Context, query core.ScoreQuery) (core.RawScore, error) {
	if p == nil {
		return core.RawScore{}, fmt.Errorf("msgraph: provider is nil")
	}
	token, err := p.scoreToken(ctx, query)
	if err != nil {
		return core.RawScore{}, err
	}

	envelope := listEnvelope[secureScoreResource]{}
	if err := p.doGraph(ctx, token, http.MethodGet, "/security/secureScores", map[string]string{"$top": "1"}, nil, &envelope); err != nil {
		return core.RawScore{}, err
	}
	if len(envelope.Value) == 0 {
		return core.RawScore{}, fmt.Errorf("msgraph: tenant %s has no secure score snapshots", query.TenantID)
	}

	resource := envelope.Value[0]
	raw := core.RawScore{
		ID:            resource.ID,
		CurrentScore:  resource.CurrentScore,
		MaxScore:      resource.MaxScore,
		ActiveUsers:   resource.ActiveUserCount,
		LicensedUsers: resource.LicensedUserCount,
	}
	if !resource.CreatedDateTime.IsZero() {
		createdAt := resource.CreatedDateTime.UTC()
		raw.CreatedAt = &createdAt
	}
	raw.ControlScores = make([]core.ControlScore, 0, len(resource.ControlScores))
	for _, control := range resource.ControlScores {
		raw.ControlScores = append(raw.ControlScores, core.ControlScore{
			ControlName:     control.ControlName,
			ControlCategory: control.ControlCategory,
			Score:           control.Score,
			Description:     control.Description,
		})
	}
	return raw, nil
}

// FetchControlProfiles returns the control catalog, skipping deprecated
// entries the portal no longer surfaces.
func (p *Provider) FetchControlProfiles(ctx context.Context, query core.ScoreQuery) ([]core.ControlProfile, error) {
	if p == nil {
		return nil, fmt.Errorf("msgraph: provider is nil")
	}
	token, err := p.scoreToken(ctx, query)
	if err != nil {
		return nil, err
	}

	envelope := listEnvelope[controlProfileResource]{}
	if err := p.doGraph(ctx, token, http.MethodGet, "/security/secureScoreControlProfiles", map[string]string{"$top": "400"}, nil, &envelope); err != nil {
		return nil, err
	}

	profiles := make([]core.ControlProfile, 0, len(envelope.Value))
	for _, resource := range envelope.Value {
		if resource.Deprecated {
			continue
		}
		profiles = append(profiles, core.ControlProfile{
			ID:                 resource.ID,
			ControlName:        resource.ControlName,
			Title:              resource.Title,
			MaxScore:           resource.MaxScore,
			Rank:               resource.Rank,
			ActionType:         resource.ActionType,
			Remediation:        resource.Remediation,
			RemediationImpact:  resource.RemediationImpact,
			UserImpact:         resource.UserImpact,
			ImplementationCost: resource.ImplementationCost,
			Threats:            append([]string(nil), resource.Threats...),
			Deprecated:         resource.Deprecated,
		})
	}
	return profiles, nil
}

// FetchLicenseUsage aggregates subscribed SKUs into user counts. Consumed
// units approximate active assigned users.
func (p *Provider) FetchLicenseUsage(ctx context.Context, query core.ScoreQuery) (core.LicenseUsage, error) {
	if p == nil {
		return core.LicenseUsage{}, fmt.Errorf("msgraph: provider is nil")
	}
	token, err := p.scoreToken(ctx, query)
	if err != nil {
		return core.LicenseUsage{}, err
	}

	envelope := listEnvelope[subscribedSKUResource]{}
	if err := p.doGraph(ctx, token, http.MethodGet, "/subscribedSkus", nil, nil, &envelope); err != nil {
		return core.LicenseUsage{}, err
	}

	usage := core.LicenseUsage{SKUs: make([]core.LicenseSKU, 0, len(envelope.Value))}
	for _, resource := range envelope.Value {
		usage.SKUs = append(usage.SKUs, core.LicenseSKU{
			SKUID:         resource.SKUID,
			SKUPartNumber: resource.SKUPartNumber,
			Enabled:       resource.PrepaidUnits.Enabled,
			Consumed:      resource.ConsumedUnits,
		})
		usage.LicensedUsers += resource.PrepaidUnits.Enabled
		usage.ActiveUsers += resource.ConsumedUnits
	}
	return usage, nil
}
