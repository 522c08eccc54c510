package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCustomerStatusTransition = errors.New("core: invalid customer status transition")
	ErrCustomerNotFound                = errors.New("core: customer not found")
	ErrCredentialsMissing              = errors.New("core: customer credentials missing")
)

type CustomerStatus string

const (
	CustomerStatusPending    CustomerStatus = "pending"
	CustomerStatusActive     CustomerStatus = "active"
	CustomerStatusSuspended  CustomerStatus = "suspended"
	CustomerStatusOffboarded CustomerStatus = "offboarded"
)

// CustomerCredentials is the per-tenant provisioning record written after a
// consent callback. ConsentGranted and ProvisioningError are deliberately
// independent: an administrator's grant must survive a provisioning failure.
type CustomerCredentials struct {
	ApplicationID      string
	ClientID           string
	ServicePrincipalID string
	ClientSecret       string
	ConsentGranted     bool
	ConsentGrantedAt   *time.Time
	ProvisioningError  string
}

type Customer struct {
	ID           string
	Name         string
	TenantID     string
	TenantDomain string
	ContactEmail string
	Status       CustomerStatus
	Credentials  *CustomerCredentials
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *Customer) TransitionTo(status CustomerStatus, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		return nil
	}
	if !customerTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidCustomerStatusTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	return nil
}

func customerTransitionAllowed(current, next CustomerStatus) bool {
	allowed := map[CustomerStatus]map[CustomerStatus]struct{}{
		CustomerStatusPending: {
			CustomerStatusActive:     {},
			CustomerStatusOffboarded: {},
		},
		CustomerStatusActive: {
			CustomerStatusSuspended:  {},
			CustomerStatusOffboarded: {},
		},
		CustomerStatusSuspended: {
			CustomerStatusActive:     {},
			CustomerStatusOffboarded: {},
		},
		CustomerStatusOffboarded: {},
	}
	_, ok := allowed[current][next]
	return ok
}

// HasConsent reports whether the customer completed admin consent.
func (c *Customer) HasConsent() bool {
	return c != nil && c.Credentials != nil && c.Credentials.ConsentGranted
}

// DisplayName is the application display name registered inside the
// customer's tenant during provisioning.
func (c *Customer) DisplayName() string {
	if c == nil {
		return ""
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = strings.TrimSpace(c.TenantDomain)
	}
	if name == "" {
		return "Posture Assessment"
	}
	return "Posture Assessment - " + name
}

type ControlScore struct {
	ControlName     string
	ControlCategory string
	Score           float64
	Description     string
}

// RawScore is feed one of the fusion: authoritative for current values only.
type RawScore struct {
	ID            string
	CurrentScore  float64
	MaxScore      float64
	ActiveUsers   int
	LicensedUsers int
	CreatedAt     *time.Time
	ControlScores []ControlScore
}

// ControlProfile is feed two: static reference metadata for a control. Any
// field may be missing; sparse profiles must never fail enrichment.
type ControlProfile struct {
	ID                 string
	ControlName        string
	Title              string
	MaxScore           float64
	Rank               int
	Description        string
	ActionType         string
	Remediation        string
	RemediationImpact  string
	UserImpact         string
	ImplementationCost string
	Threats            []string
	Deprecated         bool
}

type ImplementationStatus string

const (
	ImplementationStatusImplemented    ImplementationStatus = "Implemented"
	ImplementationStatusPartial        ImplementationStatus = "Partial"
	ImplementationStatusNotImplemented ImplementationStatus = "Not Implemented"
)

// EnrichedControl is the display-ready fusion of a raw control score with its
// catalog profile. Recomputed on every collection; it has no stored identity.
type EnrichedControl struct {
	ControlName          string
	Title                string
	Category             string
	CurrentScore         float64
	MaxScore             float64
	Description          string
	ImplementationStatus ImplementationStatus
	ActionType           string
	Remediation          string
	ScoreGap             float64
	Rank                 int
	UserImpact           string
	ImplementationCost   string
	Threats              []string
}

type LicenseUsage struct {
	ActiveUsers   int
	LicensedUsers int
	SKUs          []LicenseSKU
}

type LicenseSKU struct {
	SKUID         string
	SKUPartNumber string
	Enabled       int
	Consumed      int
}

// PostureReport is the normalized security posture pulled for one tenant.
type PostureReport struct {
	CustomerID   string
	TenantID     string
	CurrentScore float64
	MaxScore     float64
	Controls     []EnrichedControl
	Licenses     LicenseUsage
	Degraded     bool
	CollectedAt  time.Time
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	cloned := value.UTC()
	return &cloned
}

func cloneStrings(in []string) []string {
	return append([]string(nil), in...)
}
