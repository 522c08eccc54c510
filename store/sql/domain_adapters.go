package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-posture/core"
)

func newCustomerRecord(in core.CreateCustomerInput, now time.Time) *customerRecord {
	return &customerRecord{
		Name:         strings.TrimSpace(in.Name),
		TenantID:     strings.TrimSpace(in.TenantID),
		TenantDomain: strings.TrimSpace(in.TenantDomain),
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		Status:       string(in.Status),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *customerRecord) toDomain() core.Customer {
	if r == nil {
		return core.Customer{}
	}
	customer := core.Customer{
		ID:           r.ID,
		Name:         r.Name,
		TenantID:     r.TenantID,
		TenantDomain: r.TenantDomain,
		ContactEmail: r.ContactEmail,
		Status:       core.CustomerStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.hasCredentials() {
		credentials := core.CustomerCredentials{
			ApplicationID:      r.ApplicationID,
			ClientID:           r.ClientID,
			ServicePrincipalID: r.ServicePrincipalID,
			ClientSecret:       r.ClientSecret,
			ConsentGranted:     r.ConsentGranted,
			ConsentGrantedAt:   cloneTimePointer(r.ConsentGrantedAt),
			ProvisioningError:  r.ProvisioningError,
		}
		customer.Credentials = &credentials
	}
	return customer
}

// hasCredentials distinguishes "never consented" from a written credentials
// sub-object: a row without any credential column set maps to a nil
// Credentials pointer.
func (r *customerRecord) hasCredentials() bool {
	return r.ConsentGranted ||
		r.ApplicationID != "" ||
		r.ClientID != "" ||
		r.ServicePrincipalID != "" ||
		r.ProvisioningError != "" ||
		r.ConsentGrantedAt != nil
}

func (r *customerRecord) applyCredentials(credentials core.CustomerCredentials, now time.Time) {
	r.ApplicationID = credentials.ApplicationID
	r.ClientID = credentials.ClientID
	r.ServicePrincipalID = credentials.ServicePrincipalID
	r.ClientSecret = credentials.ClientSecret
	r.ConsentGranted = credentials.ConsentGranted
	r.ConsentGrantedAt = cloneTimePointer(credentials.ConsentGrantedAt)
	r.ProvisioningError = credentials.ProvisioningError
	r.UpdatedAt = now
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
