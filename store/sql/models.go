package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type customerRecord struct {
	bun.BaseModel `bun:"table:customers,alias:cu"`

	ID           string `bun:"id,pk"`
	Name         string `bun:"name,notnull"`
	TenantID     string `bun:"tenant_id,notnull"`
	TenantDomain string `bun:"tenant_domain"`
	ContactEmail string `bun:"contact_email"`
	Status       string `bun:"status,notnull"`

	ApplicationID      string     `bun:"application_id"`
	ClientID           string     `bun:"client_id"`
	ServicePrincipalID string     `bun:"service_principal_id"`
	ClientSecret       string     `bun:"client_secret"`
	ConsentGranted     bool       `bun:"consent_granted,notnull,default:false"`
	ConsentGrantedAt   *time.Time `bun:"consent_granted_at,nullzero"`
	ProvisioningError  string     `bun:"provisioning_error"`

	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete"`
}
