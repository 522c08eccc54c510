package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-posture/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type CustomerStore struct {
	db   *bun.DB
	repo repository.Repository[*customerRecord]
}

func (s *CustomerStore) Get(ctx context.Context, id string) (core.Customer, error) {
	if s == nil || s.db == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: customer store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return core.Customer{}, fmt.Errorf("%w: empty id", core.ErrCustomerNotFound)
	}
	record := &customerRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmedID).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Customer{}, fmt.Errorf("%w: id %q", core.ErrCustomerNotFound, trimmedID)
		}
		return core.Customer{}, err
	}
	return record.toDomain(), nil
}

func (s *CustomerStore) GetByTenant(ctx context.Context, tenantID string) (core.Customer, error) {
	if s == nil || s.db == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: customer store is not configured")
	}
	trimmedTenant := strings.TrimSpace(tenantID)
	if trimmedTenant == "" {
		return core.Customer{}, fmt.Errorf("%w: empty tenant id", core.ErrCustomerNotFound)
	}
	record := &customerRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", trimmedTenant).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Customer{}, fmt.Errorf("%w: tenant %q", core.ErrCustomerNotFound, trimmedTenant)
		}
		return core.Customer{}, err
	}
	return record.toDomain(), nil
}

func (s *CustomerStore) List(ctx context.Context, filter core.ListCustomersFilter) ([]core.Customer, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: customer store is not configured")
	}
	records := []*customerRecord{}
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.deleted_at IS NULL").
		Order("created_at ASC")
	if strings.TrimSpace(string(filter.Status)) != "" {
		query = query.Where("?TableAlias.status = ?", string(filter.Status))
	}
	if filter.ConsentOnly {
		query = query.Where("?TableAlias.consent_granted = ?", true)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	out := make([]core.Customer, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *CustomerStore) Create(ctx context.Context, in core.CreateCustomerInput) (core.Customer, error) {
	if s == nil || s.repo == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: customer store is not configured")
	}
	if strings.TrimSpace(in.Name) == "" {
		return core.Customer{}, fmt.Errorf("sqlstore: customer name is required")
	}
	if strings.TrimSpace(in.TenantID) == "" {
		return core.Customer{}, fmt.Errorf("sqlstore: tenant id is required")
	}

	status := in.Status
	if strings.TrimSpace(string(status)) == "" {
		status = core.CustomerStatusPending
	}

	if _, err := s.GetByTenant(ctx, in.TenantID); err == nil {
		return core.Customer{}, goerrors.New(
			fmt.Sprintf("sqlstore: tenant %s is already registered", strings.TrimSpace(in.TenantID)),
			goerrors.CategoryConflict,
		)
	} else if !errors.Is(err, core.ErrCustomerNotFound) {
		return core.Customer{}, err
	}

	record := newCustomerRecord(core.CreateCustomerInput{
		Name:         in.Name,
		TenantID:     in.TenantID,
		TenantDomain: in.TenantDomain,
		ContactEmail: in.ContactEmail,
		Status:       status,
	}, time.Now().UTC())

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Customer{}, err
	}
	return created.toDomain(), nil
}

func (s *CustomerStore) Update(ctx context.Context, id string, in core.UpdateCustomerInput) (core.Customer, error) {
	if s == nil || s.repo == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: customer store is not configured")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return core.Customer{}, err
	}

	now := time.Now().UTC()
	if in.Status != nil {
		if transitionErr := current.TransitionTo(*in.Status, now); transitionErr != nil {
			return core.Customer{}, transitionErr
		}
	}

	record := &customerRecord{ID: current.ID}
	columns := []string{"updated_at"}
	record.UpdatedAt = now
	if in.Name != nil {
		record.Name = strings.TrimSpace(*in.Name)
		columns = append(columns, "name")
	}
	if in.TenantDomain != nil {
		record.TenantDomain = strings.TrimSpace(*in.TenantDomain)
		columns = append(columns, "tenant_domain")
	}
	if in.ContactEmail != nil {
		record.ContactEmail = strings.TrimSpace(*in.ContactEmail)
		columns = append(columns, "contact_email")
	}
	if in.Status != nil {
		record.Status = string(current.Status)
		columns = append(columns, "status")
	}

	if _, err := s.db.NewUpdate().
		Model(record).
		Column(columns...).
		Where("id = ?", current.ID).
		Exec(ctx); err != nil {
		return core.Customer{}, err
	}
	return s.Get(ctx, current.ID)
}

// SaveCredentials writes the credentials sub-object. When the caller set
// ExpectConsentGranted the update only applies while the stored consent
// flag still matches, so two racing consent callbacks cannot silently
// overwrite each other's outcome.
func (s *CustomerStore) SaveCredentials(ctx context.Context, in core.SaveCustomerCredentialsInput) (core.Customer, error) {
	if s == nil || s.db == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: customer store is not configured")
	}
	current, err := s.Get(ctx, in.CustomerID)
	if err != nil {
		return core.Customer{}, err
	}

	record := &customerRecord{ID: current.ID}
	record.applyCredentials(in.Credentials, time.Now().UTC())

	query := s.db.NewUpdate().
		Model(record).
		Column(
			"application_id",
			"client_id",
			"service_principal_id",
			"client_secret",
			"consent_granted",
			"consent_granted_at",
			"provisioning_error",
			"updated_at",
		).
		Where("id = ?", current.ID)
	if in.ExpectConsentGranted != nil {
		query = query.Where("consent_granted = ?", *in.ExpectConsentGranted)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return core.Customer{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.Customer{}, err
	}
	if affected == 0 {
		return core.Customer{}, goerrors.New(
			fmt.Sprintf("sqlstore: consent flag for customer %s changed concurrently", current.ID),
			goerrors.CategoryConflict,
		)
	}
	return s.Get(ctx, current.ID)
}
