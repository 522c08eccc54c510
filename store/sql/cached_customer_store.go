package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-posture/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const customerCacheKeyPrefix = "go-posture::customer::v1"

// CachedCustomerStore is a read-through decorator. Reads go through the
// cache; every write lands on the base store and invalidates both lookup
// keys for the customer.
type CachedCustomerStore struct {
	base  core.CustomerStore
	cache repositorycache.CacheService
}

func NewCachedCustomerStore(
	base core.CustomerStore,
	cacheService repositorycache.CacheService,
) (*CachedCustomerStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base customer store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: customer cache service is required")
	}
	return &CachedCustomerStore{base: base, cache: cacheService}, nil
}

// CustomerCacheKey returns the deterministic cache key contract for
// customer reads: go-posture::customer::v1::<lookup>::<value> with the
// value segment URL-path escaped.
func CustomerCacheKey(lookup string, value string) string {
	return strings.Join([]string{
		customerCacheKeyPrefix,
		lookup,
		url.PathEscape(strings.TrimSpace(value)),
	}, "::")
}

func (s *CachedCustomerStore) Get(ctx context.Context, id string) (core.Customer, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: cached customer store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, CustomerCacheKey("id", id), func(ctx context.Context) (core.Customer, error) {
		return s.base.Get(ctx, id)
	})
}

func (s *CachedCustomerStore) GetByTenant(ctx context.Context, tenantID string) (core.Customer, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: cached customer store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, CustomerCacheKey("tenant", tenantID), func(ctx context.Context) (core.Customer, error) {
		return s.base.GetByTenant(ctx, tenantID)
	})
}

// List is not cached: filters vary and the collection pass reads it once
// per run.
func (s *CachedCustomerStore) List(ctx context.Context, filter core.ListCustomersFilter) ([]core.Customer, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached customer store is not configured")
	}
	return s.base.List(ctx, filter)
}

func (s *CachedCustomerStore) Create(ctx context.Context, in core.CreateCustomerInput) (core.Customer, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: cached customer store is not configured")
	}
	created, err := s.base.Create(ctx, in)
	if err != nil {
		return core.Customer{}, err
	}
	if err := s.invalidate(ctx, created); err != nil {
		return core.Customer{}, err
	}
	return created, nil
}

func (s *CachedCustomerStore) Update(ctx context.Context, id string, in core.UpdateCustomerInput) (core.Customer, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: cached customer store is not configured")
	}
	updated, err := s.base.Update(ctx, id, in)
	if err != nil {
		return core.Customer{}, err
	}
	if err := s.invalidate(ctx, updated); err != nil {
		return core.Customer{}, err
	}
	return updated, nil
}

func (s *CachedCustomerStore) SaveCredentials(ctx context.Context, in core.SaveCustomerCredentialsInput) (core.Customer, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: cached customer store is not configured")
	}
	saved, err := s.base.SaveCredentials(ctx, in)
	if err != nil {
		return core.Customer{}, err
	}
	if err := s.invalidate(ctx, saved); err != nil {
		return core.Customer{}, err
	}
	return saved, nil
}

func (s *CachedCustomerStore) invalidate(ctx context.Context, customer core.Customer) error {
	if err := s.cache.Delete(ctx, CustomerCacheKey("id", customer.ID)); err != nil {
		return err
	}
	if strings.TrimSpace(customer.TenantID) != "" {
		if err := s.cache.Delete(ctx, CustomerCacheKey("tenant", customer.TenantID)); err != nil {
			return err
		}
	}
	return nil
}
