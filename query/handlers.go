package query

import (
	"context"

	"github.com/goliatone/go-posture/core"
)

// CustomerReader is the read-only slice of core.CustomerStore the query
// handlers need.
type CustomerReader interface {
	Get(ctx context.Context, id string) (core.Customer, error)
	GetByTenant(ctx context.Context, tenantID string) (core.Customer, error)
	List(ctx context.Context, filter core.ListCustomersFilter) ([]core.Customer, error)
}

type GetCustomerQuery struct {
	reader CustomerReader
}

func NewGetCustomerQuery(reader CustomerReader) *GetCustomerQuery {
	return &GetCustomerQuery{reader: reader}
}

func (q *GetCustomerQuery) Query(ctx context.Context, msg GetCustomerMessage) (core.Customer, error) {
	if q == nil || q.reader == nil {
		return core.Customer{}, queryDependencyError("query: customer reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Customer{}, queryInvalidInputError(err.Error())
	}
	return q.reader.Get(ctx, msg.CustomerID)
}

type GetCustomerByTenantQuery struct {
	reader CustomerReader
}

func NewGetCustomerByTenantQuery(reader CustomerReader) *GetCustomerByTenantQuery {
	return &GetCustomerByTenantQuery{reader: reader}
}

func (q *GetCustomerByTenantQuery) Query(
	ctx context.Context,
	msg GetCustomerByTenantMessage,
) (core.Customer, error) {
	if q == nil || q.reader == nil {
		return core.Customer{}, queryDependencyError("query: customer reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Customer{}, queryInvalidInputError(err.Error())
	}
	return q.reader.GetByTenant(ctx, msg.TenantID)
}

type ListCustomersQuery struct {
	reader CustomerReader
}

func NewListCustomersQuery(reader CustomerReader) *ListCustomersQuery {
	return &ListCustomersQuery{reader: reader}
}

func (q *ListCustomersQuery) Query(
	ctx context.Context,
	msg ListCustomersMessage,
) ([]core.Customer, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: customer reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, queryInvalidInputError(err.Error())
	}
	return q.reader.List(ctx, msg.Filter)
}
