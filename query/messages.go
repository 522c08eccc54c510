package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-posture/core"
)

const (
	TypeGetCustomer         = "posture.query.customer.get"
	TypeGetCustomerByTenant = "posture.query.customer.get_by_tenant"
	TypeListCustomers       = "posture.query.customer.list"
)

type GetCustomerMessage struct {
	CustomerID string
}

func (GetCustomerMessage) Type() string { return TypeGetCustomer }

func (m GetCustomerMessage) Validate() error {
	if strings.TrimSpace(m.CustomerID) == "" {
		return fmt.Errorf("query: customer id is required")
	}
	return nil
}

type GetCustomerByTenantMessage struct {
	TenantID string
}

func (GetCustomerByTenantMessage) Type() string { return TypeGetCustomerByTenant }

func (m GetCustomerByTenantMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("query: tenant id is required")
	}
	return nil
}

type ListCustomersMessage struct {
	Filter core.ListCustomersFilter
}

func (ListCustomersMessage) Type() string { return TypeListCustomers }

func (m ListCustomersMessage) Validate() error {
	switch m.Filter.Status {
	case "",
		core.CustomerStatusPending,
		core.CustomerStatusActive,
		core.CustomerStatusSuspended,
		core.CustomerStatusOffboarded:
		return nil
	default:
		return fmt.Errorf("query: unknown customer status %q", m.Filter.Status)
	}
}
