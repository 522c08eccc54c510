package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-posture/core"
)

var (
	_ gocmd.Querier[GetCustomerMessage, core.Customer]         = (*GetCustomerQuery)(nil)
	_ gocmd.Querier[GetCustomerByTenantMessage, core.Customer] = (*GetCustomerByTenantQuery)(nil)
	_ gocmd.Querier[ListCustomersMessage, []core.Customer]     = (*ListCustomersQuery)(nil)
	_ CustomerReader                                           = (core.CustomerStore)(nil)
)
