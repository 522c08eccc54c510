package sqlstore

import "github.com/goliatone/go-posture/core"

var (
	_ core.CustomerStore          = (*CustomerStore)(nil)
	_ core.CustomerStore          = (*CachedCustomerStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
