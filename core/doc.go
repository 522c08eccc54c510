// Package core contains the canonical posture domain contracts, entities, and
// orchestration logic: the admin-consent workflow, tenant application
// provisioning bookkeeping, and secure-score collection and enrichment.
// Lower-level adapters must depend on this package; core must not depend on
// provider-specific or transport-specific adapters.
package core
