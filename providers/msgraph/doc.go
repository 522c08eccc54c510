// Package msgraph implements the Microsoft Graph provider: enterprise
// application provisioning after admin consent, and the secure score,
// control profile, and license feeds used for posture collection.
package msgraph
