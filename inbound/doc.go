// Package inbound normalizes consent-return redirects into the canonical
// callback parameter map before handing them to the core state machine.
//
// Microsoft delivers the admin-consent return either as a GET redirect with
// query parameters or as a POST with a form or JSON body. The dispatcher
// flattens all three shapes into one core.CallbackInput so the core never
// sees transport details.
package inbound
