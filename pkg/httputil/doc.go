// Package httputil provides the HTTP plumbing shared by the geodata
// providers.
//
// [Client] sends requests with a descriptive User-Agent, enforces a minimum
// interval between requests (OpenStreetMap services throttle aggressive
// clients), retries transient failures with exponential backoff through
// [Retry], and reports every request to the observability HTTP hooks.
//
// Transient failures are network errors, 429 and 5xx responses. They are
// wrapped in [RetryableError]; everything else is returned as-is.
package httputil
