// Package breaker implements a three-state circuit breaker (closed, open,
// half-open) guarding calls to the backend, so a wedged backend fails fast
// instead of piling up timed-out requests.
package breaker
