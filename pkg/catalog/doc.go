// Package catalog caches the backend's model list with a periodic
// background refresh, so request-time model validation and capability
// lookups never block on a network call.
package catalog
