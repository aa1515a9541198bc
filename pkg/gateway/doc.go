// Package gateway is the stateless request/response translator at the
// heart of this service: it flattens a Responses-API request into the
// backend's Chat Completions message list (flatten.go), drives the
// backend stream through a translator state machine that emits both the
// legacy and modern Responses-API event vocabularies (state.go, events.go),
// and orchestrates the whole request lifecycle including circuit-breaker
// and model-catalog checks (orchestrator.go).
package gateway
