// Package transport defines the handler interfaces and middleware chain for
// the gateway's HTTP/SSE transport layer.
//
// The transport layer bridges external clients and the gateway's internal
// orchestration (pkg/gateway.Orchestrator). It deserializes incoming
// requests into the core protocol types defined in pkg/api, dispatches them
// for processing, and serializes responses back to the client in either
// synchronous (JSON) or streaming (SSE) format.
//
// # Handler Interfaces
//
// ResponseCreator handles the core create-response operation. This gateway
// keeps no ResponseStore — every request is self-contained, so there is no
// get/delete-by-id handler to dispatch to; the adapter registers only the
// create route.
//
// The ResponseWriter interface abstracts streaming and non-streaming output,
// allowing the handler to emit SSE events or complete JSON responses without
// knowing the underlying transport protocol.
//
// # Middleware
//
// The middleware chain wraps ResponseCreator with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. Custom middleware
// can be added for application-specific concerns.
//
// # Dependencies
//
// Apart from github.com/google/uuid, which generates request IDs, this
// package uses only Go standard library packages: HTTP serving uses
// net/http with Go 1.22+ ServeMux routing patterns, SSE flushing uses
// http.NewResponseController, and structured logging uses log/slog. The
// rest of the third-party stack (prometheus, jwt, yaml) lives one layer up,
// in pkg/observability, pkg/auth, and pkg/config respectively — this
// package stays a thin contract the rest of the tree implements.
package transport
