// Package backend talks to the single classical Chat Completions endpoint
// this gateway fronts: request translation, SSE chunk relaying, non-streaming
// response conversion, and HTTP/network error mapping.
package backend
