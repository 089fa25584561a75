// Package server implements the association's HTTP API surface.
//
// Owns:
//   - HTTP routing, handlers, and request/response contracts
//   - Translation of club errors into status codes and payloads
//   - CORS, request logging and static file serving
//
// Does not own:
//   - Record rules and authorization (package club)
//   - Storage internals (package storage)
//
// Invariants:
//   - JSON responses go through writeJSON, plain-text errors through writeText
//   - Storage failures are logged and reach the caller as "storage_error" only
//   - Every route lives under API.Prefix except /healthz and static files
package server
