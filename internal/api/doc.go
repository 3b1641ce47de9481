// Package api implements the graystore admin HTTP API.
//
// This package provides:
//   - Health reporting for the store and its optional collaborators
//   - Read-only inspection of open database files and their table schemas
//   - Runtime metrics as JSON and Prometheus metrics at /metrics
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// The API never reads or writes records; it only reports what the store
// manages. Bind it to a loopback address unless it sits behind an
// authenticating proxy.
//
// # Endpoints
//
//	GET /api/v1/health
//	GET /api/v1/metrics
//	GET /api/v1/databases
//	GET /api/v1/databases/{db}/tables
//	GET /api/v1/databases/{db}/tables/{name}
//	GET /metrics
package api
