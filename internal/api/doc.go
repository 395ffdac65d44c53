// Package api implements the HTTP JSON API of the patient registry.
//
// This package provides:
//   - Patient registration and listing endpoints
//   - An optional raw SQL console and its audit trail
//   - Health and runtime metrics endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Raw SQL
//
// The console endpoints (/api/v1/query and /api/v1/audit) are only mounted
// when query.allow_raw is set. Whoever can reach them can read and modify
// every record, so they belong behind a trusted network boundary.
//
// # Lazy engine
//
// The server never opens the database itself. The first patient or query
// request starts the engine through the patient.Manager; the health
// endpoint reports "uninitialized" until then.
package api
