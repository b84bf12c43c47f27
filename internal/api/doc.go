// Package api defines the HTTP trigger surface served by scribed and the
// wire-format types it exchanges.
//
// # Routes
//
//	POST /api/jobs              create an uploaded job ({"sourceRef"})
//	POST /api/jobs/start        claim and run a job in the background (202)
//	POST /api/jobs/{id}/retry   rerun from {"step"} (202, 409 on missing prerequisite)
//	POST /api/jobs/{id}/resume  rerun from the first missing artifact (202)
//	GET  /api/jobs/{id}         job detail (?timestamps=1 adds timestamps)
//	GET  /api/jobs              list live jobs (?status=, ?source=, ?all=1)
//	GET  /api/status            daemon, dependency, and directory status
//
// When a token is configured every route requires "Authorization: Bearer <token>".
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Errors are reported as {"error", "kind"} where kind is the pipeline error
// kind from the services package.
package api
