// Package api implements the HTTP REST API for Communities Core.
//
// This package provides:
//   - Account endpoints: register, confirm email, login, password reset
//   - Community endpoints: create, list, manage admins and amenities
//   - The bearer authentication and tenant-admin authorization pipeline
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Security
//
// Every request passes through auth.Pipeline after the generic middleware.
// Authentication attaches the bearer identity when the credential is valid
// and never rejects. Authorization rejects requests to configured
// community-admin paths unless the identity administers the community
// named in the path. Denials use the structured error body with the
// configured rejection status.
//
// Routes that need an identity but no tenant check (GET /auth/me,
// POST /communities) are wrapped in requireIdentity, which answers 401.
package api
