// Package handler implements the HTTP surface of hydronet.
//
// GraphHandler exposes the current topology and the decision round trip of
// a service.Simplifier:
//
//	GET  /api/graph?view=ports|elements&format=json|yaml
//	GET  /api/elements/{id}
//	GET  /api/paths?from=&to=&via=&max_depth=
//	GET  /api/connections?types=&inert=
//	GET  /api/stages
//	POST /api/simplify
//	GET  /api/decisions
//	POST /api/decisions
//	GET  /api/runs?limit=
//
// Errors are returned as JSON with an {error, details} body. Engine errors
// map to 422, an unloaded topology to 409 and unknown decision keys to 400.
//
// Middleware provides panic recovery, CORS headers and request logging.
package handler
