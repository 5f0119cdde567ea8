// Package repository defines the persistence boundary of hydronet.
//
// Nothing in the simplification engine depends on it. The service stores the
// answers given to decisions under their global keys so that a later run over
// the same model can replay them instead of asking again, and records a short
// history of runs.
//
// # SQLite Implementation
//
// The sqlite subpackage implements Repository on the pure Go
// modernc.org/sqlite driver. The schema is created on open. Tests use
// in-memory databases.
package repository
