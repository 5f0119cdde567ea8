// Package service drives simplification runs for hydronet.
//
// Simplifier owns the current topology graph, runs the aggregation pipeline
// over it and carries the decision round trip: a run ends with the batch of
// questions the attribute resolver could not answer, Answer resumes the
// suspended slots and stores the answers, and Replay preloads stored answers
// before a later run over the same model.
//
// # Event System
//
// Runs publish events on an EventBus (run started, stage finished, aggregate
// merged, run finished or failed, decisions pending or answered, graph
// loaded). The HTTP server forwards them to Server-Sent Events clients.
//
// # Concurrency
//
// The engine is single threaded. Simplifier serialises its callers with a
// mutex; graph access from outside goes through View.
package service
