// Package store defines the persistence boundary for extraction jobs and
// provides its backends. The TaskStore is the single source of truth for job
// state: all status mutation goes through UpdateStatus, which enforces the
// monotonic transition rules, so readers never observe a half-written
// terminal state and no terminal write is ever clobbered.
//
// Two backends are provided: an in-process map for single-node deployments
// and tests, and a Redis backend for horizontally scaled workers. Both honor
// the hard retention TTL from the data model.
package store
