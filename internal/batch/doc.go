// Package batch owns session state for the single active image batch. The
// SQLite-backed Store is the sole writer of image status; every status
// change is a compare-and-swap keyed on the expected current status, so
// concurrent actors observe Conflict instead of clobbering each other.
// Committed mutations notify registered subscribers synchronously.
package batch
