// Package daemon runs the gloss engine as a long-lived process: it wires
// the store, worker pool, and export components into one lifecycle with
// flock-based locking to prevent multiple instances, and serves the HTTP
// API the browser UI and CLI talk to.
package daemon
