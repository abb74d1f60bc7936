// Package hub streams reconciliation events to browsers and tools over
// Server-Sent Events.
package hub
