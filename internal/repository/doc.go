// Package repository holds persistence for arpledger.
//
// The sqlite subpackage provides an embedded, single-host stand-in for the
// shared ledger (an append-only journal of submitted bindings with a
// last-write-wins view per ip) and a journal of reconciliation events used by
// the reconciler's read-only HTTP views.
//
// The sqlite repository migrates its schema on open and is tested against
// in-memory databases.
package repository
