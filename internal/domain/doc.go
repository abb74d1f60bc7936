// Package domain defines the core types shared by observers and the reconciler.
//
// # Bindings
//
// Binding is an IP to hardware address fact seen on the wire (or reported by
// an observer that may be lying). Bindings are normalized before they are
// compared, deduplicated or stored: IPv4 in dotted-quad form, hardware
// addresses as lower-case colon-hex.
//
// DedupKey is the (ip, hwaddr) pair an observer uses to suppress repeated
// request-kind submissions.
//
// # Snapshots
//
// Snapshot is the ledger's latest-write-wins view, one binding per ip, as
// returned by a single query. Diff compares two snapshots and classifies each
// ip of the newer one as new, unchanged or changed.
//
// # Events
//
// ReconciliationEvent is what the reconciler emits for each classification.
// A changed event carries the previous hardware address and is the spoofing
// signal.
package domain
