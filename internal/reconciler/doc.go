// Package reconciler detects binding changes in the ledger.
//
// Each poll reads the ledger's latest-write-wins view, classifies every ip
// against the previous snapshot (Known State) as new, unchanged or changed,
// then replaces Known State wholesale. A changed hardware address is the
// spoofing signal and is always emitted. A failed query skips the cycle and
// leaves Known State as it was.
package reconciler
