// Package observer turns observed ARP bindings into ledger submissions.
//
// An Agent normalizes each binding, suppresses requests whose (ip, hwaddr)
// pair was already recorded, and submits the rest through a Dispatcher that
// keeps per-ip order. Replies always pass unless the strict dedup policy is
// configured.
//
// A Byzantine agent carries a Falsifier: for targeted IPs it submits a fake
// hardware address instead of the observed one, while still recording the
// observed pair for dedup. The Injector is an independent job that forges ARP
// replies for the same targets on the wire.
package observer
