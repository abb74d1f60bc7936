package domain

import (
	"sort"
	"time"
)

// Snapshot maps ip to the binding the ledger currently holds for it
type Snapshot map[string]Binding

// BuildSnapshot builds a snapshot from one ledger query result.
// Entries must already be normalized. When an ip appears more than once the
// entry with the latest RecordedAt wins; on a tie the later entry wins.
func BuildSnapshot(entries []Binding) Snapshot {
	snap := make(Snapshot, len(entries))
	for _, b := range entries {
		if prev, ok := snap[b.IP]; ok && prev.RecordedAt.After(b.RecordedAt) {
			continue
		}
		snap[b.IP] = b
	}
	return snap
}

// HWAddr returns the hardware address held for ip
func (s Snapshot) HWAddr(ip string) (string, bool) {
	b, ok := s[ip]
	return b.HWAddr, ok
}

// Clone returns a shallow copy
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for ip, b := range s {
		out[ip] = b
	}
	return out
}

// IPs returns the snapshot's ips in sorted order
func (s Snapshot) IPs() []string {
	ips := make([]string, 0, len(s))
	for ip := range s {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// Classification is the outcome of comparing one ip across two snapshots
type Classification struct {
	Type     EventType
	Current  Binding
	Previous string
}

// Diff classifies every ip of next against known. The result is ordered by ip.
// IPs present only in known are not reported.
func Diff(known, next Snapshot) []Classification {
	out := make([]Classification, 0, len(next))
	for _, ip := range next.IPs() {
		cur := next[ip]
		prev, ok := known[ip]
		switch {
		case !ok:
			out = append(out, Classification{Type: EventNew, Current: cur})
		case prev.HWAddr == cur.HWAddr:
			out = append(out, Classification{Type: EventUnchanged, Current: cur, Previous: prev.HWAddr})
		default:
			out = append(out, Classification{Type: EventChanged, Current: cur, Previous: prev.HWAddr})
		}
	}
	return out
}

// Event converts the classification to an event stamped at the given time
func (c Classification) Event(at time.Time) ReconciliationEvent {
	return NewEvent(c.Type, c.Current, c.Previous, at)
}
