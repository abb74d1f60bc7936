package config

// Role is the binary a config is validated for
type Role string

const (
	RoleObserver   Role = "observer"
	RoleReconciler Role = "reconciler"
)

// DedupPolicy decides which bindings an observer suppresses
type DedupPolicy string

const (
	// DedupReplyPassthrough suppresses repeated requests; replies always submit
	DedupReplyPassthrough DedupPolicy = "reply-passthrough"
	// DedupStrict suppresses repeated requests and replies alike
	DedupStrict DedupPolicy = "strict"
)

// ParseDedupPolicy converts a string to DedupPolicy, defaulting to reply-passthrough
func ParseDedupPolicy(s string) DedupPolicy {
	switch s {
	case "strict":
		return DedupStrict
	default:
		return DedupReplyPassthrough
	}
}

// SourceKind selects the binding source
type SourceKind string

const (
	SourceCapture SourceKind = "capture" // live ARP capture on observer.interface
	SourceNmap    SourceKind = "nmap"    // periodic nmap ARP ping sweep
	SourceNeigh   SourceKind = "neigh"   // local /proc/net/arp
	SourceSSH     SourceKind = "ssh"     // remote `ip neigh` over SSH
	SourceStream  SourceKind = "stream"  // JSON lines of decoded packets
)

// Valid reports whether k names a known source
func (k SourceKind) Valid() bool {
	switch k {
	case SourceCapture, SourceNmap, SourceNeigh, SourceSSH, SourceStream:
		return true
	}
	return false
}

// LedgerDriver selects the ledger client implementation
type LedgerDriver string

const (
	LedgerFabric LedgerDriver = "fabric" // Fabric gateway over gRPC
	LedgerPeer   LedgerDriver = "peer"   // peer CLI
	LedgerSQLite LedgerDriver = "sqlite" // embedded single-host ledger
)

// Valid reports whether d names a known driver
func (d LedgerDriver) Valid() bool {
	switch d {
	case LedgerFabric, LedgerPeer, LedgerSQLite:
		return true
	}
	return false
}
