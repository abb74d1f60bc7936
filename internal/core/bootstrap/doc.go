// Package bootstrap runs observer preflight checks against the host.
//
// Capture and injection need a raw link-layer socket, sweeps need nmap and
// the neighbour source needs a readable table. Run reports which of these
// are available and which of them the configuration requires.
package bootstrap
