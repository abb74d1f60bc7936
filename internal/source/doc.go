// Package source provides Binding Sources for the observer agent.
//
// Capture listens for live ARP traffic and reports each packet's sender with
// its real operation. NmapSweep reports sweep answers as replies. Neighbors
// (local /proc/net/arp) and SSHNeighbors (a router's `ip neigh`) re-read a
// cache table on an interval and report entries as requests, so the agent's
// dedup suppresses repeats. Stream decodes a JSON-lines packet feed.
package source
