package source

import (
	"context"
	"fmt"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
)

// NmapSweep periodically ARP-pings target ranges with nmap and reports
// every host that answered with a hardware address.
type NmapSweep struct {
	targets  []string
	iface    string
	interval time.Duration
	timeout  time.Duration
}

// NewNmapSweep creates a sweep source. iface may be empty.
func NewNmapSweep(targets []string, iface string, interval, timeout time.Duration) *NmapSweep {
	return &NmapSweep{
		targets:  targets,
		iface:    iface,
		interval: interval,
		timeout:  timeout,
	}
}

// Bindings starts sweeping until ctx is cancelled
func (n *NmapSweep) Bindings(ctx context.Context) (<-chan domain.Binding, error) {
	if len(n.targets) == 0 {
		return nil, fmt.Errorf("nmap: no targets configured")
	}
	logrus.Infof("Nmap: sweeping %v every %s", n.targets, n.interval)
	return poll(ctx, "Nmap", n.interval, n.sweep), nil
}

func (n *NmapSweep) sweep(ctx context.Context) ([]domain.Binding, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	opts := []nmap.Option{
		nmap.WithTargets(n.targets...),
		nmap.WithPingScan(),
		nmap.WithCustomArguments("-PR"),
	}
	if n.iface != "" {
		opts = append(opts, nmap.WithInterface(n.iface))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("sweep failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		logrus.Debugf("Nmap: warnings: %v", *warnings)
	}

	bindings := hostsToBindings(result, n.iface, time.Now())
	logrus.Debugf("Nmap: sweep found %d bindings", len(bindings))
	return bindings, nil
}

// hostsToBindings keeps up hosts that reported both an IPv4 and a MAC address
func hostsToBindings(result *nmap.Run, iface string, at time.Time) []domain.Binding {
	if result == nil {
		return nil
	}

	var out []domain.Binding
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}

		var ip, mac string
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				ip = addr.Addr
			case "mac":
				mac = addr.Addr
			}
		}
		// local host has no MAC in the sweep
		if ip == "" || mac == "" {
			continue
		}

		out = append(out, domain.Binding{
			IP:         ip,
			HWAddr:     mac,
			Interface:  iface,
			Kind:       domain.KindReply,
			RecordedAt: at,
		})
	}
	return out
}
