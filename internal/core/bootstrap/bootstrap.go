package bootstrap

import (
	"github.com/sirupsen/logrus"

	"arpledger/internal/config"
)

// Check is the outcome of one preflight probe
type Check struct {
	Name     string
	OK       bool
	Required bool
	Detail   string
}

// Report is the full preflight result for an observer
type Report struct {
	Checks []Check
}

// Failed returns required checks that did not pass
func (r *Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Required && !c.OK {
			out = append(out, c)
		}
	}
	return out
}

// OK reports whether every required check passed
func (r *Report) OK() bool {
	return len(r.Failed()) == 0
}

// Run probes what the configured observer needs from the host: raw sockets
// for capture and injection, nmap for sweeps, a readable neighbour table.
// Probes for features that are not configured are informational.
func Run(cfg *config.Config) *Report {
	report := &Report{}
	add := func(c Check) {
		report.Checks = append(report.Checks, c)
		if !c.OK {
			logrus.Debugf("Bootstrap: %s: %s", c.Name, c.Detail)
		}
	}

	needsRaw := cfg.Source.Kind == config.SourceCapture ||
		(cfg.Byzantine.Enabled && cfg.Byzantine.Inject.Enabled)

	add(withRequired(probeUser(), false))
	add(withRequired(probeRawSocket(), needsRaw))
	add(withRequired(probeNmap(), cfg.Source.Kind == config.SourceNmap))
	add(withRequired(probeNeighborTable(cfg.Source.Neigh.Path), cfg.Source.Kind == config.SourceNeigh))

	if needsRaw {
		add(withRequired(probeInterface(cfg.Observer.Interface), true))
	}
	if gw, iface, ok := DefaultGateway(); ok {
		add(Check{Name: "default_gateway", OK: true, Detail: gw + " via " + iface})
	}

	return report
}

func withRequired(c Check, required bool) Check {
	c.Required = required
	return c
}
