// Package config provides configuration management for arpledger.
//
// Both binaries read the same file once at startup; nothing is hot-reloaded.
// A config that fails Validate is fatal: the process must not run
// half-configured.
//
// Config file locations (priority order):
//  1. -config flag
//  2. $ARPLEDGER_CONFIG
//  3. ./arpledger.yaml
//  4. $XDG_CONFIG_HOME/arpledger/config.yaml
//  5. ~/.config/arpledger/config.yaml
//  6. /etc/arpledger/config.yaml
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"arpledger/internal/domain"
)

const (
	DefaultWorkers        = 4
	DefaultFalsifyOffset  = 0x11
	DefaultFakeHWAddr     = "11:22:33:44:55:66"
	DefaultLedgerTimeout  = 10 * time.Second
	DefaultPollInterval   = 10 * time.Second
	DefaultInjectInterval = 30 * time.Second
)

// Load finds and loads the config file, or returns defaults if none found.
// An explicit path wins over the search order.
func Load(explicit string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = FindConfigPath()
	}

	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes YAML and applies environment overrides and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

// DefaultConfig returns defaults matching the reference lab deployment
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Observer.Interface == "" {
		c.Observer.Interface = "eth1"
	}
	if c.Observer.Dedup == "" {
		c.Observer.Dedup = DedupReplyPassthrough
	}
	if c.Observer.Workers == nil {
		w := DefaultWorkers
		c.Observer.Workers = &w
	}

	if c.Byzantine.Offset == nil {
		off := DefaultFalsifyOffset
		c.Byzantine.Offset = &off
	}
	if c.Byzantine.Inject.Interval == 0 {
		c.Byzantine.Inject.Interval = Duration(DefaultInjectInterval)
	}
	if c.Byzantine.Inject.DefaultFakeHWAddr == "" {
		c.Byzantine.Inject.DefaultFakeHWAddr = DefaultFakeHWAddr
	}

	if c.Source.Kind == "" {
		c.Source.Kind = SourceCapture
	}
	if c.Source.Nmap.Interval == 0 {
		c.Source.Nmap.Interval = Duration(time.Minute)
	}
	if c.Source.Nmap.Timeout == 0 {
		c.Source.Nmap.Timeout = Duration(2 * time.Minute)
	}
	if c.Source.Neigh.Path == "" {
		c.Source.Neigh.Path = "/proc/net/arp"
	}
	if c.Source.Neigh.Interval == 0 {
		c.Source.Neigh.Interval = Duration(5 * time.Second)
	}
	if c.Source.SSH.Port == 0 {
		c.Source.SSH.Port = 22
	}
	if c.Source.SSH.Interval == 0 {
		c.Source.SSH.Interval = Duration(15 * time.Second)
	}
	if c.Source.SSH.Timeout == 0 {
		c.Source.SSH.Timeout = Duration(10 * time.Second)
	}

	if c.Ledger.Driver == "" {
		c.Ledger.Driver = LedgerFabric
	}
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = Duration(DefaultLedgerTimeout)
	}
	if c.Ledger.Channel == "" {
		c.Ledger.Channel = "mychannel"
	}
	if c.Ledger.Chaincode == "" {
		c.Ledger.Chaincode = "arptracker"
	}
	if c.Ledger.Fabric.PeerEndpoint == "" {
		c.Ledger.Fabric.PeerEndpoint = "localhost:7051"
	}
	if c.Ledger.Fabric.GatewayPeer == "" {
		c.Ledger.Fabric.GatewayPeer = "peer0.org1.example.com"
	}
	if c.Ledger.Fabric.MSPID == "" {
		c.Ledger.Fabric.MSPID = "Org1MSP"
	}
	if c.Ledger.Peer.Binary == "" {
		c.Ledger.Peer.Binary = "peer"
	}
	if c.Ledger.Peer.Orderer == "" {
		c.Ledger.Peer.Orderer = "orderer.example.com:7050"
	}
	if c.Ledger.Peer.OrdererHostOverride == "" {
		c.Ledger.Peer.OrdererHostOverride = "orderer.example.com"
	}
	if c.Ledger.Peer.PeerAddress == "" {
		c.Ledger.Peer.PeerAddress = c.Ledger.Fabric.PeerEndpoint
	}
	if c.Ledger.Peer.MSPID == "" {
		c.Ledger.Peer.MSPID = c.Ledger.Fabric.MSPID
	}
	if c.Ledger.SQLite.Path == "" {
		c.Ledger.SQLite.Path = "./arpledger.db"
	}

	if c.Reconciler.Interval == 0 {
		c.Reconciler.Interval = Duration(DefaultPollInterval)
	}
	if c.Sink.Timeout == 0 {
		c.Sink.Timeout = Duration(5 * time.Second)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// applyEnv maps the variables the original container deployment used
func (c *Config) applyEnv() {
	if v := os.Getenv("ORG_NAME"); v != "" {
		c.Observer.ID = v
	}
	if v := os.Getenv("NETWORK_INTERFACE"); v != "" {
		c.Observer.Interface = v
	}
	if v := os.Getenv("PEER_ADDRESS"); v != "" {
		c.Ledger.Fabric.PeerEndpoint = v
		c.Ledger.Peer.PeerAddress = v
	}
	if v := os.Getenv("ORG_MSP_ID"); v != "" {
		c.Ledger.Fabric.MSPID = v
		c.Ledger.Peer.MSPID = v
	}
	if v := os.Getenv("CHANNEL_NAME"); v != "" {
		c.Ledger.Channel = v
	}
	if v := os.Getenv("CHAINCODE_NAME"); v != "" {
		c.Ledger.Chaincode = v
	}
	if v := os.Getenv("MALICIOUS_MODE"); v != "" {
		c.Byzantine.Enabled = strings.EqualFold(v, "true")
	}
}

// WorkerCount returns the configured submit worker count
func (c *Config) WorkerCount() int {
	if c.Observer.Workers == nil {
		return DefaultWorkers
	}
	return *c.Observer.Workers
}

// FalsifyOffset returns the per-octet offset used by a Byzantine observer
func (c *Config) FalsifyOffset() byte {
	if c.Byzantine.Offset == nil {
		return DefaultFalsifyOffset
	}
	return byte(*c.Byzantine.Offset % 256)
}

// Validate checks everything the given role needs. All problems are
// reported together.
func (c *Config) Validate(role Role) error {
	var errs []error

	if c.Ledger.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("ledger.timeout must be positive"))
	}
	errs = append(errs, c.validateLedger()...)

	switch role {
	case RoleObserver:
		errs = append(errs, c.validateObserver()...)
	case RoleReconciler:
		if c.Reconciler.Interval.Duration() <= 0 {
			errs = append(errs, errors.New("reconciler.interval must be positive"))
		}
		if c.Sink.DashboardURL != "" && !strings.HasPrefix(c.Sink.DashboardURL, "http://") &&
			!strings.HasPrefix(c.Sink.DashboardURL, "https://") {
			errs = append(errs, fmt.Errorf("sink.dashboard_url %q must be http or https", c.Sink.DashboardURL))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown role %q", role))
	}

	return errors.Join(errs...)
}

func (c *Config) validateLedger() []error {
	var errs []error
	l := c.Ledger
	if !l.Driver.Valid() {
		return []error{fmt.Errorf("ledger.driver %q must be one of fabric, peer, sqlite", l.Driver)}
	}
	switch l.Driver {
	case LedgerFabric:
		if l.Fabric.CertPath == "" {
			errs = append(errs, errors.New("ledger.fabric.cert_path is required"))
		}
		if l.Fabric.KeyPath == "" {
			errs = append(errs, errors.New("ledger.fabric.key_path is required"))
		}
		if l.Fabric.TLSCertPath == "" {
			errs = append(errs, errors.New("ledger.fabric.tls_cert_path is required"))
		}
	case LedgerPeer:
		if l.Peer.OrdererCAFile == "" {
			errs = append(errs, errors.New("ledger.peer.orderer_ca_file is required"))
		}
	case LedgerSQLite:
		if l.SQLite.Path == "" {
			errs = append(errs, errors.New("ledger.sqlite.path is required"))
		}
	}
	return errs
}

func (c *Config) validateObserver() []error {
	var errs []error

	if c.Observer.ID == "" {
		errs = append(errs, errors.New("observer.id is required"))
	}
	if c.WorkerCount() < 0 {
		errs = append(errs, errors.New("observer.workers must not be negative"))
	}
	if c.Observer.Dedup != DedupReplyPassthrough && c.Observer.Dedup != DedupStrict {
		errs = append(errs, fmt.Errorf("observer.dedup %q must be reply-passthrough or strict", c.Observer.Dedup))
	}

	if !c.Source.Kind.Valid() {
		errs = append(errs, fmt.Errorf("source.kind %q is not supported", c.Source.Kind))
	}
	needsIface := c.Source.Kind == SourceCapture || (c.Byzantine.Enabled && c.Byzantine.Inject.Enabled)
	if needsIface {
		if c.Observer.Interface == "" {
			errs = append(errs, errors.New("observer.interface is required"))
		} else if _, err := net.InterfaceByName(c.Observer.Interface); err != nil {
			errs = append(errs, fmt.Errorf("observer.interface %q: %w", c.Observer.Interface, err))
		}
	}
	switch c.Source.Kind {
	case SourceNmap:
		if len(c.Source.Nmap.Targets) == 0 {
			errs = append(errs, errors.New("source.nmap.targets is required"))
		}
		errs = append(errs, positive("source.nmap.interval", c.Source.Nmap.Interval)...)
		errs = append(errs, positive("source.nmap.timeout", c.Source.Nmap.Timeout)...)
	case SourceNeigh:
		errs = append(errs, positive("source.neigh.interval", c.Source.Neigh.Interval)...)
	case SourceSSH:
		errs = append(errs, positive("source.ssh.interval", c.Source.SSH.Interval)...)
		errs = append(errs, positive("source.ssh.timeout", c.Source.SSH.Timeout)...)
		if c.Source.SSH.Host == "" || c.Source.SSH.User == "" {
			errs = append(errs, errors.New("source.ssh.host and source.ssh.user are required"))
		}
		if c.Source.SSH.KeyPath == "" && c.Source.SSH.PasswordEnv == "" {
			errs = append(errs, errors.New("source.ssh needs key_path or password_env"))
		}
	case SourceStream:
		if c.Source.Stream.Path == "" {
			errs = append(errs, errors.New("source.stream.path is required"))
		}
	}

	if c.Byzantine.Enabled {
		if len(c.Byzantine.Targets) == 0 {
			errs = append(errs, errors.New("byzantine.targets is required when byzantine.enabled"))
		}
		for _, t := range c.Byzantine.Targets {
			if _, err := domain.NormalizeIP(t); err != nil {
				errs = append(errs, fmt.Errorf("byzantine.targets: %q is not an IPv4 address", t))
			}
		}
		if c.Byzantine.Inject.Enabled {
			if c.Byzantine.Inject.Interval.Duration() <= 0 {
				errs = append(errs, errors.New("byzantine.inject.interval must be positive"))
			}
			if _, err := net.ParseMAC(c.Byzantine.Inject.DefaultFakeHWAddr); err != nil {
				errs = append(errs, fmt.Errorf("byzantine.inject.default_fake_hwaddr: %w", err))
			}
			if v := c.Byzantine.Inject.Victim; v != "" {
				if _, err := domain.NormalizeIP(v); err != nil {
					errs = append(errs, fmt.Errorf("byzantine.inject.victim %q is not an IPv4 address", v))
				}
			}
		}
	}

	return errs
}

func positive(field string, d Duration) []error {
	if d.Duration() <= 0 {
		return []error{fmt.Errorf("%s must be positive, got %s", field, d.Duration())}
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary(role Role) string {
	summary := fmt.Sprintf("Ledger: %s (channel=%s, chaincode=%s, timeout=%s)\n",
		c.Ledger.Driver, c.Ledger.Channel, c.Ledger.Chaincode, c.Ledger.Timeout.Duration())

	switch role {
	case RoleObserver:
		summary += fmt.Sprintf("Observer: %s on %s, source=%s, workers=%d, dedup=%s\n",
			c.Observer.ID, c.Observer.Interface, c.Source.Kind, c.WorkerCount(), c.Observer.Dedup)
		if c.Byzantine.Enabled {
			summary += fmt.Sprintf("Byzantine: ACTIVE targets=%v offset=0x%02x inject=%v",
				c.Byzantine.Targets, c.FalsifyOffset(), c.Byzantine.Inject.Enabled)
		} else {
			summary += "Byzantine: inactive"
		}
	case RoleReconciler:
		summary += fmt.Sprintf("Reconciler: interval=%s emit_unchanged=%v listen=%q\n",
			c.Reconciler.Interval.Duration(), c.Reconciler.EmitUnchanged, c.Reconciler.Listen)
		summary += fmt.Sprintf("Sink: dashboard=%q journal=%q", c.Sink.DashboardURL, c.Sink.JournalPath)
	}

	return summary
}
