package config

import (
	"time"
)

// Config is the root configuration structure. It is read once at startup.
type Config struct {
	Version    int              `yaml:"version"`
	Observer   ObserverConfig   `yaml:"observer"`
	Byzantine  ByzantineConfig  `yaml:"byzantine"`
	Source     SourceConfig     `yaml:"source"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Sink       SinkConfig       `yaml:"sink"`
	Log        LogConfig        `yaml:"log"`
}

// ObserverConfig identifies this observer and tunes its submit pipeline
type ObserverConfig struct {
	ID           string      `yaml:"id"`
	Interface    string      `yaml:"interface"`
	Workers      *int        `yaml:"workers,omitempty"` // nil = default, 0 = submit inline
	Dedup        DedupPolicy `yaml:"dedup"`
	StartupDelay Duration    `yaml:"startup_delay"`
}

// ByzantineConfig turns an observer into a lying one
type ByzantineConfig struct {
	Enabled bool         `yaml:"enabled"`
	Targets []string     `yaml:"targets,omitempty"`
	Offset  *int         `yaml:"offset,omitempty"` // added to every hwaddr octet, mod 256
	Inject  InjectConfig `yaml:"inject"`
}

// InjectConfig controls the periodic forged-reply side channel
type InjectConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Interval          Duration `yaml:"interval"`
	Victim            string   `yaml:"victim,omitempty"` // empty = broadcast
	DefaultFakeHWAddr string   `yaml:"default_fake_hwaddr"`
}

// SourceConfig selects where observed bindings come from
type SourceConfig struct {
	Kind   SourceKind         `yaml:"kind"`
	Nmap   NmapSourceConfig   `yaml:"nmap"`
	Neigh  NeighSourceConfig  `yaml:"neigh"`
	SSH    SSHSourceConfig    `yaml:"ssh"`
	Stream StreamSourceConfig `yaml:"stream"`
}

// NmapSourceConfig holds settings for periodic ARP ping sweeps
type NmapSourceConfig struct {
	Targets  []string `yaml:"targets,omitempty"`
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
}

// NeighSourceConfig holds settings for reading the local neighbour table
type NeighSourceConfig struct {
	Path     string   `yaml:"path"`
	Interval Duration `yaml:"interval"`
}

// SSHSourceConfig holds settings for reading a remote neighbour table.
// Key and password are references (paths / env names), not values.
type SSHSourceConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	User           string   `yaml:"user"`
	KeyPath        string   `yaml:"key_path,omitempty"`
	PasswordEnv    string   `yaml:"password_env,omitempty"`
	KnownHostsPath string   `yaml:"known_hosts_path,omitempty"`
	Interval       Duration `yaml:"interval"`
	Timeout        Duration `yaml:"timeout"`
}

// StreamSourceConfig holds settings for a JSON-lines packet feed
type StreamSourceConfig struct {
	Path string `yaml:"path"` // "-" = stdin
}

// LedgerConfig selects and configures the ledger client
type LedgerConfig struct {
	Driver    LedgerDriver  `yaml:"driver"`
	Timeout   Duration      `yaml:"timeout"`
	Channel   string        `yaml:"channel"`
	Chaincode string        `yaml:"chaincode"`
	Fabric    FabricConfig  `yaml:"fabric"`
	Peer      PeerCLIConfig `yaml:"peer"`
	SQLite    SQLiteConfig  `yaml:"sqlite"`
}

// FabricConfig holds Fabric gateway connection settings
type FabricConfig struct {
	PeerEndpoint string `yaml:"peer_endpoint"`
	GatewayPeer  string `yaml:"gateway_peer"`
	MSPID        string `yaml:"msp_id"`
	CertPath     string `yaml:"cert_path"`
	KeyPath      string `yaml:"key_path"` // file, or keystore directory
	TLSCertPath  string `yaml:"tls_cert_path"`
}

// PeerCLIConfig holds settings for driving the peer binary
type PeerCLIConfig struct {
	Binary              string `yaml:"binary"`
	FabricCfgPath       string `yaml:"fabric_cfg_path"`
	Orderer             string `yaml:"orderer"`
	OrdererHostOverride string `yaml:"orderer_host_override"`
	OrdererCAFile       string `yaml:"orderer_ca_file"`
	PeerAddress         string `yaml:"peer_address"`
	TLSRootCertFile     string `yaml:"tls_root_cert_file"`
	MSPConfigPath       string `yaml:"msp_config_path"`
	MSPID               string `yaml:"msp_id"`
}

// SQLiteConfig holds settings for the embedded ledger
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// ReconcilerConfig tunes the poll loop
type ReconcilerConfig struct {
	Interval      Duration `yaml:"interval"`
	EmitUnchanged bool     `yaml:"emit_unchanged"`
	Listen        string   `yaml:"listen,omitempty"` // empty = no local HTTP surface
}

// SinkConfig configures where reconciliation events go
type SinkConfig struct {
	DashboardURL string   `yaml:"dashboard_url,omitempty"`
	Timeout      Duration `yaml:"timeout"`
	HTTP2        bool     `yaml:"http2"` // h2c prior knowledge for http://, HTTP/2 over TLS for https://
	JournalPath  string   `yaml:"journal_path,omitempty"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
