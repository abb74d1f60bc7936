package source

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"arpledger/internal/domain"
)

const neighCommand = "ip -4 neigh show"

// SSHConfig describes how to reach a remote router
type SSHConfig struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	Password       string
	KnownHostsPath string // empty = host key not checked
	Interval       time.Duration
	Timeout        time.Duration
}

// SSHNeighbors periodically reads a remote router's neighbour table over SSH.
// Entries are reported as requests, like the local table.
type SSHNeighbors struct {
	cfg    SSHConfig
	config *ssh.ClientConfig
}

// NewSSHNeighbors validates credentials and builds the client config
func NewSSHNeighbors(cfg SSHConfig) (*SSHNeighbors, error) {
	config, err := buildSSHConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}
	return &SSHNeighbors{cfg: cfg, config: config}, nil
}

func buildSSHConfig(cfg SSHConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyPath != "" {
		pem, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no key or password for %s@%s", cfg.User, cfg.Host)
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("known hosts: %w", err)
		}
		hostKey = cb
	} else {
		logrus.Warnf("SSHNeighbors: host key for %s will not be verified", cfg.Host)
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	}, nil
}

// Bindings starts polling the remote table until ctx is cancelled
func (s *SSHNeighbors) Bindings(ctx context.Context) (<-chan domain.Binding, error) {
	logrus.Infof("SSHNeighbors: reading %s@%s:%d every %s", s.cfg.User, s.cfg.Host, s.cfg.Port, s.cfg.Interval)
	return poll(ctx, "SSHNeighbors", s.cfg.Interval, s.read), nil
}

func (s *SSHNeighbors) read(ctx context.Context) ([]domain.Binding, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	out, err := runCommand(ctx, client, neighCommand)
	if err != nil {
		return nil, err
	}
	return parseIPNeigh(out, time.Now()), nil
}

func (s *SSHNeighbors) connect(ctx context.Context) (*ssh.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, s.config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func runCommand(ctx context.Context, client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.Output(cmd)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("command failed: %w", r.err)
		}
		return string(r.out), nil
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command timeout: %w", ctx.Err())
	}
}

// parseIPNeigh parses `ip neigh show` output:
//
//	192.168.1.1 dev eth0 lladdr aa:bb:cc:dd:ee:ff REACHABLE
//
// Entries without a link-layer address (FAILED, INCOMPLETE) are skipped.
func parseIPNeigh(output string, at time.Time) []domain.Binding {
	var out []domain.Binding

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.Contains(fields[0], ":") {
			continue
		}

		b := domain.Binding{IP: fields[0], Kind: domain.KindRequest, RecordedAt: at}
		for i := 1; i+1 < len(fields); i++ {
			switch fields[i] {
			case "dev":
				b.Interface = fields[i+1]
			case "lladdr":
				b.HWAddr = fields[i+1]
			}
		}
		if b.HWAddr == "" || b.HWAddr == incompleteHWAddr {
			continue
		}
		out = append(out, b)
	}
	return out
}
