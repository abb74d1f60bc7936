package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
)

// PeerCLIConfig describes how to drive the Fabric peer binary
type PeerCLIConfig struct {
	Binary              string
	FabricCfgPath       string
	Orderer             string
	OrdererHostOverride string
	OrdererCAFile       string
	PeerAddress         string
	TLSRootCertFile     string
	MSPConfigPath       string
	MSPID               string
	Channel             string
	Chaincode           string
}

// runFunc executes a command and returns stdout and stderr
type runFunc func(ctx context.Context, name string, args, env []string) (stdout, stderr []byte, err error)

// PeerCLI is a Client that shells out to `peer chaincode invoke|query`
type PeerCLI struct {
	cfg PeerCLIConfig
	run runFunc
}

// NewPeerCLI creates a peer CLI ledger client
func NewPeerCLI(cfg PeerCLIConfig) *PeerCLI {
	if cfg.Binary == "" {
		cfg.Binary = "peer"
	}
	return &PeerCLI{cfg: cfg, run: execRun}
}

// chaincodeCall is the -c argument of the peer CLI
type chaincodeCall struct {
	Function string   `json:"function,omitempty"`
	Args     []string `json:"Args"`
}

// Submit runs `peer chaincode invoke` for RecordARPEntry
func (p *PeerCLI) Submit(ctx context.Context, b domain.Binding) error {
	call, err := json.Marshal(chaincodeCall{Function: FnRecord, Args: RecordArgs(b)})
	if err != nil {
		return fmt.Errorf("encode invoke args: %w", err)
	}

	args := []string{
		"chaincode", "invoke",
		"-o", p.cfg.Orderer,
		"--ordererTLSHostnameOverride", p.cfg.OrdererHostOverride,
		"--tls",
		"--cafile", p.cfg.OrdererCAFile,
		"-C", p.cfg.Channel,
		"-n", p.cfg.Chaincode,
		"--peerAddresses", p.cfg.PeerAddress,
		"--tlsRootCertFiles", p.cfg.TLSRootCertFile,
		"-c", string(call),
	}

	_, stderr, err := p.run(ctx, p.cfg.Binary, args, p.env())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: invoke %s: %v: %s", ErrRejected, FnRecord, err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// QueryAll runs `peer chaincode query` for GetAllARPEntries
func (p *PeerCLI) QueryAll(ctx context.Context) ([]domain.Binding, error) {
	call, err := json.Marshal(chaincodeCall{Args: []string{FnGetAll}})
	if err != nil {
		return nil, fmt.Errorf("encode query args: %w", err)
	}

	args := []string{
		"chaincode", "query",
		"-C", p.cfg.Channel,
		"-n", p.cfg.Chaincode,
		"-c", string(call),
	}

	stdout, stderr, err := p.run(ctx, p.cfg.Binary, args, p.env())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: query %s: %v: %s", ErrRejected, FnGetAll, err, strings.TrimSpace(string(stderr)))
	}

	bindings, warnings, err := DecodeEntries(bytes.TrimSpace(stdout))
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logrus.Warnf("PeerCLI: skipping ledger entry: %v", w)
	}
	return bindings, nil
}

// env returns the CORE_PEER_* environment the peer binary expects
func (p *PeerCLI) env() []string {
	env := os.Environ()
	env = append(env,
		"CORE_PEER_TLS_ENABLED=true",
		"CORE_PEER_LOCALMSPID="+p.cfg.MSPID,
		"CORE_PEER_TLS_ROOTCERT_FILE="+p.cfg.TLSRootCertFile,
		"CORE_PEER_MSPCONFIGPATH="+p.cfg.MSPConfigPath,
		"CORE_PEER_ADDRESS="+p.cfg.PeerAddress,
	)
	if p.cfg.FabricCfgPath != "" {
		env = append(env, "FABRIC_CFG_PATH="+p.cfg.FabricCfgPath)
	}
	return env
}

func execRun(ctx context.Context, name string, args, env []string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
