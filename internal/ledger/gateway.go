package ledger

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"arpledger/internal/domain"
)

// GatewayConfig holds what is needed to reach a Fabric gateway peer
type GatewayConfig struct {
	PeerEndpoint string
	GatewayPeer  string // TLS server name override
	MSPID        string
	CertPath     string
	KeyPath      string // PEM file, or keystore directory holding one
	TLSCertPath  string
	Channel      string
	Chaincode    string
}

// Gateway is a Client backed by the Fabric gateway service
type Gateway struct {
	conn     *grpc.ClientConn
	gw       *client.Gateway
	contract *client.Contract
}

// DialGateway opens the gRPC connection and gateway session
func DialGateway(cfg GatewayConfig) (*Gateway, error) {
	tlsCert, err := loadCertificate(cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(tlsCert)
	creds := credentials.NewClientTLSFromCert(pool, cfg.GatewayPeer)

	conn, err := grpc.NewClient(cfg.PeerEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection: %w", err)
	}

	id, err := newIdentity(cfg.MSPID, cfg.CertPath)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sign, err := newSign(cfg.KeyPath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	gw, err := client.Connect(id, client.WithSign(sign), client.WithClientConnection(conn))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect gateway: %w", err)
	}

	logrus.Infof("Fabric gateway connected: %s (channel=%s, chaincode=%s)",
		cfg.PeerEndpoint, cfg.Channel, cfg.Chaincode)

	return &Gateway{
		conn:     conn,
		gw:       gw,
		contract: gw.GetNetwork(cfg.Channel).GetContract(cfg.Chaincode),
	}, nil
}

// Submit endorses and commits RecordARPEntry
func (g *Gateway) Submit(ctx context.Context, b domain.Binding) error {
	_, err := g.contract.SubmitWithContext(ctx, FnRecord, client.WithArguments(RecordArgs(b)...))
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrRejected, FnRecord, err)
	}
	return nil
}

// QueryAll evaluates GetAllARPEntries
func (g *Gateway) QueryAll(ctx context.Context) ([]domain.Binding, error) {
	payload, err := g.contract.EvaluateWithContext(ctx, FnGetAll)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrRejected, FnGetAll, err)
	}

	bindings, warnings, err := DecodeEntries(payload)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logrus.Warnf("Gateway: skipping ledger entry: %v", w)
	}
	return bindings, nil
}

// Close ends the gateway session and connection
func (g *Gateway) Close() error {
	if err := g.gw.Close(); err != nil {
		logrus.Warnf("Gateway: close session: %v", err)
	}
	return g.conn.Close()
}

func newIdentity(mspID, certPath string) (*identity.X509Identity, error) {
	cert, err := loadCertificate(certPath)
	if err != nil {
		return nil, fmt.Errorf("load identity certificate: %w", err)
	}
	id, err := identity.NewX509Identity(mspID, cert)
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return id, nil
}

func newSign(keyPath string) (identity.Sign, error) {
	path, err := resolveKeyFile(keyPath)
	if err != nil {
		return nil, err
	}
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := identity.PrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	sign, err := identity.NewPrivateKeySign(key)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	return sign, nil
}

// resolveKeyFile accepts either a key file or an MSP keystore directory
func resolveKeyFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat private key: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("read keystore: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			return filepath.Join(path, e.Name()), nil
		}
	}
	return "", fmt.Errorf("keystore %s is empty", path)
}

func loadCertificate(path string) (*x509.Certificate, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate file: %w", err)
	}
	return identity.CertificateFromPEM(pemBytes)
}
