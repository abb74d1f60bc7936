package ledger

import (
	"fmt"
	"io"

	"arpledger/internal/config"
	"arpledger/internal/repository/sqlite"
)

// Open builds the client selected by cfg.Ledger.Driver, wrapped with the
// configured timeout. The returned closer releases the underlying
// connection. When the driver is sqlite the repository is also returned so
// callers can reach its history and journal.
func Open(cfg *config.Config) (Client, io.Closer, *sqlite.Repository, error) {
	l := cfg.Ledger

	var (
		raw    Client
		closer io.Closer
		repo   *sqlite.Repository
	)

	switch l.Driver {
	case config.LedgerFabric:
		gw, err := DialGateway(GatewayConfig{
			PeerEndpoint: l.Fabric.PeerEndpoint,
			GatewayPeer:  l.Fabric.GatewayPeer,
			MSPID:        l.Fabric.MSPID,
			CertPath:     l.Fabric.CertPath,
			KeyPath:      l.Fabric.KeyPath,
			TLSCertPath:  l.Fabric.TLSCertPath,
			Channel:      l.Channel,
			Chaincode:    l.Chaincode,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fabric gateway: %w", err)
		}
		raw, closer = gw, gw

	case config.LedgerPeer:
		raw = NewPeerCLI(PeerCLIConfig{
			Binary:              l.Peer.Binary,
			FabricCfgPath:       l.Peer.FabricCfgPath,
			Orderer:             l.Peer.Orderer,
			OrdererHostOverride: l.Peer.OrdererHostOverride,
			OrdererCAFile:       l.Peer.OrdererCAFile,
			PeerAddress:         l.Peer.PeerAddress,
			TLSRootCertFile:     l.Peer.TLSRootCertFile,
			MSPConfigPath:       l.Peer.MSPConfigPath,
			MSPID:               l.Peer.MSPID,
			Channel:             l.Channel,
			Chaincode:           l.Chaincode,
		})
		closer = nopCloser{}

	case config.LedgerSQLite:
		r, err := sqlite.New(l.SQLite.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("sqlite ledger: %w", err)
		}
		raw, closer, repo = r, r, r

	default:
		return nil, nil, nil, fmt.Errorf("unknown ledger driver %q", l.Driver)
	}

	return WithTimeout(raw, l.Timeout.Duration()), closer, repo, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
