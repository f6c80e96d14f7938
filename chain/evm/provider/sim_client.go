package provider

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	"github.com/protobase/launchpad/chain/evm"
)

var _ evm.OnchainClient = (*SimClient)(nil)

// SimClient is a wrapper struct around a simulated backend which implements OnchainClient but
// also exposes backend methods.
type SimClient struct {
	mu sync.Mutex

	// Embed the simulated.Client to provide access to its methods and adhere to the OnchainClient interface.
	simulated.Client
	// sim is the underlying simulated backend that this client wraps.
	sim *simulated.Backend
	// instant seals a block after every accepted transaction.
	instant bool
}

// NewSimClient creates a SimClient from a simulated backend. With instant set, every transaction
// is mined into its own block as soon as it is sent.
func NewSimClient(sim *simulated.Backend, instant bool) (*SimClient, error) {
	if sim == nil {
		return nil, errors.New("simulated backend must not be nil")
	}

	return &SimClient{
		sim:     sim,
		Client:  sim.Client(),
		instant: instant,
	}, nil
}

// SendTransaction sends tx to the simulated backend and, in instant mode, mines it.
func (b *SimClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := b.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	if b.instant {
		b.Commit()
	}

	return nil
}

// Commit seals the pending transactions into a new block.
func (b *SimClient) Commit() common.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sim.Commit()
}
