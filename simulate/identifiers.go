package simulate

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/ethereum/go-ethereum/common"
	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/protobase/launchpad/chain/evm"
	"github.com/protobase/launchpad/progress"
)

// Identifiers are the synthetic values of one simulated session. They are drawn once when the
// session starts, so every step that mentions the transaction or the contract shows the same one.
type Identifiers struct {
	TxHash          common.Hash
	ContractAddress common.Address
	BlockNumber     uint64
	GasUsed         uint64
	Network         string
}

// ShortTxHash is the display form of TxHash.
func (ids Identifiers) ShortTxHash() string { return progress.Abbrev(ids.TxHash.Hex()) }

// ShortAddress is the display form of ContractAddress.
func (ids Identifiers) ShortAddress() string { return progress.Abbrev(ids.ContractAddress.Hex()) }

func newIdentifiers(rng *rand.Rand, chainSelector uint64) Identifiers {
	var ids Identifiers
	fill(rng, ids.TxHash[:])
	fill(rng, ids.ContractAddress[:])
	ids.BlockNumber = 1_000_000 + rng.Uint64N(9_000_000)
	ids.GasUsed = 100_000 + rng.Uint64N(400_000)
	ids.Network = networkName(chainSelector)

	return ids
}

func fill(rng *rand.Rand, b []byte) {
	var word [8]byte
	for i := 0; i < len(b); i += len(word) {
		binary.BigEndian.PutUint64(word[:], rng.Uint64())
		copy(b[i:], word[:])
	}
}

func networkName(selector uint64) string {
	if chain, ok := chainsel.ChainBySelector(selector); ok {
		return chain.Name
	}

	return evm.ChainName(selector)
}
