package deployer

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/semaphore"
)

type signerKey struct {
	chainSelector uint64
	address       common.Address
}

// SignerLocks serialises transaction submission per signing account and chain. Two sessions
// submitting with the same account would otherwise race for the same nonce.
type SignerLocks struct {
	mu   sync.Mutex
	sems map[signerKey]*semaphore.Weighted
}

// NewSignerLocks returns an empty lock table.
func NewSignerLocks() *SignerLocks {
	return &SignerLocks{sems: make(map[signerKey]*semaphore.Weighted)}
}

// Acquire blocks until the account is free on the chain or ctx is done. The returned function
// releases it and must be called exactly once.
func (l *SignerLocks) Acquire(ctx context.Context, chainSelector uint64, addr common.Address) (func(), error) {
	key := signerKey{chainSelector: chainSelector, address: addr}

	l.mu.Lock()
	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}
	l.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	var once sync.Once

	return func() { once.Do(func() { sem.Release(1) }) }, nil
}
