package datastore

import (
	"errors"
	"sync"

	"github.com/protobase/launchpad/facts"
	"github.com/protobase/launchpad/pkg/logger"
)

// Recorder writes every real deployment published on a facts bus to the address book file.
// Simulated deployments have nothing to record.
type Recorder struct {
	path      string
	qualifier string
	labels    []string
	lggr      logger.Logger

	mu  sync.Mutex
	err error
}

// NewRecorder returns a Recorder for the address book at path. Records it writes carry the
// qualifier and labels.
func NewRecorder(path, qualifier string, labels []string, lggr logger.Logger) *Recorder {
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Recorder{
		path:      path,
		qualifier: qualifier,
		labels:    labels,
		lggr:      lggr,
	}
}

// Subscribe starts recording the successful deployments published on bus.
func (r *Recorder) Subscribe(bus *facts.Bus) error {
	return bus.OnSucceeded(r.record)
}

// Err returns the errors of every failed write so far.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

func (r *Recorder) record(f facts.DeploymentSucceeded) {
	if f.Simulated {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ref := AddressRef{
		Address:       f.ContractAddress.Hex(),
		ChainSelector: f.ChainSelector,
		ContractName:  f.ContractName,
		Qualifier:     r.qualifier,
		TxHash:        f.TxHash.Hex(),
		Labels:        NewLabelSet(r.labels...),
		DeployedAt:    f.At.UTC(),
	}

	if err := r.save(ref); err != nil {
		r.lggr.Errorw("Failed to record deployment", "key", ref.Key().String(), "path", r.path, "error", err)
		r.err = errors.Join(r.err, err)

		return
	}

	r.lggr.Infow("Recorded deployment", "key", ref.Key().String(), "address", ref.Address, "path", r.path)
}

// save reloads the file before writing so records added by other runs are kept.
func (r *Recorder) save(ref AddressRef) error {
	store, err := LoadFile(r.path)
	if err != nil {
		return err
	}
	if err = store.Upsert(ref); err != nil {
		return err
	}

	return store.SaveFile(r.path)
}
