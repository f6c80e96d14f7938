// Package datastore keeps the address book of deployed contracts: one record per contract
// name, chain and qualifier, persisted as a JSON file next to the project.
package datastore

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAddressRefNotFound = errors.New("no address ref record can be found for the provided key")
	ErrAddressRefExists   = errors.New("an address ref record with the supplied key already exists")
)

// AddressRef records where a contract was deployed.
type AddressRef struct {
	// Address is the hex address of the deployed contract.
	Address string `json:"address"`
	// ChainSelector is the chain-selector of the chain where the contract is deployed.
	ChainSelector uint64 `json:"chainSelector"`
	// ContractName is the name of the contract in its source.
	ContractName string `json:"contractName"`
	// Qualifier distinguishes several deployments of the same contract on one chain.
	Qualifier string `json:"qualifier"`
	// TxHash is the hash of the creation transaction.
	TxHash string `json:"txHash"`
	// Labels are free-form tags on the record.
	Labels LabelSet `json:"labels"`
	// DeployedAt is when the deployment was confirmed.
	DeployedAt time.Time `json:"deployedAt"`
}

// AddressRefKey uniquely identifies a record in the address book.
type AddressRefKey struct {
	ChainSelector uint64
	ContractName  string
	Qualifier     string
}

// NewAddressRefKey creates a new AddressRefKey.
func NewAddressRefKey(chainSelector uint64, contractName, qualifier string) AddressRefKey {
	return AddressRefKey{
		ChainSelector: chainSelector,
		ContractName:  contractName,
		Qualifier:     qualifier,
	}
}

// String renders the key for error messages and listings.
func (k AddressRefKey) String() string {
	if k.Qualifier == "" {
		return fmt.Sprintf("%s@%d", k.ContractName, k.ChainSelector)
	}

	return fmt.Sprintf("%s[%s]@%d", k.ContractName, k.Qualifier, k.ChainSelector)
}

// Key returns the AddressRefKey of the record.
func (r AddressRef) Key() AddressRefKey {
	return NewAddressRefKey(r.ChainSelector, r.ContractName, r.Qualifier)
}

// Validate checks the fields every record must carry.
func (r AddressRef) Validate() error {
	var errs []error
	if r.ChainSelector == 0 {
		errs = append(errs, errors.New("chain selector is required"))
	}
	if r.ContractName == "" {
		errs = append(errs, errors.New("contract name is required"))
	}
	if !common.IsHexAddress(r.Address) {
		errs = append(errs, fmt.Errorf("address %q is not a hex address", r.Address))
	}

	return errors.Join(errs...)
}

// Clone returns a copy of the record that shares no labels with it.
func (r AddressRef) Clone() AddressRef {
	r.Labels = r.Labels.Clone()

	return r
}
