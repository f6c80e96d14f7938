package datastore

import (
	"strings"
)

// FilterFunc narrows a list of records. Filters compose: Filter applies them in order.
type FilterFunc func(records []AddressRef) []AddressRef

// addressRefFilter returns a filter that includes records for which the predicate returns true.
func addressRefFilter(predicate func(record AddressRef) bool) FilterFunc {
	return func(records []AddressRef) []AddressRef {
		filtered := make([]AddressRef, 0, len(records))
		for _, record := range records {
			if predicate(record) {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}

// AddressRefByAddress returns a filter that only includes records with the provided address,
// compared case-insensitively.
func AddressRefByAddress(address string) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return strings.EqualFold(record.Address, address)
	})
}

// AddressRefByChainSelector returns a filter that only includes records with the provided chain.
func AddressRefByChainSelector(chainSelector uint64) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return record.ChainSelector == chainSelector
	})
}

// AddressRefByContractName returns a filter that only includes records of the provided contract.
func AddressRefByContractName(name string) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return record.ContractName == name
	})
}

// AddressRefByLabel returns a filter that only includes records carrying the provided label.
func AddressRefByLabel(label string) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return record.Labels.Contains(label)
	})
}
