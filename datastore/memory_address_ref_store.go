package datastore

import (
	"sync"
)

// MemoryAddressRefStore is an in-memory address book. Records keep their insertion order.
type MemoryAddressRefStore struct {
	mu      sync.RWMutex
	Records []AddressRef `json:"records"`
}

// NewMemoryAddressRefStore creates an empty MemoryAddressRefStore.
func NewMemoryAddressRefStore() *MemoryAddressRefStore {
	return &MemoryAddressRefStore{Records: []AddressRef{}}
}

// Get returns the AddressRef for the provided key, or an error if no such record exists.
func (s *MemoryAddressRefStore) Get(key AddressRefKey) (AddressRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return AddressRef{}, ErrAddressRefNotFound
	}

	return s.Records[idx].Clone(), nil
}

// Fetch returns a copy of all records in the store.
func (s *MemoryAddressRefStore) Fetch() []AddressRef {
	return s.Filter()
}

// Filter returns a copy of all records in the store that pass all of the provided filters.
// If no filters are provided, all records are returned.
func (s *MemoryAddressRefStore) Filter(filters ...FilterFunc) []AddressRef {
	s.mu.RLock()
	records := make([]AddressRef, 0, len(s.Records))
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}
	s.mu.RUnlock()

	for _, filter := range filters {
		records = filter(records)
	}

	return records
}

// indexOf returns the index of the record with the provided key, or -1 if no such record exists.
func (s *MemoryAddressRefStore) indexOf(key AddressRefKey) int {
	for i, record := range s.Records {
		if record.Key() == key {
			return i
		}
	}

	return -1
}

// Add inserts a new record into the store.
// If a record with the same key already exists, an error is returned.
func (s *MemoryAddressRefStore) Add(record AddressRef) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(record.Key()) != -1 {
		return ErrAddressRefExists
	}
	s.Records = append(s.Records, record.Clone())

	return nil
}

// Upsert inserts a new record, or replaces the record with the same key in place.
func (s *MemoryAddressRefStore) Upsert(record AddressRef) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		s.Records = append(s.Records, record.Clone())
		return nil
	}
	s.Records[idx] = record.Clone()

	return nil
}

// Delete removes the record with the provided key, returning an error if no such record exists.
func (s *MemoryAddressRefStore) Delete(key AddressRefKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ErrAddressRefNotFound
	}
	s.Records = append(s.Records[:idx], s.Records[idx+1:]...)

	return nil
}
