package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LoadFile reads the address book at path. A missing file is an empty address book.
func LoadFile(path string) (*MemoryAddressRefStore, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewMemoryAddressRefStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	s := NewMemoryAddressRefStore()
	if err = json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON at path %s: %w", path, err)
	}

	for i, r := range s.Records {
		if err = r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid record %d in %s: %w", i, path, err)
		}
	}

	return s, nil
}

// SaveFile writes the address book to path as pretty JSON.
func (s *MemoryAddressRefStore) SaveFile(path string) error {
	s.mu.RLock()
	b, err := json.MarshalIndent(struct {
		Records []AddressRef `json:"records"`
	}{s.Records}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(b, '\n'), 0600)
}
