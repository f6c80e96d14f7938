package datastore

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// LabelSet represents a set of labels on an address book entry.
type LabelSet struct {
	elements map[string]struct{}
}

// NewLabelSet initializes a new LabelSet with any number of labels.
func NewLabelSet(labels ...string) LabelSet {
	var s LabelSet
	s.Add(labels...)

	return s
}

// Add inserts one or more labels into the set. Empty labels are ignored.
func (s *LabelSet) Add(labels ...string) {
	if s.elements == nil {
		s.elements = make(map[string]struct{}, len(labels))
	}
	for _, l := range labels {
		if l != "" {
			s.elements[l] = struct{}{}
		}
	}
}

// Contains checks if the set contains the given label.
func (s LabelSet) Contains(label string) bool {
	_, ok := s.elements[label]

	return ok
}

// List returns the labels as a sorted slice of strings.
func (s LabelSet) List() []string {
	if len(s.elements) == 0 {
		return []string{}
	}

	return slices.Sorted(maps.Keys(s.elements))
}

// String returns the labels as a sorted, space-separated string.
func (s LabelSet) String() string {
	return strings.Join(s.List(), " ")
}

// IsEmpty checks if the LabelSet is empty.
func (s LabelSet) IsEmpty() bool {
	return len(s.elements) == 0
}

// Equal checks if two LabelSets are equal.
func (s LabelSet) Equal(other LabelSet) bool {
	return maps.Equal(s.elements, other.elements)
}

// Clone creates a copy of the LabelSet.
func (s LabelSet) Clone() LabelSet {
	return LabelSet{elements: maps.Clone(s.elements)}
}

// MarshalJSON marshals the LabelSet as a sorted JSON array of strings.
func (s LabelSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON unmarshals a JSON array of strings into the LabelSet.
func (s *LabelSet) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	*s = NewLabelSet(labels...)

	return nil
}
