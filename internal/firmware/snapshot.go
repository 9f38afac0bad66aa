package firmware

import "sort"

// Snapshot is a read-only view of the catalog taken at a single instant.
type Snapshot struct {
	byID    map[string]*Firmware
	ordered []*Firmware // highest version first
}

// NewSnapshot builds a snapshot from catalog records.
func NewSnapshot(items []*Firmware) Snapshot {
	s := Snapshot{
		byID:    make(map[string]*Firmware, len(items)),
		ordered: make([]*Firmware, 0, len(items)),
	}
	for _, f := range items {
		s.byID[f.ID] = f
		s.ordered = append(s.ordered, f)
	}
	sort.SliceStable(s.ordered, func(i, j int) bool {
		a, b := s.ordered[i], s.ordered[j]
		if c := CompareVersions(a.Version, b.Version); c != 0 {
			return c > 0
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return s
}

// Get returns the firmware with the given id.
func (s Snapshot) Get(id string) (*Firmware, bool) {
	f, ok := s.byID[id]
	return f, ok
}

// Latest returns the highest-version firmware compatible with the hardware.
func (s Snapshot) Latest(hardwareID string) (*Firmware, bool) {
	for _, f := range s.ordered {
		if f.CompatibleWith(hardwareID) {
			return f, true
		}
	}
	return nil, false
}

// Len returns the number of firmware records in the snapshot.
func (s Snapshot) Len() int {
	return len(s.ordered)
}
