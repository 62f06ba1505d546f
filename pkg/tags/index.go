// Package tags deduplicates OSM tag collections so edges can reference them by id.
package tags

import (
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/osm"
)

// Index maps tag collections to dense ids starting at 0.
type Index interface {
	Add(tags osm.Tags) uint32
	Get(id uint32) (osm.Tags, bool)
	Contains(id uint32) bool
	Len() int
}

// MemoryIndex is an Index kept in memory, safe for concurrent use.
type MemoryIndex struct {
	mu    sync.RWMutex
	byKey map[string]uint32
	tags  []osm.Tags
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{byKey: make(map[string]uint32)}
}

func normalize(tags osm.Tags) osm.Tags {
	out := make(osm.Tags, len(tags))
	copy(out, tags)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func key(tags osm.Tags) string {
	var sb strings.Builder
	for _, t := range tags {
		sb.WriteString(t.Key)
		sb.WriteByte(0)
		sb.WriteString(t.Value)
		sb.WriteByte(0)
	}
	return sb.String()
}

// Add returns the id of tags, registering the collection when it is new. Tag order does not matter.
func (m *MemoryIndex) Add(tags osm.Tags) uint32 {
	normalized := normalize(tags)
	k := key(normalized)

	m.mu.RLock()
	id, ok := m.byKey[k]
	m.mu.RUnlock()
	if ok {
		return id
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byKey[k]; ok {
		return id
	}
	id = uint32(len(m.tags))
	m.tags = append(m.tags, normalized)
	m.byKey[k] = id
	return id
}

func (m *MemoryIndex) Get(id uint32) (osm.Tags, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(id) >= len(m.tags) {
		return nil, false
	}
	return m.tags[id], true
}

func (m *MemoryIndex) Contains(id uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int(id) < len(m.tags)
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tags)
}
