package job

import (
	"sync"
	"time"
)

const artifactTTL = time.Hour

// Artifacts holds the rendered downloads for one completed
// transcription.
type Artifacts struct {
	TXT  []byte
	SRT  []byte
	DOCX []byte
}

type storeEntry struct {
	artifacts *Artifacts
	createdAt time.Time
}

// Store keeps completed transcriptions in memory, keyed by ID, for the
// download handlers. Entries expire after an hour.
type Store struct {
	mtx     sync.Mutex
	entries map[string]storeEntry

	// now is replaced in tests.
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: map[string]storeEntry{},
		now:     time.Now,
	}
}

func (s *Store) Put(id string, artifacts *Artifacts) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.evictExpired()
	s.entries[id] = storeEntry{
		artifacts: artifacts,
		createdAt: s.now(),
	}
}

// Get returns the artifacts for the given ID, or nil when the ID is
// unknown or has expired.
func (s *Store) Get(id string) *Artifacts {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.evictExpired()
	entry, ok := s.entries[id]
	if !ok {
		return nil
	}
	return entry.artifacts
}

func (s *Store) evictExpired() {
	cutoff := s.now().Add(-artifactTTL)
	for id, entry := range s.entries {
		if entry.createdAt.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}
