package extraction

import (
	"context"
	"sync"

	"github.com/mealvault/mealvault/internal/models"
)

// MemoryMetadataStore keeps envelopes in process memory.
type MemoryMetadataStore struct {
	mu      sync.RWMutex
	entries map[string]*models.SocialMediaMetadata
}

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{entries: make(map[string]*models.SocialMediaMetadata)}
}

func metadataKey(p models.Platform, contentID string) string {
	return string(p) + ":" + contentID
}

// Get returns the stored envelope or nil.
func (s *MemoryMetadataStore) Get(_ context.Context, p models.Platform, contentID string) (*models.SocialMediaMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.entries[metadataKey(p, contentID)]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

// Put stores m, replacing any earlier envelope for the same post.
func (s *MemoryMetadataStore) Put(_ context.Context, m *models.SocialMediaMetadata) error {
	cp := *m
	s.mu.Lock()
	s.entries[metadataKey(m.Platform, m.ContentID)] = &cp
	s.mu.Unlock()
	return nil
}
