package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

var _ ServiceKeyStore = (*InMemoryKeyStore)(nil)

// InMemoryKeyStore is a thread-safe ServiceKeyStore for tests and local runs. It
// follows the persistent store's semantics: deletes are soft and only active keys
// are visible to lookups.
type InMemoryKeyStore struct {
	// keys maps plaintext keys to entries
	keys map[string]*ServiceKey
	// keysByID maps key IDs to the same entries
	keysByID map[string]*ServiceKey
	mutex    sync.RWMutex
}

// NewInMemoryKeyStore creates an empty store.
func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{
		keys:     make(map[string]*ServiceKey),
		keysByID: make(map[string]*ServiceKey),
	}
}

// FindByKey returns a masked copy of the active key matching key.
func (s *InMemoryKeyStore) FindByKey(_ context.Context, key string) (*ServiceKey, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	serviceKey, exists := s.keys[key]
	if !exists || !serviceKey.Active {
		return nil, false
	}

	return maskedCopy(serviceKey), true
}

// Add stores a copy of serviceKey.
func (s *InMemoryKeyStore) Add(_ context.Context, serviceKey *ServiceKey) error {
	if serviceKey == nil { // pragma: allowlist secret
		return ErrKeyNil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.keysByID[serviceKey.ID]; exists {
		return ErrKeyAlreadyExists
	}

	if _, exists := s.keys[serviceKey.Key]; exists {
		return ErrKeyAlreadyExists
	}

	keyCopy := *serviceKey

	s.keys[keyCopy.Key] = &keyCopy
	s.keysByID[keyCopy.ID] = &keyCopy

	return nil
}

// Update changes name, role, tier, active and expiry. The key value is immutable.
func (s *InMemoryKeyStore) Update(_ context.Context, serviceKey *ServiceKey) error {
	if serviceKey == nil { // pragma: allowlist secret
		return ErrKeyNil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing, exists := s.keysByID[serviceKey.ID]
	if !exists {
		return ErrKeyNotFound
	}

	existing.Name = serviceKey.Name
	existing.Role = serviceKey.Role
	existing.Tier = serviceKey.Tier
	existing.Active = serviceKey.Active
	existing.ExpiresAt = serviceKey.ExpiresAt

	return nil
}

// Delete deactivates the key with keyID.
func (s *InMemoryKeyStore) Delete(_ context.Context, keyID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing, exists := s.keysByID[keyID]
	if !exists {
		return ErrKeyNotFound
	}

	existing.Active = false

	return nil
}

// ListByOwner returns masked copies of ownerID's active keys, newest first.
func (s *InMemoryKeyStore) ListByOwner(_ context.Context, ownerID string) ([]*ServiceKey, error) {
	if ownerID == "" {
		return nil, ErrOwnerIDEmpty
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := []*ServiceKey{}

	for _, key := range s.keysByID {
		if key.OwnerID == ownerID && key.Active {
			result = append(result, maskedCopy(key))
		}
	}

	slices.SortFunc(result, func(a, b *ServiceKey) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return result, nil
}

func maskedCopy(key *ServiceKey) *ServiceKey {
	keyCopy := *key
	keyCopy.Key = MaskKey(key.Key)

	return &keyCopy
}
