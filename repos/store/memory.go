package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/nvbf/tournament-desk/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.TournamentRecord
	keys    map[string]models.AuthorizationKey
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.TournamentRecord),
		keys:    make(map[string]models.AuthorizationKey),
	}
}

func (m *MemoryStore) Save(_ context.Context, tournamentID string, record *models.TournamentRecord) error {
	// Copy to avoid sharing with the caller's draft
	copied, err := record.Clone()
	if err != nil {
		return err
	}
	if copied == nil {
		return fmt.Errorf("tournament %s: nil record", tournamentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[tournamentID] = copied
	return nil
}

func (m *MemoryStore) Load(_ context.Context, tournamentID string) (*models.TournamentRecord, error) {
	m.mu.RLock()
	record, ok := m.records[tournamentID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tournament %s: %w", tournamentID, ErrNotFound)
	}
	return record.Clone()
}

func (m *MemoryStore) PutKey(_ context.Context, key models.AuthorizationKey, expired Expiry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.keys[key.Value]; ok {
		if err := replaceable(stored, key, expired); err != nil {
			return err
		}
	}
	m.keys[key.Value] = key
	return nil
}

func (m *MemoryStore) ConsumeKey(_ context.Context, value, redeemer string, expired Expiry) (*models.AuthorizationKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[value]
	if !ok {
		return nil, fmt.Errorf("authorization key %s: %w", value, ErrNotFound)
	}
	redeemed, err := consume(key, redeemer, expired)
	if err != nil {
		return &key, err
	}
	m.keys[value] = redeemed
	return &redeemed, nil
}
