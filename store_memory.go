package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCredentialStore is a process local CredentialStore
type MemoryCredentialStore struct {
	mu      sync.Mutex
	records map[string]*TokenRecord
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{records: make(map[string]*TokenRecord)}
}

func (m *MemoryCredentialStore) FindByToken(_ context.Context, token string) (*TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[token]
	if !ok {
		return nil, ErrTokenRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryCredentialStore) Insert(_ context.Context, record *TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.Token]; ok {
		return ErrTokenRecordExists
	}
	cp := *record
	m.records[record.Token] = &cp
	return nil
}

func (m *MemoryCredentialStore) DeleteByToken(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.records[token]
	delete(m.records, token)
	return ok, nil
}

func (m *MemoryCredentialStore) DeleteAllByOwner(_ context.Context, ownerID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for token, rec := range m.records {
		if rec.OwnerID == ownerID {
			delete(m.records, token)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records
func (m *MemoryCredentialStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// MemoryPlayerStore is a process local PlayerStore
type MemoryPlayerStore struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*Player
	byUsername map[string]uuid.UUID
	byNickname map[string]uuid.UUID
}

func NewMemoryPlayerStore() *MemoryPlayerStore {
	return &MemoryPlayerStore{
		byID:       make(map[uuid.UUID]*Player),
		byUsername: make(map[string]uuid.UUID),
		byNickname: make(map[string]uuid.UUID),
	}
}

func (m *MemoryPlayerStore) Create(_ context.Context, player *Player) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := NormalizeUsername(player.Username)
	if _, ok := m.byUsername[key]; ok {
		return nil, ErrUsernameTaken
	}
	if _, ok := m.byNickname[player.Nickname]; ok {
		return nil, ErrNicknameTaken
	}

	cp := *player
	cp.Username = key
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := time.Now().UTC()
	cp.CreatedAt = &now
	cp.UpdatedAt = &now

	m.byID[cp.ID] = &cp
	m.byUsername[key] = cp.ID
	m.byNickname[cp.Nickname] = cp.ID

	out := cp
	return &out, nil
}

func (m *MemoryPlayerStore) FindByID(_ context.Context, id uuid.UUID) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryPlayerStore) FindByUsername(_ context.Context, username string) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[NormalizeUsername(username)]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryPlayerStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return ErrPlayerNotFound
	}
	now := time.Now().UTC()
	p.PasswordHash = passwordHash
	p.UpdatedAt = &now
	return nil
}

// Delete removes a player, tokens are left untouched
func (m *MemoryPlayerStore) Delete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.byID[id]; ok {
		delete(m.byUsername, p.Username)
		delete(m.byNickname, p.Nickname)
		delete(m.byID, id)
	}
}

// MemoryMessageStore is a process local MessageStore
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages []*ChatMessage
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{}
}

func (m *MemoryMessageStore) Save(_ context.Context, msg *ChatMessage) (*ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *msg
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt == nil {
		now := time.Now().UTC()
		cp.CreatedAt = &now
	}
	m.messages = append(m.messages, &cp)

	out := cp
	return &out, nil
}

// List returns the newest messages first
func (m *MemoryMessageStore) List(_ context.Context, amount, skip int) ([]*ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := make([]*ChatMessage, len(m.messages))
	copy(sorted, m.messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(*sorted[j].CreatedAt)
	})

	if skip >= len(sorted) {
		return []*ChatMessage{}, nil
	}
	sorted = sorted[skip:]
	if amount >= 0 && amount < len(sorted) {
		sorted = sorted[:amount]
	}
	return sorted, nil
}
