package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage implements the Store interface using in-memory maps. It is
// the default for tests and local development.
type MemoryStorage struct {
	mu sync.RWMutex

	clients map[string]*Client
	users   map[string]*User
	codes   map[string]*AuthorizationCode
	tokens  map[string]*tokenRecord
}

// NewMemoryStorage creates a new memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		clients: make(map[string]*Client),
		users:   make(map[string]*User),
		codes:   make(map[string]*AuthorizationCode),
		tokens:  make(map[string]*tokenRecord),
	}
}

// GetClient retrieves a client by ID. The returned value is a copy; callers
// may strip the secret without corrupting the stored record.
func (s *MemoryStorage) GetClient(ctx context.Context, id string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *client
	cp.RedirectURIs = append([]string(nil), client.RedirectURIs...)
	cp.Grants = append([]string(nil), client.Grants...)
	return &cp, nil
}

// SaveClient upserts a client by ID.
func (s *MemoryStorage) SaveClient(ctx context.Context, client *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cp := *client
	if existing, ok := s.clients[client.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.clients[client.ID] = &cp
	return nil
}

// GetUser retrieves a user by handle.
func (s *MemoryStorage) GetUser(ctx context.Context, handle string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[handle]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// SaveUser upserts a user by handle.
func (s *MemoryStorage) SaveUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cp := *user
	if existing, ok := s.users[user.Handle]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.users[user.Handle] = &cp
	return nil
}

// GetAuthorizationCode retrieves an authorization code by its code string.
func (s *MemoryStorage) GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *record
	return &cp, nil
}

// SaveAuthorizationCode upserts an authorization code by its code string.
func (s *MemoryStorage) SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *code
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.codes[code.Code] = &cp
	return nil
}

// DeleteAuthorizationCode deletes an authorization code, reporting whether a
// record was removed.
func (s *MemoryStorage) DeleteAuthorizationCode(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[code]; !ok {
		return false, nil
	}
	delete(s.codes, code)
	return true, nil
}

// GetAccessToken retrieves an access token by its token string.
func (s *MemoryStorage) GetAccessToken(ctx context.Context, token string) (*AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tokens[token]
	if !ok || record.Kind != tokenKindAccess {
		return nil, ErrNotFound
	}
	return record.access(), nil
}

// SaveAccessToken upserts an access token by its token string.
func (s *MemoryStorage) SaveAccessToken(ctx context.Context, token *AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := accessRecord(token)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.tokens[token.Token] = record
	return nil
}

// GetRefreshToken retrieves a refresh token by its token string.
func (s *MemoryStorage) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tokens[token]
	if !ok || record.Kind != tokenKindRefresh {
		return nil, ErrNotFound
	}
	return record.refresh(), nil
}

// SaveRefreshToken upserts a refresh token by its token string.
func (s *MemoryStorage) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := refreshRecord(token)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.tokens[token.Token] = record
	return nil
}

// DeleteRefreshToken deletes a refresh token, reporting whether a record was
// removed. Access tokens are untouched.
func (s *MemoryStorage) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[token]
	if !ok || record.Kind != tokenKindRefresh {
		return false, nil
	}
	delete(s.tokens, token)
	return true, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStorage) Close() error {
	return nil
}
