package telegram

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShardCount = 32

type memoryShard struct {
	mu       sync.Mutex
	sessions map[string]PendingSession
}

// MemoryStore keeps sessions in process. Each shard has its own lock so a
// sweep only ever blocks one shard at a time.
type MemoryStore struct {
	shards [memoryShardCount]*memoryShard
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &memoryShard{sessions: make(map[string]PendingSession)}
	}
	return s
}

func (s *MemoryStore) shard(token string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return s.shards[h.Sum32()%memoryShardCount]
}

func (s *MemoryStore) Put(_ context.Context, session PendingSession) error {
	sh := s.shard(session.Token)
	sh.mu.Lock()
	sh.sessions[session.Token] = copySession(session)
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string, cutoff time.Time) (*PendingSession, error) {
	sh := s.shard(token)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	session, ok := sh.sessions[token]
	if !ok || expired(session.CreatedAt, cutoff) {
		return nil, ErrSessionNotFound
	}
	out := copySession(session)
	return &out, nil
}

func (s *MemoryStore) Complete(_ context.Context, token string, identity Identity, cutoff time.Time) (CompletionResult, error) {
	sh := s.shard(token)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	session, ok := sh.sessions[token]
	if !ok || expired(session.CreatedAt, cutoff) {
		return ResultNotFound, nil
	}
	if session.Status == StatusCompleted {
		return ResultAlreadyCompleted, nil
	}
	user := identity
	session.Status = StatusCompleted
	session.User = &user
	sh.sessions[token] = session
	return ResultCompleted, nil
}

func (s *MemoryStore) Consume(_ context.Context, token string, cutoff time.Time) (*PendingSession, error) {
	sh := s.shard(token)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	session, ok := sh.sessions[token]
	if !ok || expired(session.CreatedAt, cutoff) {
		return nil, ErrSessionNotFound
	}
	if session.Status == StatusCompleted {
		delete(sh.sessions, token)
	}
	out := copySession(session)
	return &out, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	sh := s.shard(token)
	sh.mu.Lock()
	delete(sh.sessions, token)
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sh.mu.Lock()
		for token, session := range sh.sessions {
			if expired(session.CreatedAt, cutoff) {
				delete(sh.sessions, token)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len counts stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

func copySession(session PendingSession) PendingSession {
	if session.User != nil {
		user := *session.User
		session.User = &user
	}
	return session
}
