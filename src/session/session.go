// Package session keeps recent conversations in memory so clients can
// resume or inspect a chat by id.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Protocol-Lattice/todo-agent/src/cache"
	"github.com/Protocol-Lattice/todo-agent/src/models"
)

const (
	DefaultCapacity = 256
	DefaultTTL      = 30 * time.Minute
)

// Conversation is a cached chat transcript.
type Conversation struct {
	ID        string           `json:"id"`
	Messages  []models.Message `json:"messages"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Store is an LRU+TTL conversation cache keyed by chat id.
type Store struct {
	mu  sync.Mutex
	lru *cache.LRUCache[Conversation]
	now func() time.Time
}

// NewStore builds a store. Non-positive arguments fall back to the defaults.
func NewStore(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{lru: cache.NewLRUCache[Conversation](capacity, ttl), now: time.Now}
}

// NewID returns a fresh chat id.
func NewID() string { return uuid.NewString() }

// Resolve returns id trimmed, or a fresh id when it is blank.
func Resolve(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return NewID()
}

// Save replaces the transcript stored under id.
func (s *Store) Save(id string, msgs []models.Message) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := Conversation{ID: id, Messages: cloneMessages(msgs), UpdatedAt: s.now()}
	s.lru.Set(id, conv)
	return conv
}

// Append adds msgs to the transcript under id, creating it when absent.
func (s *Store) Append(id string, msgs ...models.Message) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, _ := s.lru.Get(id)
	conv.ID = id
	conv.Messages = append(cloneMessages(conv.Messages), cloneMessages(msgs)...)
	conv.UpdatedAt = s.now()
	s.lru.Set(id, conv)
	return conv
}

// Get returns a copy of the transcript under id.
func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.lru.Get(id)
	if !ok {
		return Conversation{}, false
	}
	conv.Messages = cloneMessages(conv.Messages)
	return conv, true
}

// Delete drops the transcript under id.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Delete(id)
}

// Len is the number of cached transcripts.
func (s *Store) Len() int { return s.lru.Len() }

func cloneMessages(msgs []models.Message) []models.Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		if len(m.ToolCalls) > 0 {
			m.ToolCalls = append([]models.ToolCall(nil), m.ToolCalls...)
		}
		out[i] = m
	}
	return out
}
