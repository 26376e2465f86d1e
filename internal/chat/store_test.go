package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ChafterInnovations/Kutter/internal/domain"
)

// memoryStore is an in-memory domain.MessageStore for session tests.
type memoryStore struct {
	mu       sync.Mutex
	nextID   int
	messages map[int]domain.ChatMessage
	order    []int
	failing  bool
}

var errStoreDown = errors.New("store unavailable")

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 1, messages: make(map[int]domain.ChatMessage)}
}

func (s *memoryStore) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func (s *memoryStore) Append(_ context.Context, authorID, authorName, body string) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return nil, errStoreDown
	}
	if strings.TrimSpace(body) == "" {
		return nil, domain.ErrEmptyBody
	}

	msg := domain.ChatMessage{
		ID:         s.nextID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       body,
		Timestamp:  time.Now().UTC(),
	}
	s.nextID++
	s.messages[msg.ID] = msg
	s.order = append(s.order, msg.ID)
	return &msg, nil
}

func (s *memoryStore) GetByID(_ context.Context, id int) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return nil, errStoreDown
	}
	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return &msg, nil
}

func (s *memoryStore) DeleteByID(_ context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return false, errStoreDown
	}
	if _, ok := s.messages[id]; !ok {
		return false, nil
	}
	delete(s.messages, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *memoryStore) ListAll(_ context.Context) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return nil, errStoreDown
	}
	out := make([]domain.ChatMessage, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.messages[s.order[i]])
	}
	return out, nil
}

func (s *memoryStore) contains(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.messages[id]
	return ok
}
