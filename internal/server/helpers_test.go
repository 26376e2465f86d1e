package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ChafterInnovations/Kutter/internal/auth"
	"github.com/ChafterInnovations/Kutter/internal/bus"
	"github.com/ChafterInnovations/Kutter/internal/config"
	"github.com/ChafterInnovations/Kutter/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var errStoreDown = errors.New("store down")

// fakeStore is an in-memory MessageStore for handler tests.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	messages []domain.ChatMessage
	failing  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (s *fakeStore) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func (s *fakeStore) Append(_ context.Context, authorID, authorName, body string) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	msg := domain.ChatMessage{
		ID:         s.nextID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       body,
		Timestamp:  time.Now().UTC(),
	}
	s.nextID++
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *fakeStore) GetByID(_ context.Context, id int) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	for _, msg := range s.messages {
		if msg.ID == id {
			return &msg, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (s *fakeStore) DeleteByID(_ context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, errStoreDown
	}
	for i, msg := range s.messages {
		if msg.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ListAll(_ context.Context) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	out := make([]domain.ChatMessage, 0, len(s.messages))
	for i := len(s.messages) - 1; i >= 0; i-- {
		out = append(out, s.messages[i])
	}
	return out, nil
}

// fakeUsers is an in-memory UserRepository.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*domain.User)}
}

func (r *fakeUsers) Create(_ context.Context, email, username, passwordHash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[email]; ok {
		return nil, domain.ErrUserExists
	}
	for _, u := range r.users {
		if u.Username == username {
			return nil, domain.ErrUserExists
		}
	}
	user := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.users[email] = user
	return user, nil
}

func (r *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUsers) MarkVerified(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[email]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Verified = true
	return nil
}

// fakeMailer records the last verification mail instead of sending it.
type fakeMailer struct {
	mu        sync.Mutex
	email     string
	username  string
	verifyURL string
	sent      int
}

func (m *fakeMailer) SendVerification(email, username, verifyURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.email = email
	m.username = username
	m.verifyURL = verifyURL
	m.sent++
	return nil
}

func (m *fakeMailer) lastURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyURL
}

// pingFunc adapts a function to the readiness pinger interface.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthyDB() pingFunc {
	return func(context.Context) error { return nil }
}

type testApp struct {
	srv    *Server
	store  *fakeStore
	users  *fakeUsers
	mailer *fakeMailer
	auth   *auth.Authenticator
	bus    *bus.Bus
	clock  clockwork.Clock
}

func newTestApp(db pingFunc) *testApp {
	cfg := &config.Config{
		AppEnv:         "test",
		Port:           "0",
		TokenSecret:    testSecret,
		AllowedOrigins: []string{"http://localhost:3000"},
		StaticDir:      "testdata/static",
		BaseURL:        "http://localhost:8080",
	}

	clock := clockwork.NewRealClock()
	store := newFakeStore()
	users := newFakeUsers()
	m := &fakeMailer{}
	authenticator := auth.NewAuthenticator(cfg.TokenSecret, clock)
	b := bus.New(bus.DefaultCapacity)

	srv := NewServer(cfg, store, users, authenticator, b, m, clock, db, nil)

	return &testApp{
		srv:    srv,
		store:  store,
		users:  users,
		mailer: m,
		auth:   authenticator,
		bus:    b,
		clock:  clock,
	}
}
