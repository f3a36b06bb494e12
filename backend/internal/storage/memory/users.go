// Package memory keeps users and consumed refresh tokens in process memory.
// It backs tests and the --memory dev mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/crmportal/crmportal/shared/domain"
	"github.com/google/uuid"
)

type Users struct {
	mu      sync.RWMutex
	byId    map[domain.UserId]domain.User
	byEmail map[domain.Email]domain.UserId
	now     func() time.Time
}

func NewUsers() *Users {
	return &Users{
		byId:    make(map[domain.UserId]domain.User),
		byEmail: make(map[domain.Email]domain.UserId),
		now:     time.Now,
	}
}

func (s *Users) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return domain.User{}, domain.ErrConflict
	}

	now := s.now().UTC()
	user.Id = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.byId[user.Id] = user
	s.byEmail[user.Email] = user.Id
	return user, nil
}

func (s *Users) UserByEmail(_ context.Context, email domain.Email) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return s.byId[id], nil
}

func (s *Users) UserById(_ context.Context, id domain.UserId) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byId[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (s *Users) UserByVerificationToken(_ context.Context, tokenHash string) (domain.User, error) {
	if tokenHash == "" {
		return domain.User{}, domain.ErrNotFound
	}
	return s.find(func(u domain.User) bool { return u.VerificationTokenHash == tokenHash })
}

func (s *Users) UserByResetToken(_ context.Context, tokenHash string) (domain.User, error) {
	if tokenHash == "" {
		return domain.User{}, domain.ErrNotFound
	}
	return s.find(func(u domain.User) bool { return u.ResetTokenHash == tokenHash })
}

func (s *Users) find(match func(domain.User) bool) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.byId {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *Users) UpdateUser(_ context.Context, id domain.UserId, patch domain.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byId[id]
	if !ok || !patch.Apply(&user) {
		return domain.ErrNotFound
	}
	user.UpdatedAt = s.now().UTC()
	s.byId[id] = user
	return nil
}

func (s *Users) Ping(context.Context) error {
	return nil
}
