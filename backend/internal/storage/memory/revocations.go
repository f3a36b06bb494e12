package memory

import (
	"context"
	"sync"
	"time"

	"github.com/crmportal/crmportal/shared/domain"
)

// expired entries are dropped once the map grows past this size
const pruneThreshold = 1024

type Revocations struct {
	mu   sync.Mutex
	used map[domain.TokenId]time.Time
	now  func() time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{
		used: make(map[domain.TokenId]time.Time),
		now:  time.Now,
	}
}

func (r *Revocations) WithClock(now func() time.Time) *Revocations {
	r.now = now
	return r
}

func (r *Revocations) Consume(_ context.Context, id domain.TokenId, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if until, ok := r.used[id]; ok && now.Before(until) {
		return false, nil
	}
	if len(r.used) >= pruneThreshold {
		for k, until := range r.used {
			if !now.Before(until) {
				delete(r.used, k)
			}
		}
	}
	r.used[id] = expiresAt
	return true, nil
}

func (r *Revocations) Consumed(_ context.Context, id domain.TokenId) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.used[id]
	return ok && r.now().Before(until), nil
}
