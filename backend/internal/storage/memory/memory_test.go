package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crmportal/crmportal/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("create and look up", func(t *testing.T) {
		s := NewUsers()
		created, err := s.CreateUser(ctx, domain.User{Email: "A@example.com", PassHash: "h", VerificationTokenHash: "vh"})
		require.NoError(t, err)
		assert.NotEmpty(t, created.Id)
		assert.False(t, created.CreatedAt.IsZero())

		byEmail, err := s.UserByEmail(ctx, "A@example.com")
		require.NoError(t, err)
		assert.Equal(t, created, byEmail)

		byId, err := s.UserById(ctx, created.Id)
		require.NoError(t, err)
		assert.Equal(t, created, byId)

		byToken, err := s.UserByVerificationToken(ctx, "vh")
		require.NoError(t, err)
		assert.Equal(t, created.Id, byToken.Id)
	})

	t.Run("email comparison is exact", func(t *testing.T) {
		s := NewUsers()
		_, err := s.CreateUser(ctx, domain.User{Email: "A@example.com"})
		require.NoError(t, err)

		_, err = s.UserByEmail(ctx, "a@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		s := NewUsers()
		_, err := s.CreateUser(ctx, domain.User{Email: "a@example.com"})
		require.NoError(t, err)
		_, err = s.CreateUser(ctx, domain.User{Email: "a@example.com"})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("concurrent creates allow one winner", func(t *testing.T) {
		s := NewUsers()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.CreateUser(ctx, domain.User{Email: "race@example.com"}); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("empty token hash never matches", func(t *testing.T) {
		s := NewUsers()
		_, err := s.CreateUser(ctx, domain.User{Email: "a@example.com"})
		require.NoError(t, err)

		_, err = s.UserByVerificationToken(ctx, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.UserByResetToken(ctx, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("guarded update", func(t *testing.T) {
		s := NewUsers()
		u, err := s.CreateUser(ctx, domain.User{Email: "a@example.com", ResetTokenHash: "rh"})
		require.NoError(t, err)

		patch := domain.UserPatch{PassHash: domain.Ptr("new"), ResetTokenHash: domain.Ptr(""), IfResetTokenHash: domain.Ptr("rh")}
		require.NoError(t, s.UpdateUser(ctx, u.Id, patch))
		assert.ErrorIs(t, s.UpdateUser(ctx, u.Id, patch), domain.ErrNotFound)

		got, err := s.UserById(ctx, u.Id)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PassHash)
		assert.Empty(t, got.ResetTokenHash)
	})

	t.Run("update unknown user", func(t *testing.T) {
		s := NewUsers()
		err := s.UpdateUser(ctx, "missing", domain.UserPatch{Verified: domain.Ptr(true)})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRevocations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRevocations().WithClock(func() time.Time { return now })

	t.Run("second consume fails", func(t *testing.T) {
		ok, err := r.Consume(ctx, "jti-1", now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.Consume(ctx, "jti-1", now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("consumed only looks", func(t *testing.T) {
		used, err := r.Consumed(ctx, "jti-2")
		require.NoError(t, err)
		assert.False(t, used)

		ok, err := r.Consume(ctx, "jti-2", now.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, ok)

		used, err = r.Consumed(ctx, "jti-2")
		require.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("consumed forgets expired ids", func(t *testing.T) {
		_, err := r.Consume(ctx, "jti-3", now.Add(-time.Second))
		require.NoError(t, err)

		used, err := r.Consumed(ctx, "jti-3")
		require.NoError(t, err)
		assert.False(t, used)
	})

	t.Run("expired entries are pruned", func(t *testing.T) {
		for i := 0; i < pruneThreshold; i++ {
			_, err := r.Consume(ctx, fmt.Sprintf("old-%d", i), now.Add(-time.Second))
			require.NoError(t, err)
		}
		ok, err := r.Consume(ctx, "fresh", now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Less(t, len(r.used), pruneThreshold)
	})
}
