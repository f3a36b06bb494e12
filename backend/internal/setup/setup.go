package setup

import (
	"context"
	"errors"
	"time"

	"github.com/crmportal/crmportal/backend/internal/handler"
	"github.com/crmportal/crmportal/backend/internal/service"
	"github.com/crmportal/crmportal/backend/internal/storage/memory"
	"github.com/crmportal/crmportal/backend/internal/storage/pg"
	"github.com/crmportal/crmportal/backend/internal/storage/redis"
	"github.com/crmportal/crmportal/backend/internal/utils/email"
	"github.com/crmportal/crmportal/shared/config"
	"github.com/crmportal/crmportal/shared/crypto"
	"github.com/crmportal/crmportal/shared/jwt"
	"github.com/crmportal/crmportal/shared/logger"
	"github.com/crmportal/crmportal/shared/middleware"
	"github.com/crmportal/crmportal/shared/middleware/ratelimiter"
)

// idle rate limit buckets are dropped after this
const limiterExpiration = time.Hour

type Options struct {
	// Memory keeps users and the refresh ledger in process, for local runs.
	Memory bool
}

type Limiters struct {
	Login *ratelimiter.Limiter
	Email *ratelimiter.Limiter
	IP    *ratelimiter.Limiter
}

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
	Limiters       Limiters

	closers []func() error
}

// storage is what the service and the readiness probe need from a user store.
type storage interface {
	service.AuthStorage
	handler.HealthChecker
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(ctx context.Context, cfg *config.Config, opts Options) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg}

	var users storage
	var revocations service.Revocations
	var ledger handler.HealthChecker
	if opts.Memory {
		logger.Log.Warn("running with in-memory storage, data is lost on exit")
		users = memory.NewUsers()
		revocations = memory.NewRevocations()
	} else {
		pgStorage, err := pg.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, pgStorage.Cleanup)
		users = pgStorage

		if cfg.Redis().Addr != "" {
			redisRevocations, err := redis.New(ctx, cfg.Redis())
			if err != nil {
				deps.Close()
				return nil, err
			}
			deps.closers = append(deps.closers, redisRevocations.Close)
			revocations = redisRevocations
			ledger = redisRevocations
		} else {
			logger.Log.Info("redis not configured, refresh token ledger is per process")
			revocations = memory.NewRevocations()
		}
	}

	dispatcher, err := email.New(cfg.Email(), cfg.Public.EmailRetry)
	if err != nil {
		deps.Close()
		return nil, err
	}

	codec := jwt.New(cfg.Jwt().AccessSecret, cfg.Jwt().RefreshSecret, cfg.Public.AccessTokenTTL, cfg.Public.RefreshTokenTTL)
	hasher := crypto.NewBcrypt(cfg.Public.BcryptCost)

	auth := service.NewAuth(users, revocations, dispatcher, codec, hasher, &cfg.Public)

	deps.Handler = handler.New(auth, cfg, users).WithReadiness("email", dispatcher)
	if ledger != nil {
		deps.Handler.WithReadiness("redis", ledger)
	}
	deps.AuthMiddleware = middleware.NewAuth(auth)
	limits := cfg.Public.RateLimits
	deps.Limiters = Limiters{
		Login: ratelimiter.New(limits.Login.Rate, limits.Login.Burst, limiterExpiration),
		Email: ratelimiter.New(limits.Email.Rate, limits.Email.Burst, limiterExpiration),
		IP:    ratelimiter.New(limits.IP.Rate, limits.IP.Burst, limiterExpiration),
	}
	return deps, nil
}

// Close releases connections and stops rate limiter timers.
func (d *Dependencies) Close() error {
	for _, l := range []*ratelimiter.Limiter{d.Limiters.Login, d.Limiters.Email, d.Limiters.IP} {
		if l != nil {
			l.Stop()
		}
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
