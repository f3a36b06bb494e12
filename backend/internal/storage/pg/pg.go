package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/crmportal/crmportal/shared/config"
	"github.com/crmportal/crmportal/shared/logger"
	sharedpg "github.com/crmportal/crmportal/shared/storage/pg"
)

// every public method bounds its queries with this timeout
const queryTimeout = 5 * time.Second

type Storage struct {
	db *sql.DB
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to database", "host", cfg.Pg().Host, "dbname", cfg.Pg().Dbname)
	db, err := sharedpg.Connect(ctx, cfg.Pg(), sharedpg.DefaultConnectionConfig())
	if err != nil {
		return nil, err
	}
	logger.Log.Info("successfully connected to database")
	return &Storage{db: db}, nil
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Storage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return sharedpg.WithTx(ctx, s.db, fn)
}
