package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HealthService reports reachability of the optional local dependencies.
// The hosted record store backend has no cheap ping, so with that backend
// health is process liveness only.
type HealthService struct {
	log *zap.Logger
	db  *pgxpool.Pool   // nil with the hosted store backend
	rdb *goredis.Client // nil when redis is disabled
}

func NewHealthService(log *zap.Logger, db *pgxpool.Pool, rdb *goredis.Client) *HealthService {
	return &HealthService{
		log: log,
		db:  db,
		rdb: rdb,
	}
}

func (s *HealthService) IsOK(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}

	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}

	return nil
}
