// Package bootstrap builds the storage and broker dependencies shared by the
// api and worker binaries.
package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-scheduling/config"
	"github.com/jwalitptl/clinic-scheduling/internal/handler/health"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	"github.com/jwalitptl/clinic-scheduling/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduling/internal/repository/postgres"
	"github.com/jwalitptl/clinic-scheduling/pkg/logger"
	"github.com/jwalitptl/clinic-scheduling/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduling/pkg/messaging/kafka"
	"github.com/jwalitptl/clinic-scheduling/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
)

// Storage is an opened store. DB is nil for the memory driver.
type Storage struct {
	Repos *repository.Store
	DB    *sqlx.DB
}

// Pinger returns nil when there is nothing to ping.
func (s *Storage) Pinger() health.Pinger {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStorage connects the configured driver and, for postgres, applies
// migrations when auto_migrate is set.
func OpenStorage(cfg config.DatabaseConfig, m *metrics.Metrics, log *logger.Logger) (*Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn("Using in-memory store; data is lost on exit")
		return &Storage{Repos: memory.NewStore().Repositories()}, nil

	case config.DriverPostgres:
		db, err := postgres.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			n, err := postgres.MigrateUp(db)
			if err != nil {
				db.Close()
				return nil, err
			}
			log.Info("Applied migrations", "count", n)
		}
		repos := postgres.NewStore(db, postgres.TxConfig{
			Isolation:     cfg.Isolation,
			MaxRetries:    cfg.MaxRetries,
			RetryInterval: cfg.RetryInterval,
			OnRetry:       m.TxRetries.Inc,
		})
		return &Storage{Repos: repos, DB: db}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewBroker connects the configured event transport.
func NewBroker(cfg *config.Config, log *logger.Logger) (messaging.Broker, error) {
	switch cfg.Broker.Kind {
	case config.BrokerRedis:
		return redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), log.Zerolog())
	case config.BrokerKafka:
		return kafka.NewKafkaBroker(cfg.Kafka.ToBrokerConfig(), log.Zerolog())
	default:
		return nil, fmt.Errorf("unsupported broker kind %q", cfg.Broker.Kind)
	}
}
