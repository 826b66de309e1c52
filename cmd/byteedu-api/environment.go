package main

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/byteedu/internal/chain"
	"github.com/MarcoPoloResearchLab/byteedu/internal/config"
	"github.com/MarcoPoloResearchLab/byteedu/internal/database"
	"github.com/MarcoPoloResearchLab/byteedu/internal/kv"
	"github.com/MarcoPoloResearchLab/byteedu/internal/logging"
	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// environment bundles what every command needs: configuration, a logger and
// the record store over the configured medium.
type environment struct {
	config   config.AppConfig
	logger   *zap.Logger
	registry *prometheus.Registry
	medium   kv.Store
	store    *records.Store
}

func openEnvironment(requireSession bool) (*environment, error) {
	appConfig, err := config.Load(viper.GetViper(), requireSession)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	medium, err := openKeyValueStore(appConfig, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	instrumented, err := kv.Instrument(medium, registry)
	if err != nil {
		_ = medium.Close()
		return nil, err
	}

	store, err := records.NewStore(records.StoreConfig{
		KV:        instrumented,
		KeyPrefix: appConfig.StorageKeyPrefix,
		Hashes:    chain.NewRandomHashes(),
		Logger:    logger,
	})
	if err != nil {
		_ = instrumented.Close()
		return nil, err
	}

	return &environment{
		config:   appConfig,
		logger:   logger,
		registry: registry,
		medium:   instrumented,
		store:    store,
	}, nil
}

func (r *environment) Close() {
	if err := r.medium.Close(); err != nil {
		r.logger.Warn("failed to close storage medium", zap.Error(err))
	}
	_ = r.logger.Sync()
}

// openKeyValueStore selects the storage medium named by storage.driver.
func openKeyValueStore(cfg config.AppConfig, logger *zap.Logger) (kv.Store, error) {
	switch cfg.StorageDriver {
	case "sqlite":
		db, err := database.OpenSQLite(cfg.StoragePath, logger)
		if err != nil {
			return nil, err
		}
		return kv.NewGormStore(db)
	case "leveldb":
		return kv.OpenLevelDB(cfg.StoragePath)
	case "badger":
		return kv.OpenBadger(cfg.StoragePath, logger)
	case "redis":
		return kv.OpenRedis(cfg.StorageRedisAddress)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
