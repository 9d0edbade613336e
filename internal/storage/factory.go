package storage

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"

	"github.com/ecole-connect/authhub/internal/common/config"
)

// NewStore creates a store based on configuration. The returned store is
// created once at process start and shared by reference; it is the only
// cross-request shared resource.
func NewStore(logger *zap.Logger, cfg *config.StorageConfig) (Store, error) {
	logger.Info("initializing persistent store", zap.String("type", cfg.Type))
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage(), nil
	case "redis":
		return NewRedisStorage(&cfg.Redis)
	case "sqlite":
		return NewSQLStorage(sqlite.Open(cfg.Database.DBName))
	case "postgres":
		return NewSQLStorage(postgres.Open(postgresDSN(&cfg.Database)))
	case "mysql":
		return NewSQLStorage(mysql.Open(mysqlDSN(&cfg.Database)))
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func postgresDSN(cfg *config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

func mysqlDSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}
