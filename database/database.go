package database

import (
	"database/sql"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tempograph/tempograph/config"
)

// ProvideDatabase provides a postgres client. A missing DATABASE_URL is
// not an error; the service falls back to the in-memory store.
func ProvideDatabase(logger *zap.SugaredLogger, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("no database configured, using in-memory store")
		return nil, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to open database connection", zap.Error(err))
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		logger.Error("Failed to ping database", zap.Error(err))
		return nil, err
	}

	return db, nil
}

var Options = ProvideDatabase
