package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/nexuscrm/taskdesk/internal/config"
)

var tlsOnce sync.Once

// Open connects to MySQL/TiDB and verifies the connection.
// sql.DB is already safe for concurrent use and pools its own connections.
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	if cfg.TLS {
		tlsOnce.Do(func() {
			if err := mysql.RegisterTLSConfig("tidb", &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: cfg.Host,
			}); err != nil {
				slog.Error("failed to register TLS config", "error", err)
			}
		})
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxIdleConns matches MaxOpenConns so connections are not churned under load.
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(50)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected", "host", cfg.Host, "port", cfg.Port, "name", cfg.Name)
	return db, nil
}

// IsDuplicateKey reports whether err is a MySQL unique-key violation (1062).
func IsDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// IsDeadlock reports deadlock (1213) and lock wait timeout (1205).
func IsDeadlock(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && (myErr.Number == 1213 || myErr.Number == 1205)
}
