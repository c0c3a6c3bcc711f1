package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"
)

//go:embed scripts/initdb.sql
var initScript string

const (
	schemaVersion  = 1
	metaTable      = "newsdesk_meta"
	bootstrapLimit = 3 * time.Minute
)

// schema applies initScript once per version and records the version in
// metaTable inside the same transaction.
type schema struct {
	db      *sql.DB
	version int
	log     *zap.Logger
}

// EnsureBootstrapped brings the database up to version. It is a no-op when
// that version is already recorded.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, version int, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, bootstrapLimit)
	defer cancel()

	s := schema{db: db, version: version, log: log.With(zap.Int("schema_version", version))}
	applied, err := s.applied(ctx)
	if err != nil {
		return err
	}
	if applied {
		s.log.Debug("schema up to date")
		return nil
	}

	start := time.Now()
	if err := s.apply(ctx); err != nil {
		s.log.Error("schema bootstrap failed", zap.Error(err))
		return err
	}
	s.log.Info("schema bootstrapped", zap.Duration("took", time.Since(start)))
	return nil
}

func (s schema) applied(ctx context.Context) (bool, error) {
	var hasMeta bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, metaTable,
	).Scan(&hasMeta)
	if err != nil {
		return false, fmt.Errorf("look up %s: %w", metaTable, err)
	}
	if !hasMeta {
		return false, nil
	}

	var hasVersion bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+metaTable+` WHERE version = $1)`, s.version,
	).Scan(&hasVersion)
	if err != nil {
		return false, fmt.Errorf("read schema version: %w", err)
	}
	return hasVersion, nil
}

func (s schema) apply(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, initScript); err != nil {
		return fmt.Errorf("run init script: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO `+metaTable+` (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`, s.version,
	); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}
