package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Connect opens a GORM pool and pings it, retrying the ping while the database
// is still coming up.
func Connect(ctx context.Context, databaseURL string, maxConns int32, retry RetryPolicy) (*gorm.DB, error) {
	slog.Default().InfoContext(ctx, "postgres connect started",
		"module", "postgres",
		"layer", "adapter",
		"operation", "connect",
		"outcome", "start",
	)
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		// adapters log their own operations through slog
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(int(maxConns))
		sqlDB.SetMaxIdleConns(int(maxConns) / 2)
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = retrier{policy: retry}.do(ctx, "ping_postgres", func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return sqlDB.PingContext(pingCtx)
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Default().InfoContext(ctx, "postgres connect completed",
		"module", "postgres",
		"layer", "adapter",
		"operation", "connect",
		"outcome", "success",
	)
	return db, nil
}

// migrationLockKey serializes migrations when the api and worker start together.
const migrationLockKey = 0x5ec0a7

type schemaMigrationModel struct {
	Version   string    `gorm:"column:version;primaryKey"`
	AppliedAt time.Time `gorm:"column:applied_at"`
}

func (schemaMigrationModel) TableName() string { return "auth_schema_migrations" }

// RunMigrations applies embedded SQL migrations not yet recorded in
// auth_schema_migrations, in lexical order, one transaction each.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	names, err := embeddedMigrations()
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Exec(`CREATE TABLE IF NOT EXISTS auth_schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`).Error; err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	var applied []string
	if err := db.WithContext(ctx).Model(&schemaMigrationModel{}).Pluck("version", &applied).Error; err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	pending := pendingMigrations(names, applied)
	slog.Default().InfoContext(ctx, "postgres migrations started",
		"module", "postgres",
		"layer", "adapter",
		"operation", "run_migrations",
		"outcome", "start",
		"migration_count", len(names),
		"pending_count", len(pending),
	)

	for _, name := range pending {
		raw, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error; err != nil {
				return err
			}
			var done int64
			if err := tx.Model(&schemaMigrationModel{}).Where("version = ?", name).Count(&done).Error; err != nil {
				return err
			}
			if done > 0 {
				return nil
			}
			if err := tx.Exec(string(raw)).Error; err != nil {
				return err
			}
			return tx.Create(&schemaMigrationModel{Version: name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		slog.Default().InfoContext(ctx, "migration applied",
			"module", "postgres",
			"layer", "adapter",
			"operation", "apply_migration",
			"outcome", "success",
			"migration", name,
		)
	}
	slog.Default().InfoContext(ctx, "postgres migrations completed",
		"module", "postgres",
		"layer", "adapter",
		"operation", "run_migrations",
		"outcome", "success",
		"applied_count", len(pending),
	)
	return nil
}

func embeddedMigrations() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// pendingMigrations keeps the order of all and drops versions already applied.
func pendingMigrations(all, applied []string) []string {
	done := make(map[string]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	pending := make([]string, 0, len(all))
	for _, name := range all {
		if _, ok := done[name]; !ok {
			pending = append(pending, name)
		}
	}
	return pending
}
