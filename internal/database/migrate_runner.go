package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"skillswap/internal/middleware"

	"gorm.io/gorm"
)

// ErrMigrationNotApplied is returned when rolling back a version the
// ledger has no record of.
var ErrMigrationNotApplied = errors.New("migration has not been applied")

// AppliedMigration is one row of the migration ledger.
type AppliedMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255"`
	Checksum  string `gorm:"size:64"`
	AppliedAt time.Time
}

func (AppliedMigration) TableName() string { return "schema_migrations" }

// Checksum fingerprints the up script so edits after release are caught.
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(m.UpScript)))
	return hex.EncodeToString(sum[:])
}

// Ledger records which versioned scripts have run against a database.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Ensure creates the ledger table.
func (l *Ledger) Ensure(ctx context.Context) error {
	if err := l.db.WithContext(ctx).AutoMigrate(&AppliedMigration{}); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}
	return nil
}

// Applied lists ledger rows by version.
func (l *Ledger) Applied(ctx context.Context) ([]AppliedMigration, error) {
	var rows []AppliedMigration
	if err := l.db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	return rows, nil
}

// Versions lists applied versions in order.
func (l *Ledger) Versions(ctx context.Context) ([]int, error) {
	rows, err := l.Applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Version
	}
	return out, nil
}

// Apply runs the up script and writes the ledger row atomically.
func (l *Ledger) Apply(ctx context.Context, m Migration) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("migration %s: %w", m, err)
		}
		row := AppliedMigration{Version: m.Version, Name: m.Name, Checksum: m.Checksum(), AppliedAt: time.Now().UTC()}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", m, err)
		}
		return nil
	})
}

// Revert runs the down script and drops the ledger row atomically.
func (l *Ledger) Revert(ctx context.Context, m Migration) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("rollback %s: %w", m, err)
		}
		res := tx.Where("version = ?", m.Version).Delete(&AppliedMigration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s: %w", m, ErrMigrationNotApplied)
		}
		return nil
	})
}

// RunMigrations applies every registered migration the ledger lacks, in
// version order. It refuses to run when the ledger holds versions the binary
// does not know or scripts changed since they were applied.
func RunMigrations(ctx context.Context, db *gorm.DB, registered []Migration) error {
	ledger := NewLedger(db)
	if err := ledger.Ensure(ctx); err != nil {
		return err
	}
	applied, err := ledger.Applied(ctx)
	if err != nil {
		return err
	}
	if err := checkLedger(applied, registered); err != nil {
		return err
	}

	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}
	for _, m := range registered {
		if done[m.Version] {
			continue
		}
		start := time.Now()
		if err := ledger.Apply(ctx, m); err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "migration applied",
			slog.Int("version", m.Version), slog.String("name", m.Name),
			slog.Duration("took", time.Since(start)))
	}
	return nil
}

func checkLedger(applied []AppliedMigration, registered []Migration) error {
	byVersion := make(map[int]Migration, len(registered))
	for _, m := range registered {
		byVersion[m.Version] = m
	}

	var unknown, edited []string
	for _, a := range applied {
		m, ok := byVersion[a.Version]
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", a.Version))
		case a.Checksum != "" && a.Checksum != m.Checksum():
			edited = append(edited, m.String())
		}
	}
	sort.Strings(unknown)

	var errs []error
	if len(unknown) > 0 {
		errs = append(errs, fmt.Errorf("ledger has versions unknown to this build: %s", strings.Join(unknown, ", ")))
	}
	if len(edited) > 0 {
		errs = append(errs, fmt.Errorf("applied migrations were edited: %s", strings.Join(edited, ", ")))
	}
	return errors.Join(errs...)
}

// RollbackMigration reverts one applied embedded migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	ledger := NewLedger(db)
	if err := ledger.Ensure(ctx); err != nil {
		return err
	}
	if err := ledger.Revert(ctx, *m); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "migration rolled back", slog.Int("version", version), slog.String("name", m.Name))
	return nil
}
