// Package store persists point-of-sale rows in Postgres through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/metrics"
	"pos-voice-relay/internal/types"
)

// ErrNotFound is returned when an update matches no row.
var ErrNotFound = errors.New("punto de venta not found")

// Column names of puntos_venta.
const (
	ColUbicacion     = "ubicacion"
	ColNPS           = "nps"
	ColFillFoundRate = "fillfoundrate"
	ColDamageRate    = "damage_rate"
	ColOutOfStock    = "out_of_stock"
)

// AllColumns is every column an upsert may overwrite.
var AllColumns = []string{ColUbicacion, ColNPS, ColFillFoundRate, ColDamageRate, ColOutOfStock}

type Store struct {
	db      *gorm.DB
	log     *logger.Logger
	metrics *metrics.Manager
}

// Open connects to the DSN and configures the pool.
func Open(dsn string, log *logger.Logger, m *metrics.Manager) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database url not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return New(db, log, m), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *logger.Logger, m *metrics.Manager) *Store {
	return &Store{db: db, log: log.Component("store"), metrics: m}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert inserts p or, when nombre already exists, overwrites updateColumns.
// With no columns given every column in AllColumns is overwritten.
func (s *Store) Upsert(ctx context.Context, p *types.PuntoVenta, updateColumns ...string) error {
	if p.Nombre == "" {
		return errors.New("upsert: nombre is required")
	}
	if len(updateColumns) == 0 {
		updateColumns = AllColumns
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "nombre"}},
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).
		Create(p).Error
	s.metrics.RecordStoreWrite("upsert", err)
	if err != nil {
		return fmt.Errorf("upsert %q: %w", p.Nombre, err)
	}
	return nil
}

// UpdateMetrics sets exactly the four metric columns on row id.
func (s *Store) UpdateMetrics(ctx context.Context, id string, m types.Metrics) error {
	res := s.db.WithContext(ctx).
		Model(&types.PuntoVenta{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			ColNPS:           m.NPS,
			ColFillFoundRate: m.FillFoundRate,
			ColDamageRate:    m.DamageRate,
			ColOutOfStock:    m.OutOfStock,
		})
	if res.Error != nil {
		return fmt.Errorf("update metrics %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update metrics %s: %w", id, ErrNotFound)
	}
	s.log.WithField("punto_id", id).Debug("metrics updated")
	return nil
}

// EWKT renders a lon/lat point the way PostGIS geography columns accept it.
func EWKT(p orb.Point) string {
	return "SRID=4326;" + wkt.MarshalString(p)
}
