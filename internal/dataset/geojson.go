package dataset

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/metrics"
	"pos-voice-relay/internal/store"
	"pos-voice-relay/internal/types"
)

// GeoJSONLoader upserts the location of every Point feature, keyed by name.
type GeoJSONLoader struct {
	path    string
	store   Upserter
	log     *logger.Logger
	metrics *metrics.Manager
}

func NewGeoJSONLoader(path string, s Upserter, log *logger.Logger, m *metrics.Manager) *GeoJSONLoader {
	return &GeoJSONLoader{path: path, store: s, log: log.Component("dataset.geojson").With("path", path), metrics: m}
}

// Load reads the feature collection and upserts one row per feature. Only the
// location column is overwritten on conflict so loaded metrics survive.
func (l *GeoJSONLoader) Load(ctx context.Context) (Summary, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		l.log.WithError(err).Error("open failed")
		return Summary{}, fmt.Errorf("open file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		l.log.WithError(err).Error("parse failed")
		return Summary{}, fmt.Errorf("parse geojson: %w", err)
	}

	var sum Summary
	for i, f := range fc.Features {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Total++
		rec, err := featureRecord(f)
		if err == nil {
			err = l.store.Upsert(ctx, rec, store.ColUbicacion)
		}
		sum.add(l.metrics, "geojson", err)
		if err != nil {
			l.log.WithError(err).WithField("feature", i).Warn("feature not loaded")
		}
	}
	sum.log(l.log)
	return sum, nil
}

func featureRecord(f *geojson.Feature) (*types.PuntoVenta, error) {
	name := strings.TrimSpace(f.Properties.MustString("nombre", ""))
	if name == "" {
		name = strings.TrimSpace(f.Properties.MustString("name", ""))
	}
	if name == "" {
		return nil, fmt.Errorf("%w: feature without nombre", ErrSkipped)
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return nil, fmt.Errorf("%w: %q geometry is not a Point", ErrSkipped, name)
	}
	g := store.EWKT(pt)
	return &types.PuntoVenta{Nombre: name, Ubicacion: &g}, nil
}
