package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/xuri/excelize/v2"

	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/metrics"
	"pos-voice-relay/internal/store"
	"pos-voice-relay/internal/types"
)

// Upserter is the slice of the store the loaders need.
type Upserter interface {
	Upsert(ctx context.Context, p *types.PuntoVenta, updateColumns ...string) error
}

// ErrSkipped marks an item that was not upserted because its input was unusable.
var ErrSkipped = errors.New("item skipped")

var pointPattern = regexp.MustCompile(`(?i)POINT\s*\(\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s+([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*\)`)

// ParsePoint extracts lon/lat from a "POINT(lon lat)" text. ok is false when
// the text is missing or malformed.
func ParsePoint(s string) (orb.Point, bool) {
	m := pointPattern.FindStringSubmatch(s)
	if m == nil {
		return orb.Point{}, false
	}
	lon, err1 := strconv.ParseFloat(m[1], 64)
	lat, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}

// TabularLoader upserts rows from a CSV or XLSX file. Columns are matched by
// header name.
type TabularLoader struct {
	path    string
	store   Upserter
	log     *logger.Logger
	metrics *metrics.Manager
}

func NewTabularLoader(path string, s Upserter, log *logger.Logger, m *metrics.Manager) *TabularLoader {
	return &TabularLoader{path: path, store: s, log: log.Component("dataset.tabular").With("path", path), metrics: m}
}

type columns struct {
	name, geom, nps, fill, damage, oos int
}

// Load reads every row and upserts it keyed by name. Only a file that cannot
// be read fails the load; bad rows are logged, counted and skipped.
func (l *TabularLoader) Load(ctx context.Context) (Summary, error) {
	rows, err := readRows(l.path)
	if err != nil {
		l.log.WithError(err).Error("read rows failed")
		return Summary{}, err
	}
	if len(rows) == 0 {
		return Summary{}, fmt.Errorf("%s: no header row", l.path)
	}
	cols := detectColumns(rows[0])
	if cols.name == -1 {
		return Summary{}, fmt.Errorf("%s: no name column in header %v", l.path, rows[0])
	}
	l.log.WithFields(map[string]interface{}{
		"nameIdx": cols.name,
		"geomIdx": cols.geom,
		"rows":    len(rows) - 1,
	}).Info("detected column indices")

	var sum Summary
	for i, r := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Total++
		rec, err := cols.record(r)
		if err == nil {
			err = l.store.Upsert(ctx, rec, store.AllColumns...)
		}
		sum.add(l.metrics, "tabular", err)
		if err != nil {
			l.log.WithError(err).WithField("row", i+2).Warn("row not loaded")
		}
	}
	sum.log(l.log)
	return sum, nil
}

func (c columns) record(r []string) (*types.PuntoVenta, error) {
	name := strings.TrimSpace(cell(r, c.name))
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrSkipped)
	}
	rec := &types.PuntoVenta{
		Nombre:        name,
		NPS:           parseMetric(cell(r, c.nps)),
		FillFoundRate: parseMetric(cell(r, c.fill)),
		DamageRate:    parseMetric(cell(r, c.damage)),
		OutOfStock:    parseMetric(cell(r, c.oos)),
	}
	if pt, ok := ParsePoint(cell(r, c.geom)); ok {
		g := store.EWKT(pt)
		rec.Ubicacion = &g
	}
	return rec, nil
}

func detectColumns(header []string) columns {
	c := columns{name: -1, geom: -1, nps: -1, fill: -1, damage: -1, oos: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case l == "nombre" || l == "name":
			c.name = i
		case l == "ubicacion" || l == "ubicación" || l == "geom" || l == "geometry" || l == "location" || l == "wkt":
			c.geom = i
		case l == "nps":
			c.nps = i
		case l == "fillfoundrate" || l == "fill_found_rate":
			c.fill = i
		case l == "damage_rate" || l == "damagerate":
			c.damage = i
		case l == "out_of_stock" || l == "outofstock":
			c.oos = i
		}
	}
	return c
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

// parseMetric returns nil for an empty or non-numeric cell.
func parseMetric(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func readRows(path string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path)
	}
	return readCSV(path)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}
