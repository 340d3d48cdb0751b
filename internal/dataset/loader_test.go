package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"pos-voice-relay/internal/dataset"
	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/store"
	"pos-voice-relay/internal/types"
)

type upsertCall struct {
	rec     types.PuntoVenta
	columns []string
}

type fakeUpserter struct {
	calls  []upsertCall
	failOn map[string]error
}

func (f *fakeUpserter) Upsert(ctx context.Context, p *types.PuntoVenta, cols ...string) error {
	f.calls = append(f.calls, upsertCall{rec: *p, columns: cols})
	return f.failOn[p.Nombre]
}

func writeFile(t *testing.T, name, body string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const sampleCSV = `nombre,ubicacion,nps,fillfoundrate,damage_rate,out_of_stock
Tienda Centro,POINT(-74.0817 4.6097),85,70.5,1.2,3
Tienda Norte,sin coordenadas,60,,abc,10
,POINT(1 2),1,2,3,4
Tienda Sur,"POINT (-74.1 4.5)",50,50,0,0
`

func TestParsePoint(t *testing.T) {
	Convey("ParsePoint reads lon/lat from POINT text", t, func() {
		pt, ok := dataset.ParsePoint("POINT(-74.0817 4.6097)")
		So(ok, ShouldBeTrue)
		So(pt.Lon(), ShouldEqual, -74.0817)
		So(pt.Lat(), ShouldEqual, 4.6097)

		pt, ok = dataset.ParsePoint("SRID=4326;point ( 10 -20.5 )")
		So(ok, ShouldBeTrue)
		So(pt.Lon(), ShouldEqual, 10)
		So(pt.Lat(), ShouldEqual, -20.5)

		pt, ok = dataset.ParsePoint("POINT(.5 -1.25e1)")
		So(ok, ShouldBeTrue)
		So(pt.Lon(), ShouldEqual, 0.5)
		So(pt.Lat(), ShouldEqual, -12.5)

		pt, ok = dataset.ParsePoint("POINT(3. 4E-1)")
		So(ok, ShouldBeTrue)
		So(pt.Lon(), ShouldEqual, 3)
		So(pt.Lat(), ShouldEqual, 0.4)

		_, ok = dataset.ParsePoint("POINT(10)")
		So(ok, ShouldBeFalse)
		_, ok = dataset.ParsePoint("")
		So(ok, ShouldBeFalse)
	})
}

func TestTabularLoader_CSV(t *testing.T) {
	Convey("Given a CSV with good, malformed and nameless rows", t, func() {
		path := writeFile(t, "puntos.csv", sampleCSV)
		up := &fakeUpserter{}
		l := dataset.NewTabularLoader(path, up, logger.Discard(), nil)

		Convey("When loading", func() {
			sum, err := l.Load(context.Background())

			Convey("Then named rows are upserted in order and the nameless row is skipped", func() {
				So(err, ShouldBeNil)
				So(sum, ShouldResemble, dataset.Summary{Total: 4, Upserted: 3, Failed: 1, Skipped: 1})
				So(up.calls, ShouldHaveLength, 3)
				So(up.calls[0].rec.Nombre, ShouldEqual, "Tienda Centro")
				So(up.calls[1].rec.Nombre, ShouldEqual, "Tienda Norte")
				So(up.calls[2].rec.Nombre, ShouldEqual, "Tienda Sur")
				So(up.calls[0].columns, ShouldResemble, store.AllColumns)
			})

			Convey("And a valid point becomes EWKT with parsed metrics", func() {
				rec := up.calls[0].rec
				So(rec.Ubicacion, ShouldNotBeNil)
				So(*rec.Ubicacion, ShouldEqual, "SRID=4326;POINT(-74.0817 4.6097)")
				So(*rec.NPS, ShouldEqual, 85)
				So(*rec.FillFoundRate, ShouldEqual, 70.5)
				So(*rec.DamageRate, ShouldEqual, 1.2)
				So(*rec.OutOfStock, ShouldEqual, 3)
			})

			Convey("And a malformed point yields a null geometry but keeps the other fields", func() {
				rec := up.calls[1].rec
				So(rec.Ubicacion, ShouldBeNil)
				So(*rec.NPS, ShouldEqual, 60)
				So(rec.FillFoundRate, ShouldBeNil)
				So(rec.DamageRate, ShouldBeNil)
				So(*rec.OutOfStock, ShouldEqual, 10)
			})
		})

		Convey("When one upsert fails", func() {
			up.failOn = map[string]error{"Tienda Norte": errors.New("duplicate key")}
			sum, err := l.Load(context.Background())

			Convey("Then the loop continues and the job still succeeds", func() {
				So(err, ShouldBeNil)
				So(up.calls, ShouldHaveLength, 3)
				So(sum.Upserted, ShouldEqual, 2)
				So(sum.Failed, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a missing file", t, func() {
		l := dataset.NewTabularLoader(filepath.Join(t.TempDir(), "none.csv"), &fakeUpserter{}, logger.Discard(), nil)

		Convey("Then the load fails", func() {
			_, err := l.Load(context.Background())
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a CSV without a name column", t, func() {
		path := writeFile(t, "bad.csv", "a,b\n1,2\n")
		l := dataset.NewTabularLoader(path, &fakeUpserter{}, logger.Discard(), nil)

		Convey("Then the load fails", func() {
			_, err := l.Load(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestTabularLoader_XLSX(t *testing.T) {
	Convey("Given an XLSX workbook", t, func() {
		path := filepath.Join(t.TempDir(), "puntos.xlsx")
		f := excelize.NewFile()
		sheet := f.GetSheetName(0)
		rows := [][]interface{}{
			{"nombre", "ubicacion", "nps", "fillfoundrate", "damage_rate", "out_of_stock"},
			{"Tienda Centro", "POINT(-74.0817 4.6097)", "85", "70", "1", "3"},
		}
		for i, r := range rows {
			cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
			So(f.SetSheetRow(sheet, cellRef, &r), ShouldBeNil)
		}
		So(f.SaveAs(path), ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		up := &fakeUpserter{}
		l := dataset.NewTabularLoader(path, up, logger.Discard(), nil)

		Convey("When loading", func() {
			sum, err := l.Load(context.Background())

			Convey("Then the first sheet is read like a CSV", func() {
				So(err, ShouldBeNil)
				So(sum.Upserted, ShouldEqual, 1)
				So(up.calls[0].rec.Nombre, ShouldEqual, "Tienda Centro")
				So(*up.calls[0].rec.Ubicacion, ShouldEqual, "SRID=4326;POINT(-74.0817 4.6097)")
				So(*up.calls[0].rec.NPS, ShouldEqual, 85)
			})
		})
	})
}
