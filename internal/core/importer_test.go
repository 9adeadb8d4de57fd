package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igs-portal/geoimport/internal/record"
	"github.com/igs-portal/geoimport/internal/source"
)

func mapOf(pairs ...string) map[string]record.Value {
	m := make(map[string]record.Value, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i]] = record.Text(pairs[i+1])
	}
	return m
}

// fakeStore records every call so tests can assert on transaction
// discipline without a database.
type fakeStore struct {
	tx       fakeTx
	beginErr error
	logged   []*ImportResult
}

func (s *fakeStore) Begin(ctx context.Context) (Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &s.tx, nil
}

func (s *fakeStore) LogImport(ctx context.Context, res *ImportResult, userID int64) error {
	s.logged = append(s.logged, res)
	return nil
}

type fakeTx struct {
	inserted []*NormalizedRecord

	// failAt maps a 1-based insert attempt to the error it returns.
	failAt map[int]error

	attempts   int
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Insert(ctx context.Context, obj ObjectType, rec *NormalizedRecord, userID int64) (int64, error) {
	t.attempts++
	if err, ok := t.failAt[t.attempts]; ok {
		return 0, err
	}
	t.inserted = append(t.inserted, rec)
	return int64(len(t.inserted)), nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var wellsMapping = FieldMapping{
	{Source: "number", Target: "number"},
	{Source: "lon", Target: TargetLon},
	{Source: "lat", Target: TargetLat},
	{Source: "depth", Target: "depth"},
}

const wellsCSV = "number,lon,lat,depth\n" +
	"W-1,37.5,55.7,2.5\n" +
	"W-2,37.6,55.8,\n" +
	"W-3,not-a-lon,55.9,3.0\n"

func TestImportCSVBatch(t *testing.T) {
	path := writeTempFile(t, "wells.csv", wellsCSV)
	store := &fakeStore{}
	imp := NewImporter(store, source.Options{})

	res, err := imp.Import(context.Background(), path, "wells.csv", source.FormatCSV, "wells", wellsMapping, 7)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if res.Total != 3 || res.Imported != 2 || res.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", res.Total, res.Imported, res.Failed)
	}
	if res.Imported+res.Failed != res.Total {
		t.Errorf("imported(%d)+failed(%d) != total(%d)", res.Imported, res.Failed, res.Total)
	}
	if res.Status() != StatusCompleted {
		t.Errorf("Status() = %q, want %q", res.Status(), StatusCompleted)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want one entry", res.Errors)
	}
	if res.BatchID == "" {
		t.Error("BatchID not assigned")
	}
	if !store.tx.committed {
		t.Error("transaction not committed")
	}
	if store.tx.rolledBack {
		t.Error("completed batch must not roll back")
	}

	// W-2 has a blank depth cell but valid coordinates.
	second := store.tx.inserted[1]
	if second.Geometry == nil {
		t.Fatal("W-2 should carry point geometry")
	}
	if got := second.Geometry.EWKT(); got != "SRID=4326;POINT(37.6 55.8)" {
		t.Errorf("W-2 EWKT = %q", got)
	}
}

func TestImportRecordInsertFailureContinues(t *testing.T) {
	path := writeTempFile(t, "wells.csv", "number\nW-1\nW-2\nW-3\n")
	store := &fakeStore{tx: fakeTx{failAt: map[int]error{
		2: errors.New(`duplicate key value violates unique constraint "wells_number_key"`),
	}}}
	imp := NewImporter(store, source.Options{})

	res, err := imp.Import(context.Background(), path, "wells.csv", source.FormatCSV, "wells",
		FieldMapping{{Source: "number", Target: "number"}}, 1)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if res.Total != 3 || res.Imported != 2 || res.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", res.Total, res.Imported, res.Failed)
	}
	if !store.tx.committed {
		t.Error("row-level failure must not abort the batch")
	}
}

func TestImportStorageFaultRollsBack(t *testing.T) {
	path := writeTempFile(t, "wells.csv", "number\nW-1\nW-2\nW-3\n")
	store := &fakeStore{tx: fakeTx{failAt: map[int]error{
		2: &StorageFaultError{Op: "savepoint", Err: errors.New("connection reset")},
	}}}
	imp := NewImporter(store, source.Options{})

	res, err := imp.Import(context.Background(), path, "wells.csv", source.FormatCSV, "wells",
		FieldMapping{{Source: "number", Target: "number"}}, 1)

	var fault *StorageFaultError
	if !errors.As(err, &fault) {
		t.Fatalf("expected StorageFaultError, got %v", err)
	}
	if !store.tx.rolledBack {
		t.Error("storage fault must roll back the transaction")
	}
	if store.tx.committed {
		t.Error("storage fault must not commit")
	}
	if res.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", res.Status(), StatusFailed)
	}
	if res.BatchError == "" {
		t.Error("BatchError not set")
	}
}

func TestImportStorageFaultKeepsPartialProgress(t *testing.T) {
	// One record lands, one fails on a bad coordinate, then the store
	// breaks on the next insert. The rolled-back batch still reports
	// how far it got; only the batch error marks the counts as not
	// durably persisted.
	csv := "number,lon,lat\n" +
		"W-1,37.5,55.7\n" +
		"W-2,37.6,bad\n" +
		"W-3,37.7,55.9\n" +
		"W-4,37.8,56.0\n"
	path := writeTempFile(t, "wells.csv", csv)
	store := &fakeStore{tx: fakeTx{failAt: map[int]error{
		2: &StorageFaultError{Op: "insert", Err: errors.New("connection reset")},
	}}}
	imp := NewImporter(store, source.Options{})

	res, err := imp.Import(context.Background(), path, "wells.csv", source.FormatCSV, "wells", wellsMapping, 1)

	var fault *StorageFaultError
	if !errors.As(err, &fault) {
		t.Fatalf("expected StorageFaultError, got %v", err)
	}
	if res.Total != 3 || res.Imported != 1 || res.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/1/1", res.Total, res.Imported, res.Failed)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want the bad-coordinate failure", res.Errors)
	}
	if !strings.Contains(res.Errors[0], "record 2") {
		t.Errorf("per-record failure lost its position tag: %q", res.Errors[0])
	}
	if res.BatchError == "" {
		t.Error("BatchError not set")
	}
	if !store.tx.rolledBack {
		t.Error("storage fault must roll back the transaction")
	}
}

func TestImportMissingCompanionIsStructural(t *testing.T) {
	dir := t.TempDir()
	tabPath := filepath.Join(dir, "wells.TAB")
	if err := os.WriteFile(tabPath, []byte("!table\n!version 300\nFields 1\n  NUMBER Char (8) ;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{}
	imp := NewImporter(store, source.Options{})

	res, err := imp.Import(context.Background(), tabPath, "wells.TAB", source.FormatTab, "wells",
		FieldMapping{{Source: "NUMBER", Target: "number"}}, 1)

	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if !errors.Is(err, source.ErrCompanionNotFound) {
		t.Errorf("cause should be ErrCompanionNotFound: %v", err)
	}
	if res.Total != 0 || res.Imported != 0 || res.Failed != 0 {
		t.Errorf("structural failure reports %d/%d/%d, want 0/0/0", res.Total, res.Imported, res.Failed)
	}
	if store.tx.attempts != 0 {
		t.Error("no inserts may be attempted on a structural failure")
	}
}

func TestImportUnknownObjectType(t *testing.T) {
	path := writeTempFile(t, "wells.csv", "number\nW-1\n")
	imp := NewImporter(&fakeStore{}, source.Options{})

	_, err := imp.Import(context.Background(), path, "wells.csv", source.FormatCSV, "pipelines",
		FieldMapping{{Source: "number", Target: "number"}}, 1)

	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
}

func TestImportGeoJSONPassesGeometryThrough(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"W-1"},"geometry":{"type":"Point","coordinates":[37.5,55.7]}},
		{"type":"Feature","properties":{"name":null},"geometry":null}
	]}`
	path := writeTempFile(t, "wells.geojson", doc)
	store := &fakeStore{}
	imp := NewImporter(store, source.Options{})

	res, err := imp.Import(context.Background(), path, "wells.geojson", source.FormatGeoJSON, "wells",
		FieldMapping{{Source: "name", Target: "number"}}, 1)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if res.Imported != 2 {
		t.Fatalf("Imported = %d, want 2 (errors: %v)", res.Imported, res.Errors)
	}
	first := store.tx.inserted[0]
	if first.Geometry == nil || first.Geometry.Kind != GeometryClassRaw {
		t.Fatalf("expected raw geometry, got %+v", first.Geometry)
	}

	// The second feature has a null name; it gets a synthetic number
	// and no geometry.
	second := store.tx.inserted[1]
	if got := second.Attrs["number"].String(); got != "GEO-2" {
		t.Errorf("synthetic number = %q, want %q", got, "GEO-2")
	}
	if second.Geometry != nil {
		t.Errorf("null geometry should be attribute-only, got %+v", second.Geometry)
	}
}

func TestImportBatchIDsAreUnique(t *testing.T) {
	path := writeTempFile(t, "wells.csv", "number\nW-1\n")
	imp := NewImporter(&fakeStore{}, source.Options{})
	mapping := FieldMapping{{Source: "number", Target: "number"}}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		res, err := imp.Import(context.Background(), path, "wells.csv", source.FormatCSV, "wells", mapping, 1)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if seen[res.BatchID] {
			t.Fatalf("batch ID %q reused", res.BatchID)
		}
		seen[res.BatchID] = true
	}
}

func TestBuildInsertStatement(t *testing.T) {
	obj, _ := ObjectTypeByKey("wells")
	rec, err := Normalize(rawRecord(), FieldMapping{{Source: "x", Target: "x"}}, obj, 1, "CSV")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	rec.Geometry = NewPoint(37.5, 55.7)

	query, args, err := buildInsert(obj, rec, 9)
	if err != nil {
		t.Fatalf("buildInsert() error = %v", err)
	}

	want := "INSERT INTO wells (created_by, updated_by, number, geom_wgs84) " +
		"VALUES ($1, $2, $3, ST_GeomFromEWKT($4)) RETURNING id"
	if query != want {
		t.Errorf("query = %q\nwant    %q", query, want)
	}
	wantArgs := []any{int64(9), int64(9), "CSV-1", "SRID=4326;POINT(37.5 55.7)"}
	if len(args) != len(wantArgs) {
		t.Fatalf("args = %v, want %v", args, wantArgs)
	}
	for i := range wantArgs {
		if fmt.Sprint(args[i]) != fmt.Sprint(wantArgs[i]) {
			t.Errorf("args[%d] = %v, want %v", i, args[i], wantArgs[i])
		}
	}
}

func TestBuildInsertGeoJSONUsesSetSRID(t *testing.T) {
	obj, _ := ObjectTypeByKey("wells")
	rec := &NormalizedRecord{
		Names:    []string{"number"},
		Attrs:    mapOf("number", "W-1"),
		Geometry: NewRaw([]byte(`{"type":"Point","coordinates":[37.5,55.7]}`)),
	}

	query, args, err := buildInsert(obj, rec, 1)
	if err != nil {
		t.Fatalf("buildInsert() error = %v", err)
	}
	want := "INSERT INTO wells (created_by, updated_by, number, geom_wgs84) " +
		"VALUES ($1, $2, $3, ST_SetSRID(ST_GeomFromGeoJSON($4), 4326)) RETURNING id"
	if query != want {
		t.Errorf("query = %q\nwant    %q", query, want)
	}
	if got := args[3].(string); got != `{"type":"Point","coordinates":[37.5,55.7]}` {
		t.Errorf("geometry arg = %q", got)
	}
}
