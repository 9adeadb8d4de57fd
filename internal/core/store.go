package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the storage collaborator as the importer sees it: open one
// transactional session per batch, plus the batch log. The importer
// treats it as an opaque capability.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	LogImport(ctx context.Context, res *ImportResult, userID int64) error
}

// Tx is one batch's transactional session. Insert must leave the
// session usable after a row-level failure; only a StorageFaultError
// means the session is lost.
type Tx interface {
	// Insert persists one normalized record with owner attribution and
	// returns its assigned identity. A plain error is a row-level
	// failure; a StorageFaultError means the transaction is broken.
	Insert(ctx context.Context, obj ObjectType, rec *NormalizedRecord, userID int64) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PgStore implements Store against PostgreSQL/PostGIS.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by the given pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Begin opens the batch transaction.
func (s *PgStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &StorageFaultError{Op: "begin", Err: err}
	}
	return &pgTx{tx: tx}, nil
}

// LogImport writes the durable trace of one batch. The row is derived
// entirely from the result.
func (s *PgStore) LogImport(ctx context.Context, res *ImportResult, userID int64) error {
	errLog, err := json.Marshal(res.Errors)
	if err != nil {
		return fmt.Errorf("encode error log: %w", err)
	}
	if res.Errors == nil {
		errLog = []byte("[]")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO import_logs (filename, file_type, status, total_records,
		                         imported_records, failed_records, error_log, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		res.FileName, string(res.Format), res.Status(),
		res.Total, res.Imported, res.Failed, string(errLog), userID)
	if err != nil {
		return fmt.Errorf("log import: %w", err)
	}
	return nil
}

type pgTx struct {
	tx  pgx.Tx
	seq int
}

// Insert wraps each row in a savepoint so a failed insert leaves the
// batch transaction intact. If the savepoint machinery itself fails,
// the connection is gone and the fault is escalated.
func (t *pgTx) Insert(ctx context.Context, obj ObjectType, rec *NormalizedRecord, userID int64) (int64, error) {
	t.seq++
	sp := fmt.Sprintf("row_%d", t.seq)

	if _, err := t.tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
		return 0, &StorageFaultError{Op: "savepoint", Err: err}
	}

	query, args, err := buildInsert(obj, rec, userID)
	if err != nil {
		// Mapping-level problem surfaced late; the savepoint is still
		// fine, release it and fail the row.
		_, _ = t.tx.Exec(ctx, "RELEASE SAVEPOINT "+sp)
		return 0, err
	}

	var id int64
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if _, rbErr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return 0, &StorageFaultError{Op: "rollback savepoint", Err: rbErr}
		}
		return 0, fmt.Errorf("insert: %w", err)
	}

	_, _ = t.tx.Exec(ctx, "RELEASE SAVEPOINT "+sp)
	return id, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return &StorageFaultError{Op: "commit", Err: err}
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// buildInsert assembles the insert statement for one record. The table
// name comes from the closed object-type catalog and attribute names
// have been validated by the mapper, so identifier interpolation is
// limited to known-shape names.
func buildInsert(obj ObjectType, rec *NormalizedRecord, userID int64) (string, []any, error) {
	cols := []string{"created_by", "updated_by"}
	args := []any{userID, userID}
	exprs := []string{"$1", "$2"}

	for _, name := range rec.Names {
		if !ValidIdent(name) {
			return "", nil, fmt.Errorf("invalid column name %q", name)
		}
		cols = append(cols, name)
		args = append(args, rec.Attrs[name].Arg())
		exprs = append(exprs, fmt.Sprintf("$%d", len(args)))
	}

	if g := rec.Geometry; g != nil {
		cols = append(cols, "geom_wgs84")
		switch g.Kind {
		case GeometryClassRaw:
			args = append(args, string(g.Raw))
			exprs = append(exprs, fmt.Sprintf("ST_SetSRID(ST_GeomFromGeoJSON($%d), %d)", len(args), g.SRID))
		default:
			args = append(args, g.EWKT())
			exprs = append(exprs, fmt.Sprintf("ST_GeomFromEWKT($%d)", len(args)))
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		obj.Table, strings.Join(cols, ", "), strings.Join(exprs, ", "))
	return query, args, nil
}
