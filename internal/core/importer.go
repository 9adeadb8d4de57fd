package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/igs-portal/geoimport/internal/logging"
	"github.com/igs-portal/geoimport/internal/metrics"
	"github.com/igs-portal/geoimport/internal/source"
)

// Importer drives one file through decode, normalization and storage.
type Importer struct {
	store Store
	opts  source.Options
}

// NewImporter builds an importer over the given store. Source options
// apply to every file this importer opens.
func NewImporter(store Store, opts source.Options) *Importer {
	return &Importer{store: store, opts: opts}
}

// Import runs one batch: open the file, normalize every record against
// the mapping and persist the survivors inside a single transaction.
// The returned result is populated even on batch failure; the error is
// non-nil only when the batch as a whole did not land.
func (imp *Importer) Import(ctx context.Context, path, fileName string, format source.Format, objectKey string, mapping FieldMapping, userID int64) (*ImportResult, error) {
	started := time.Now()
	res := &ImportResult{
		BatchID:  uuid.NewString(),
		FileName: fileName,
		Format:   format,
	}
	log := logging.WithBatch(res.BatchID)

	obj, ok := ObjectTypeByKey(objectKey)
	if !ok {
		return imp.fail(res, started, &StructuralError{Err: fmt.Errorf("unknown object type %q", objectKey)})
	}
	res.ObjectType = obj.Key

	src, warnings, err := source.Open(path, format, imp.opts)
	if err != nil {
		return imp.fail(res, started, &StructuralError{Err: err})
	}
	defer src.Close()
	res.Warnings = warnings

	tx, err := imp.store.Begin(ctx)
	if err != nil {
		return imp.fail(res, started, err)
	}

	tag := format.Tag()
	pos := 0
	for src.Next() {
		pos++
		raw, err := src.Record()
		if err != nil {
			res.recordFailure(&RecordError{Pos: pos, Err: err})
			continue
		}

		rec, err := Normalize(raw, mapping, obj, pos, tag)
		if err != nil {
			var recErr *RecordError
			if errors.As(err, &recErr) {
				res.recordFailure(recErr)
				continue
			}
			_ = tx.Rollback(ctx)
			res.Total = pos
			return imp.fail(res, started, err)
		}

		if _, err := tx.Insert(ctx, obj, rec, userID); err != nil {
			var fault *StorageFaultError
			if errors.As(err, &fault) {
				_ = tx.Rollback(ctx)
				res.Total = pos
				return imp.fail(res, started, fault)
			}
			res.recordFailure(&RecordError{Pos: pos, Err: err})
			continue
		}
		res.Imported++
	}
	res.Total = pos

	if err := tx.Commit(ctx); err != nil {
		return imp.fail(res, started, err)
	}

	res.Duration = time.Since(started)
	metrics.BatchesTotal.WithLabelValues(string(format), res.Status()).Inc()
	metrics.RecordsImported.WithLabelValues(obj.Key).Add(float64(res.Imported))
	metrics.RecordsFailed.WithLabelValues(obj.Key).Add(float64(res.Failed))

	log.Info("import finished",
		"file", fileName,
		"object_type", obj.Key,
		"total", res.Total,
		"imported", res.Imported,
		"failed", res.Failed,
		"duration", res.Duration)
	return res, nil
}

// fail finalizes a result for a batch that did not land. Counts and
// per-record errors accumulated before the failure stay in the result;
// on the structural paths nothing was attempted, so they are zero. The
// batch-level error alone marks the counts as not durably persisted.
func (imp *Importer) fail(res *ImportResult, started time.Time, err error) (*ImportResult, error) {
	res.BatchError = err.Error()
	res.Duration = time.Since(started)

	metrics.BatchesTotal.WithLabelValues(string(res.Format), StatusFailed).Inc()
	logging.WithBatch(res.BatchID).Error("import aborted", "file", res.FileName, "error", err)
	return res, err
}
