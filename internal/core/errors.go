package core

import "fmt"

// The importer sorts every failure into one of three classes:
//
//   - StructuralError: the file itself is unusable (bad container
//     header, missing companion). Nothing is attempted; the batch
//     result carries zero counts.
//   - RecordError: one record failed to parse, map or persist. It is
//     recorded in the result and the batch continues.
//   - StorageFaultError: the storage layer broke (lost connection,
//     failed commit). The open transaction is rolled back and the
//     partial counts in the result are not durable.

// StructuralError aborts a batch before any record is attempted.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string { return e.Err.Error() }

func (e *StructuralError) Unwrap() error { return e.Err }

// RecordError is a single record's failure, tagged with its 1-based
// position in the source sequence.
type RecordError struct {
	Pos int
	Err error
}

func (e *RecordError) Error() string { return fmt.Sprintf("record %d: %v", e.Pos, e.Err) }

func (e *RecordError) Unwrap() error { return e.Err }

// StorageFaultError is an infrastructure-level storage failure; per-row
// data problems are RecordErrors instead.
type StorageFaultError struct {
	Op  string
	Err error
}

func (e *StorageFaultError) Error() string { return fmt.Sprintf("storage fault (%s): %v", e.Op, e.Err) }

func (e *StorageFaultError) Unwrap() error { return e.Err }
