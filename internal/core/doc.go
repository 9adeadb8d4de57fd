// Package core provides the business logic for importing infrastructure
// objects from external data files. This package has no CLI dependencies
// and can be driven by any frontend.
//
// An import runs as one batch: a source adapter produces raw records,
// the mapper normalizes each one against the user's field mapping and
// the target object type, and the coordinator persists the normalized
// records inside a single transaction committed once at the end. A bad
// record is recorded in the result and skipped; a storage fault rolls
// the whole batch back.
package core
