/*
Package types defines the data model shared by the backfill pipeline.

  - Record: an untyped image record read verbatim from a backend.
  - Manifest: the canonical form of a Record, written to the archive.
  - RunState: Idle → Enumerating → Processing → Done | Failed.
  - StageError and the error kinds ErrSource, ErrNormalization, ErrWrite,
    ErrAccountLookup and ErrConfig.

Every StageError unwraps to both its kind and its cause, so callers can
branch with errors.Is(err, types.ErrWrite) and still inspect the
underlying fs or network error.
*/
package types
