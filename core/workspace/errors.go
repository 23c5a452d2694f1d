package workspace

import "errors"

var (
	// ErrSchemaMismatch is returned when a snapshot carries an unknown
	// schema tag. The snapshot is never partially loaded.
	ErrSchemaMismatch = errors.New("snapshot schema mismatch")

	// ErrReferenceIntegrity is returned when an applied event would point
	// at an entity id that does not exist. The batch is rolled back.
	ErrReferenceIntegrity = errors.New("event references unknown entity")

	// ErrBatchFailed wraps any apply error after which the workspace was
	// rolled back to its pre-batch state.
	ErrBatchFailed = errors.New("batch failed and was rolled back")
)
