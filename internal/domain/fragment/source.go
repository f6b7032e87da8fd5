package fragment

import (
	"context"
	"io"
)

// ElaborationSource yields the precomputed elaboration set stored under a
// resolved key. Implementations exist for a local directory and an object
// store; both surface a missing set as the missing-data-file error code so
// callers cannot tell the backends apart.
type ElaborationSource interface {
	// Open returns the SDF stream for the key's elaboration set. The caller
	// closes it.
	Open(ctx context.Context, key ElaborationKey) (io.ReadCloser, error)
}
