package habitat

import (
	"context"
	"strconv"
	"sync/atomic"
)

// ExecutionID identifies one logical flow of execution that operations are
// associated with. It replaces ambient thread identity: callers running
// several logical operations on shared goroutines mint their own IDs.
type ExecutionID string

type executionKey struct{}

var executionSeq atomic.Uint64

// NewExecution returns an ExecutionID unique within the process.
func NewExecution() ExecutionID {
	return ExecutionID("execution-" + strconv.FormatUint(executionSeq.Add(1), 10))
}

// CurrentExecution returns an ExecutionID derived from the calling goroutine.
// It is only correct for callers that run one logical operation per goroutine.
func CurrentExecution() ExecutionID {
	return ExecutionID("goroutine-" + strconv.FormatInt(goid(), 10))
}

// WithExecution returns a copy of parent that carries id.
func WithExecution(parent context.Context, id ExecutionID) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, executionKey{}, id)
}

// ExecutionFromContext returns the ExecutionID carried by ctx, falling back to
// CurrentExecution when ctx carries none.
func ExecutionFromContext(ctx context.Context) ExecutionID {
	if ctx != nil {
		if id, ok := ctx.Value(executionKey{}).(ExecutionID); ok && id != "" {
			return id
		}
	}
	return CurrentExecution()
}
