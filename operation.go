package habitat

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// OperationIdentifier uniquely names an operation within its manager.
// It is comparable and usable as a map key.
type OperationIdentifier struct {
	seq   uint64
	scope Scope
}

// Sequence returns the allocation order of the operation within its manager.
func (id OperationIdentifier) Sequence() uint64 { return id.seq }

func (id OperationIdentifier) Scope() Scope { return id.scope }

func (id OperationIdentifier) String() string {
	return fmt.Sprintf("OperationIdentifier(%d,%s)", id.seq, id.scope)
}

// OperationState is the lifecycle state of an operation.
type OperationState int

const (
	OperationOpen OperationState = iota
	OperationClosed
)

func (s OperationState) String() string {
	if s == OperationClosed {
		return "closed"
	}
	return "open"
}

// OperationHandle is one open or closed operation. All mutable state is
// guarded by the owning manager's lock.
type OperationHandle struct {
	manager    *OperationManager
	id         OperationIdentifier
	state      OperationState
	executions map[ExecutionID]struct{}
	data       any
}

// Identifier returns the operation's identifier.
func (h *OperationHandle) Identifier() OperationIdentifier {
	return h.id
}

// State reports whether the operation is open or closed.
func (h *OperationHandle) State() OperationState {
	h.manager.mu.Lock()
	defer h.manager.mu.Unlock()
	return h.state
}

// Executions returns the executions the operation is currently active on.
func (h *OperationHandle) Executions() []ExecutionID {
	h.manager.mu.Lock()
	out := make([]ExecutionID, 0, len(h.executions))
	for e := range h.executions {
		out = append(out, e)
	}
	h.manager.mu.Unlock()
	slices.Sort(out)
	return out
}

// Data returns the value stored with SetData.
func (h *OperationHandle) Data() any {
	h.manager.mu.Lock()
	defer h.manager.mu.Unlock()
	return h.data
}

// SetData attaches an arbitrary value to the operation.
func (h *OperationHandle) SetData(v any) {
	h.manager.mu.Lock()
	h.data = v
	h.manager.mu.Unlock()
}

// Resume makes the operation current on exec. It fails when the operation is
// closed or when exec already has another operation of the same scope kind.
func (h *OperationHandle) Resume(exec ExecutionID) error {
	m := h.manager
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.state == OperationClosed {
		return &OperationClosedError{ID: h.id}
	}
	if current := m.currentLocked(exec); current != nil {
		if current == h {
			return nil
		}
		return &OperationActiveError{Execution: exec, Current: current.id}
	}
	m.associateLocked(exec, h)
	h.executions[exec] = struct{}{}
	return nil
}

// ResumeIn resumes the operation on the execution carried by ctx and returns
// that execution.
func (h *OperationHandle) ResumeIn(ctx context.Context) (ExecutionID, error) {
	exec := ExecutionFromContext(ctx)
	return exec, h.Resume(exec)
}

// Suspend removes the operation from exec. It reports false when the
// operation was not current on exec.
func (h *OperationHandle) Suspend(exec ExecutionID) bool {
	m := h.manager
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentLocked(exec) != h {
		return false
	}
	m.disassociateLocked(exec)
	delete(h.executions, exec)
	return true
}

// Close closes the operation, suspends it everywhere and destroys the
// instances its scope created for it. Closing twice returns an
// *OperationClosedError.
func (h *OperationHandle) Close(ctx context.Context) error {
	m := h.manager
	m.mu.Lock()
	if h.state == OperationClosed {
		m.mu.Unlock()
		return &OperationClosedError{ID: h.id}
	}
	h.state = OperationClosed
	for exec := range h.executions {
		if m.currentLocked(exec) == h {
			m.disassociateLocked(exec)
		}
	}
	clear(h.executions)
	m.closeOperationLocked(h)
	m.mu.Unlock()

	m.logger.Debug("operation closed", zap.Stringer("operation", h.id))
	return m.context.CloseOperation(ctx, h)
}
