package habitat

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// OperationManager tracks the operations of one scope kind: which are open
// and which is current on each execution.
//
// Locking: mu guards open, byExecution, nextSeq and the mutable state of every
// handle. Methods suffixed Locked require mu to be held and never take it.
// Exported methods take mu and never call one another while holding it.
type OperationManager struct {
	scope      Scope
	context    OperationContext
	descriptor *ServiceDescriptor
	logger     *zap.Logger

	mu          sync.Mutex
	nextSeq     uint64
	open        map[OperationIdentifier]*OperationHandle
	byExecution map[ExecutionID]*OperationHandle
}

// NewOperationManager creates the manager for scope. The OperationContext
// serving scope must already be registered in l under the scope's name; the
// manager attaches itself to it and registers itself as a singleton named
// after scope.
func NewOperationManager(ctx context.Context, scope Scope, l *ServiceLocator) (*OperationManager, error) {
	var found OperationContext
	for _, h := range l.scopeHandles(scope) {
		v, err := h.Get(ctx)
		if err != nil {
			return nil, err
		}
		if oc, ok := v.(OperationContext); ok && oc.Scope() == scope {
			found = oc
			break
		}
	}
	if found == nil {
		return nil, &MissingScopeContextError{Scope: string(scope)}
	}

	m := &OperationManager{
		scope:       scope,
		context:     found,
		logger:      l.logger.With(zap.String("scope", string(scope))),
		open:        make(map[OperationIdentifier]*OperationHandle),
		byExecution: make(map[ExecutionID]*OperationHandle),
	}
	found.SetOperationManager(m)

	h, err := l.Register(Link(ContractOf[*OperationManager]()).
		Named(string(scope)).
		In(ScopeSingleton).
		ProvidedBy(Constant(m)).
		Build())
	if err != nil {
		return nil, err
	}
	m.descriptor = h.Descriptor()
	return m, nil
}

// Scope returns the scope kind whose operations the manager tracks.
func (m *OperationManager) Scope() Scope { return m.scope }

// Context returns the OperationContext the manager backs.
func (m *OperationManager) Context() OperationContext { return m.context }

// Descriptor returns the descriptor the manager is registered under.
func (m *OperationManager) Descriptor() *ServiceDescriptor { return m.descriptor }

// CreateOperation opens a new operation. Sequence numbers are never reused.
func (m *OperationManager) CreateOperation() *OperationHandle {
	m.mu.Lock()
	id := OperationIdentifier{seq: m.nextSeq, scope: m.scope}
	m.nextSeq++
	h := &OperationHandle{
		manager:    m,
		id:         id,
		executions: make(map[ExecutionID]struct{}),
	}
	m.open[id] = h
	m.mu.Unlock()

	m.logger.Debug("operation created", zap.Stringer("operation", id))
	return h
}

// OpenOperations returns the open operations ordered by sequence.
func (m *OperationManager) OpenOperations() []*OperationHandle {
	m.mu.Lock()
	out := make([]*OperationHandle, 0, len(m.open))
	for _, h := range m.open {
		out = append(out, h)
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b *OperationHandle) int {
		switch {
		case a.id.seq < b.id.seq:
			return -1
		case a.id.seq > b.id.seq:
			return 1
		}
		return 0
	})
	return out
}

// CurrentOperation returns the operation current on exec, or nil.
func (m *OperationManager) CurrentOperation(exec ExecutionID) *OperationHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(exec)
}

// CurrentOperationFor returns the operation current on the execution carried
// by ctx, falling back to the calling goroutine.
func (m *OperationManager) CurrentOperationFor(ctx context.Context) *OperationHandle {
	return m.CurrentOperation(ExecutionFromContext(ctx))
}

func (m *OperationManager) closeOperationLocked(h *OperationHandle) {
	delete(m.open, h.id)
}

func (m *OperationManager) associateLocked(exec ExecutionID, h *OperationHandle) {
	m.byExecution[exec] = h
}

func (m *OperationManager) disassociateLocked(exec ExecutionID) *OperationHandle {
	h, ok := m.byExecution[exec]
	if !ok {
		return nil
	}
	delete(m.byExecution, exec)
	return h
}

func (m *OperationManager) currentLocked(exec ExecutionID) *OperationHandle {
	return m.byExecution[exec]
}
