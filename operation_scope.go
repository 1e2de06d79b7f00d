package habitat

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// OperationScope is an OperationContext that keeps one instance per handle
// per operation and destroys them, newest first, when the operation closes.
type OperationScope struct {
	scope Scope

	mu         sync.Mutex
	manager    *OperationManager
	operations map[OperationIdentifier]*operationInstances
}

type operationInstances struct {
	mu     sync.Mutex
	closed bool
	slots  map[*InhabitantHandle]*scopedSlot
	order  []*scopedSlot
}

// scopedSlot holds one handle's instance within one operation. Creation is
// serialized through the locator's creation locks; mu only guards the fields.
type scopedSlot struct {
	mu       sync.Mutex
	handle   *InhabitantHandle
	instance any
	ready    bool
	closed   bool
}

// NewOperationScope creates the context for scope. Register it with
// AddOperationScope before creating its OperationManager.
func NewOperationScope(scope Scope) *OperationScope {
	return &OperationScope{
		scope:      scope,
		operations: make(map[OperationIdentifier]*operationInstances),
	}
}

// AddOperationScope registers s as a singleton serving as both Context and
// OperationContext, so NewOperationManager and scoped handles can find it.
func (l *ServiceLocator) AddOperationScope(s *OperationScope) (*InhabitantHandle, error) {
	return l.Register(Link(ContractOf[*OperationScope]()).
		To(ContractOf[Context]()).
		To(ContractOf[OperationContext]()).
		Named(string(s.scope)).
		In(ScopeSingleton).
		ProvidedBy(Constant(s)).
		Build())
}

// Scope returns the scope the context serves.
func (s *OperationScope) Scope() Scope { return s.scope }

// SetOperationManager attaches the manager whose current operations pick the
// instances FindOrCreate returns.
func (s *OperationScope) SetOperationManager(m *OperationManager) {
	s.mu.Lock()
	s.manager = m
	s.mu.Unlock()
}

// Manager returns the manager attached by NewOperationManager, or nil.
func (s *OperationScope) Manager() *OperationManager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// FindOrCreate returns the instance of h for the operation current on the
// creation's execution, creating it on first use.
func (s *OperationScope) FindOrCreate(h *InhabitantHandle, c *CreationContext) (any, error) {
	s.mu.Lock()
	m := s.manager
	s.mu.Unlock()
	if m == nil {
		return nil, &MissingScopeContextError{Scope: string(s.scope)}
	}

	exec := c.Execution()
	op := m.CurrentOperation(exec)
	if op == nil {
		return nil, &NoActiveOperationError{Scope: string(s.scope), Execution: exec}
	}

	slot, err := s.slot(op, h)
	if err != nil {
		return nil, err
	}
	return s.fill(slot, op.Identifier(), h, c)
}

// fill returns the slot's instance, creating it when missing. An instance
// created while its operation closed is destroyed at once rather than handed
// out.
func (s *OperationScope) fill(slot *scopedSlot, id OperationIdentifier, h *InhabitantHandle, c *CreationContext) (any, error) {
	locks := c.locator.creations
	if err := locks.lock(slot, c, h.String()); err != nil {
		return nil, err
	}
	defer locks.unlock(slot)

	slot.mu.Lock()
	switch {
	case slot.closed:
		slot.mu.Unlock()
		return nil, &OperationClosedError{ID: id}
	case slot.ready:
		instance := slot.instance
		slot.mu.Unlock()
		return instance, nil
	}
	slot.mu.Unlock()

	instance, err := h.Create(c)
	if err != nil {
		return nil, err
	}

	slot.mu.Lock()
	if slot.closed {
		slot.mu.Unlock()
		if err := h.Destroy(c.Context(), instance); err != nil {
			c.locator.logger.Warn("destroying instance of closed operation failed",
				zap.Stringer("operation", id), zap.Error(err))
		}
		return nil, &OperationClosedError{ID: id}
	}
	slot.instance = instance
	slot.ready = true
	slot.mu.Unlock()
	return instance, nil
}

func (s *OperationScope) slot(op *OperationHandle, h *InhabitantHandle) (*scopedSlot, error) {
	id := op.Identifier()

	s.mu.Lock()
	insts, ok := s.operations[id]
	if !ok {
		if op.State() == OperationClosed {
			s.mu.Unlock()
			return nil, &OperationClosedError{ID: id}
		}
		insts = &operationInstances{slots: make(map[*InhabitantHandle]*scopedSlot)}
		s.operations[id] = insts
	}
	s.mu.Unlock()

	insts.mu.Lock()
	defer insts.mu.Unlock()
	if insts.closed {
		return nil, &OperationClosedError{ID: id}
	}
	slot, ok := insts.slots[h]
	if !ok {
		slot = &scopedSlot{handle: h}
		insts.slots[h] = slot
		insts.order = append(insts.order, slot)
	}
	return slot, nil
}

// CloseOperation destroys the instances created for h, newest first.
func (s *OperationScope) CloseOperation(ctx context.Context, h *OperationHandle) error {
	s.mu.Lock()
	insts, ok := s.operations[h.Identifier()]
	delete(s.operations, h.Identifier())
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return insts.destroy(ctx)
}

// Shutdown destroys the instances of every operation still tracked.
func (s *OperationScope) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*operationInstances, 0, len(s.operations))
	for _, insts := range s.operations {
		all = append(all, insts)
	}
	clear(s.operations)
	s.mu.Unlock()

	var first error
	for _, insts := range all {
		if err := insts.destroy(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (o *operationInstances) destroy(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	order := slices.Clone(o.order)
	o.mu.Unlock()

	var first error
	for i := len(order) - 1; i >= 0; i-- {
		slot := order[i]
		slot.mu.Lock()
		instance, ready := slot.instance, slot.ready
		slot.instance = nil
		slot.ready = false
		slot.closed = true
		slot.mu.Unlock()
		if !ready {
			continue
		}
		if err := slot.handle.Destroy(ctx, instance); err != nil && first == nil {
			first = err
		}
	}
	return first
}
