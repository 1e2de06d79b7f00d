package habitat

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// InhabitantHandle is the lazily realized holder of one descriptor's instance.
// Singleton handles keep their instance until Release; per-lookup handles never
// cache; handles of any other scope defer to the Context registered for it.
type InhabitantHandle struct {
	descriptor *ServiceDescriptor
	locator    *ServiceLocator

	held atomic.Pointer[heldInstance]
}

type heldInstance struct {
	instance any
}

func newInhabitantHandle(d *ServiceDescriptor, l *ServiceLocator) *InhabitantHandle {
	return &InhabitantHandle{descriptor: d, locator: l}
}

// Descriptor returns the descriptor the handle wraps.
func (h *InhabitantHandle) Descriptor() *ServiceDescriptor {
	return h.descriptor
}

// IsRealized reports whether a singleton instance is currently held.
func (h *InhabitantHandle) IsRealized() bool {
	return h.held.Load() != nil
}

func (h *InhabitantHandle) String() string {
	return h.descriptor.String()
}

// Get returns the instance for this handle, realizing it when the scope requires.
func (h *InhabitantHandle) Get(ctx context.Context) (any, error) {
	return h.get(h.locator.newCreationContext(ctx))
}

func (h *InhabitantHandle) get(parent *CreationContext) (any, error) {
	c, err := parent.enter(h)
	if err != nil {
		return nil, err
	}

	switch h.descriptor.scope {
	case ScopeSingleton:
		if held := h.held.Load(); held != nil {
			return held.instance, nil
		}
		if err := h.locator.creations.lock(h, c, h.String()); err != nil {
			return nil, err
		}
		defer h.locator.creations.unlock(h)
		if held := h.held.Load(); held != nil {
			return held.instance, nil
		}
		instance, err := h.Create(c)
		if err != nil {
			return nil, err
		}
		h.held.Store(&heldInstance{instance: instance})
		return instance, nil
	case ScopePerLookup:
		return h.Create(c)
	default:
		sc, err := h.locator.contextFor(c, h.descriptor.scope)
		if err != nil {
			return nil, err
		}
		return sc.FindOrCreate(h, c)
	}
}

// Create runs the descriptor's creator and the Lifecycle boot hook without
// caching the result. Contexts call it from FindOrCreate with the
// CreationContext they were handed.
func (h *InhabitantHandle) Create(c *CreationContext) (any, error) {
	impl := string(h.descriptor.implementation)
	instance, err := h.descriptor.creator(c)
	if err != nil {
		return nil, &CreationError{Type: impl, Err: err}
	}
	if lc, ok := instance.(Lifecycle); ok {
		if err := lc.OnBoot(c); err != nil {
			return nil, &CreationError{Type: impl, Err: err}
		}
	}
	h.locator.logger.Debug("created instance",
		zap.String("implementation", impl),
		zap.String("scope", string(h.descriptor.scope)))
	return instance, nil
}

// Destroy disposes of an instance previously returned by Create.
func (h *InhabitantHandle) Destroy(ctx context.Context, instance any) error {
	var err error
	switch lc, ok := instance.(Lifecycle); {
	case h.descriptor.destroyer != nil:
		err = h.descriptor.destroyer(ctx, instance)
	case ok:
		err = lc.OnShutdown(ctx)
	}
	if err != nil {
		return &ReleaseError{Type: string(h.descriptor.implementation), Err: err}
	}
	return nil
}

// Release discards the held singleton instance, if any. A later Get realizes
// a fresh one.
func (h *InhabitantHandle) Release(ctx context.Context) error {
	held := h.held.Swap(nil)
	if held == nil {
		return nil
	}
	return h.Destroy(ctx, held.instance)
}

// peek returns the held singleton instance without realizing it.
func (h *InhabitantHandle) peek() (any, bool) {
	held := h.held.Load()
	if held == nil {
		return nil, false
	}
	return held.instance, true
}
