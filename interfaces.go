package habitat

import "context"

// Lifecycle defines the interface for services that require initialization and cleanup.
type Lifecycle interface {
	// OnBoot is called right after the instance has been created.
	// The CreationContext gives access to the locator for further injection.
	OnBoot(c *CreationContext) error

	// OnShutdown is called when the owning handle or operation releases the instance.
	OnShutdown(ctx context.Context) error
}

// Creator produces a new instance for a descriptor.
type Creator func(c *CreationContext) (any, error)

// Destroyer disposes of an instance produced by a Creator.
type Destroyer func(ctx context.Context, instance any) error

// Constant returns a Creator that always yields v.
func Constant(v any) Creator {
	return func(*CreationContext) (any, error) { return v, nil }
}

// Context manages instances of one custom scope kind.
type Context interface {
	// Scope returns the scope kind this context serves.
	Scope() Scope

	// FindOrCreate returns the instance of h visible from the caller's execution,
	// creating it when necessary.
	FindOrCreate(h *InhabitantHandle, c *CreationContext) (any, error)

	// Shutdown destroys every instance the context still holds.
	Shutdown(ctx context.Context) error
}

// OperationContext is a Context backed by an OperationManager.
type OperationContext interface {
	Context

	// SetOperationManager is called once by the manager for this scope kind.
	SetOperationManager(m *OperationManager)

	// CloseOperation destroys the instances held for h. The manager calls it
	// after h is closed, without holding its lock.
	CloseOperation(ctx context.Context, h *OperationHandle) error
}

// PropertyGetter extracts the property named key from a backing bean.
// It returns an error wrapping ErrPropertyNotFound when the bean has no such property.
type PropertyGetter func(key string, bean any) (any, error)
