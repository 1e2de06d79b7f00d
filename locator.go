// Package habitat provides a descriptor-based dependency injection runtime.
//
// Services are registered as descriptors and looked up by contract or by
// implementation. Injection points are satisfied by a chain of resolvers keyed
// by marker type, and custom scopes are served by Contexts, of which
// OperationScope ties instances to explicitly opened operations.
package habitat

import (
	"context"
	"io"
	"reflect"
	"slices"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
)

// ServiceLocator is the registry and injection facade.
type ServiceLocator struct {
	index     *descriptorIndex
	resolvers *ResolverChain
	beans     *BeanTable
	getter    PropertyGetter
	logger    *zap.Logger
	contexts  sync.Map
	creations *creationLocks
}

// Option configures a ServiceLocator.
type Option func(*ServiceLocator)

// WithLogger sets the logger used for registration, creation and operation
// events. A nil logger keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(l *ServiceLocator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithPropertyGetter replaces BeanProperty for configured injection.
func WithPropertyGetter(getter PropertyGetter) Option {
	return func(l *ServiceLocator) { l.getter = getter }
}

// WithBeanTable makes the locator use beans instead of a fresh table.
func WithBeanTable(beans *BeanTable) Option {
	return func(l *ServiceLocator) {
		if beans != nil {
			l.beans = beans
		}
	}
}

// NewServiceLocator returns a locator with the system and configured
// resolvers installed. The locator registers itself as a singleton.
func NewServiceLocator(opts ...Option) *ServiceLocator {
	l := &ServiceLocator{
		index:     newDescriptorIndex(),
		beans:     NewBeanTable(),
		getter:    BeanProperty,
		logger:    zap.NewNop(),
		creations: newCreationLocks(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.resolvers = NewResolverChain(&systemResolver{locator: l})
	l.resolvers.Register(ConfiguredMarker, NewConfiguredResolver(l.resolvers.System(), l.beans, l.getter))

	self := Link(ContractOf[*ServiceLocator]()).In(ScopeSingleton).ProvidedBy(Constant(l)).Build()
	l.index.add(newInhabitantHandle(self, l))
	return l
}

// Logger returns the locator's logger.
func (l *ServiceLocator) Logger() *zap.Logger { return l.logger }

// Resolvers returns the resolver chain, for installing custom resolvers.
func (l *ServiceLocator) Resolvers() *ResolverChain { return l.resolvers }

// Beans returns the backing-bean table used by configured injection.
func (l *ServiceLocator) Beans() *BeanTable { return l.beans }

// RegisterBackingBean records bean as the configuration of instances created
// for owner. It must happen before those instances are resolved.
func (l *ServiceLocator) RegisterBackingBean(owner *ServiceDescriptor, bean any) {
	l.beans.Register(owner, bean)
}

// Register adds d to the registry. Nothing is indexed unless d and all of its
// declared injection points are valid.
func (l *ServiceLocator) Register(d *ServiceDescriptor) (*InhabitantHandle, error) {
	if err := l.validate(d); err != nil {
		return nil, err
	}
	h := newInhabitantHandle(d, l)
	l.publish(h)
	return h, nil
}

func (l *ServiceLocator) validate(d *ServiceDescriptor) error {
	if d == nil {
		return &InvalidDescriptorError{Implementation: "<nil>", Reason: "descriptor is nil"}
	}
	if d.implementation == "" {
		return &InvalidDescriptorError{Implementation: "<empty>", Reason: "implementation is empty"}
	}
	if d.creator == nil {
		return &InvalidDescriptorError{Implementation: string(d.implementation), Reason: "no creator"}
	}
	if d.scope == "" {
		return &InvalidDescriptorError{Implementation: string(d.implementation), Reason: "no scope"}
	}
	for _, p := range d.points {
		if err := l.resolvers.Validate(p); err != nil {
			return err
		}
	}
	return nil
}

func (l *ServiceLocator) publish(h *InhabitantHandle) {
	d := h.descriptor
	l.index.add(h)
	l.logger.Debug("registered descriptor",
		zap.String("implementation", string(d.implementation)),
		zap.String("name", d.name),
		zap.String("scope", string(d.scope)),
		zap.Int32("ranking", d.Ranking()))
}

// AddComponent registers an instance built outside the locator as a
// singleton named name. Its tagged fields are injected and its boot hook runs
// before it becomes visible; on failure nothing is registered. The instance
// is advertised under its own type.
func (l *ServiceLocator) AddComponent(ctx context.Context, name string, component any) (*InhabitantHandle, error) {
	if component == nil {
		return nil, &InvalidDescriptorError{Implementation: "<nil>", Reason: "component is nil"}
	}
	d := Link(TypeKeyFor(reflect.TypeOf(component))).
		Named(name).
		In(ScopeSingleton).
		ProvidedBy(func(c *CreationContext) (any, error) {
			if v := reflect.ValueOf(component); v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct {
				if err := c.InjectFields(component); err != nil {
					return nil, err
				}
			}
			return component, nil
		}).
		Build()
	if err := l.validate(d); err != nil {
		return nil, err
	}
	h := newInhabitantHandle(d, l)
	if _, err := h.Get(ctx); err != nil {
		return nil, err
	}
	l.publish(h)
	return h, nil
}

// AddIndex makes h reachable under contract and name as well, without
// changing its descriptor. The extra entry goes after the existing ones.
func (l *ServiceLocator) AddIndex(h *InhabitantHandle, contract TypeKey, name string) {
	l.index.addIndex(h, contract, name)
	l.logger.Debug("indexed descriptor",
		zap.Stringer("handle", h),
		zap.String("contract", string(contract)),
		zap.String("name", name))
}

// LookupByContract returns the first handle registered for contract, or nil.
// Ranking is ignored; use BestByContract for rank-aware selection.
func (l *ServiceLocator) LookupByContract(contract TypeKey) *InhabitantHandle {
	return l.index.first(contract)
}

// LookupByContractNamed returns the first handle registered for contract
// under exactly name, or nil. An empty name matches only unnamed services.
func (l *ServiceLocator) LookupByContractNamed(contract TypeKey, name string) *InhabitantHandle {
	return l.index.named(contract, name)
}

// LookupAllByContract returns a snapshot of the handles registered for
// contract in insertion order. Later registrations do not show up in it.
func (l *ServiceLocator) LookupAllByContract(contract TypeKey) []*InhabitantHandle {
	return l.index.allByContract(contract)
}

// BestByContract returns the highest ranked handle for contract; equal ranks
// go to the earliest registration.
func (l *ServiceLocator) BestByContract(contract TypeKey) *InhabitantHandle {
	ranked := l.rankedByContract(contract)
	if len(ranked) == 0 {
		return nil
	}
	return ranked[0]
}

func (l *ServiceLocator) rankedByContract(contract TypeKey) []*InhabitantHandle {
	handles := l.index.allByContract(contract)
	sortByRank(handles)
	return handles
}

// LookupByImplementation returns the first handle for impl, or nil.
func (l *ServiceLocator) LookupByImplementation(impl TypeKey) *InhabitantHandle {
	all := l.index.allByImplementation(impl)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// LookupAllByImplementation returns a snapshot of the handles for impl.
func (l *ServiceLocator) LookupAllByImplementation(impl TypeKey) []*InhabitantHandle {
	return l.index.allByImplementation(impl)
}

// GetAllByContract realizes every service registered for contract, in
// insertion order, and stops at the first failure.
func (l *ServiceLocator) GetAllByContract(ctx context.Context, contract TypeKey) ([]any, error) {
	return l.realizeAll(ctx, l.index.allByContract(contract))
}

// GetAllByImplementation realizes every service registered for impl.
func (l *ServiceLocator) GetAllByImplementation(ctx context.Context, impl TypeKey) ([]any, error) {
	return l.realizeAll(ctx, l.index.allByImplementation(impl))
}

func (l *ServiceLocator) realizeAll(ctx context.Context, handles []*InhabitantHandle) ([]any, error) {
	out := make([]any, 0, len(handles))
	for _, h := range handles {
		v, err := h.Get(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// HasContract reports whether any service advertises contract.
func (l *ServiceLocator) HasContract(contract TypeKey) bool {
	return l.index.hasContract(contract)
}

// Resolve produces the value for point.
func (l *ServiceLocator) Resolve(ctx context.Context, point InjectionPoint) (any, error) {
	return l.newCreationContext(ctx).Resolve(point)
}

// Get resolves the highest ranked service advertising T, restricted to name
// when name is not empty.
func Get[T any](ctx context.Context, l *ServiceLocator, name string) (T, error) {
	var zero T
	contract := ContractOf[T]()
	v, err := l.Resolve(ctx, InjectionPoint{Kind: ElementOther, Contract: contract, Name: name})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{Expected: string(contract), Got: typeName(v)}
	}
	return typed, nil
}

// scopeHandles returns the handles registered as Context or OperationContext,
// each once, in insertion order. A non-empty scope keeps only those named
// after it.
func (l *ServiceLocator) scopeHandles(scope Scope) []*InhabitantHandle {
	var out []*InhabitantHandle
	for _, contract := range []TypeKey{ContractOf[Context](), ContractOf[OperationContext]()} {
		for _, h := range l.index.allByContract(contract) {
			if scope != "" && h.descriptor.name != string(scope) {
				continue
			}
			if !slices.Contains(out, h) {
				out = append(out, h)
			}
		}
	}
	return out
}

func (l *ServiceLocator) contextFor(c *CreationContext, scope Scope) (Context, error) {
	if cached, ok := l.contexts.Load(scope); ok {
		return cached.(Context), nil
	}
	for _, h := range l.scopeHandles(scope) {
		v, err := h.get(c)
		if err != nil {
			return nil, err
		}
		if sc, ok := v.(Context); ok && sc.Scope() == scope {
			actual, _ := l.contexts.LoadOrStore(scope, sc)
			return actual.(Context), nil
		}
	}
	return nil, &MissingScopeContextError{Scope: string(scope)}
}

// Shutdown shuts down every realized Context, then releases every handle. It
// keeps going past failures and returns the first one.
func (l *ServiceLocator) Shutdown(ctx context.Context) error {
	var first error
	for _, h := range l.scopeHandles("") {
		v, ok := h.peek()
		if !ok {
			continue
		}
		sc, ok := v.(Context)
		if !ok {
			continue
		}
		if err := sc.Shutdown(ctx); err != nil {
			if first == nil {
				first = err
			} else {
				l.logger.Warn("context shutdown failed", zap.String("scope", string(sc.Scope())), zap.Error(err))
			}
		}
	}
	l.contexts.Clear()

	if err := l.index.release(ctx, l.logger); err != nil && first == nil {
		first = err
	}
	return first
}

type descriptorDump struct {
	Implementation TypeKey
	Contracts      []TypeKey
	Name           string
	Scope          Scope
	Kind           string
	Ranking        int32
	Qualifiers     []string
	Metadata       map[string][]string
	Realized       bool
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump writes every registered descriptor to w in registration order.
func (l *ServiceLocator) Dump(w io.Writer) {
	handles := l.index.handles()
	out := make([]descriptorDump, len(handles))
	for i, h := range handles {
		d := h.descriptor
		out[i] = descriptorDump{
			Implementation: d.implementation,
			Contracts:      d.Contracts(),
			Name:           d.name,
			Scope:          d.scope,
			Kind:           d.kind.String(),
			Ranking:        d.Ranking(),
			Qualifiers:     d.Qualifiers(),
			Metadata:       d.Metadata(),
			Realized:       h.IsRealized(),
		}
	}
	dumpConfig.Fdump(w, out)
}
