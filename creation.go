package habitat

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// CreationContext is handed to Creators and Lifecycle hooks. It links back to
// the creations in progress above it so cycles are reported instead of
// deadlocking on a singleton's lock.
type CreationContext struct {
	ctx     context.Context
	locator *ServiceLocator
	handle  *InhabitantHandle
	parent  *CreationContext
	root    *CreationContext
}

func (l *ServiceLocator) newCreationContext(ctx context.Context) *CreationContext {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &CreationContext{ctx: ctx, locator: l}
	c.root = c
	return c
}

func (c *CreationContext) enter(h *InhabitantHandle) (*CreationContext, error) {
	for p := c; p != nil; p = p.parent {
		if p.handle == h {
			return nil, &CircularDependencyError{Type: h.String()}
		}
	}
	return &CreationContext{ctx: c.ctx, locator: c.locator, handle: h, parent: c, root: c.root}, nil
}

// creationLocks gives one resolution at a time the right to create the
// instance behind a key (a singleton handle or an operation slot). Resolutions
// are identified by their root CreationContext. A resolution that would wait
// on a key whose holder already waits, directly or through other holders, on
// a key it holds gets a CircularDependencyError instead.
type creationLocks struct {
	mu      sync.Mutex
	cond    *sync.Cond
	owners  map[any]*CreationContext
	waiting map[*CreationContext]any
}

func newCreationLocks() *creationLocks {
	l := &creationLocks{
		owners:  make(map[any]*CreationContext),
		waiting: make(map[*CreationContext]any),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *creationLocks) lock(key any, c *CreationContext, name string) error {
	root := c.root
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		owner, busy := l.owners[key]
		if !busy {
			l.owners[key] = root
			return nil
		}
		if l.reaches(owner, root) {
			return &CircularDependencyError{Type: name}
		}
		l.waiting[root] = key
		l.cond.Wait()
		delete(l.waiting, root)
	}
}

// reaches follows the wait chain starting at owner and reports whether it
// leads back to root.
func (l *creationLocks) reaches(owner, root *CreationContext) bool {
	for owner != nil {
		if owner == root {
			return true
		}
		key, ok := l.waiting[owner]
		if !ok {
			return false
		}
		owner = l.owners[key]
	}
	return false
}

func (l *creationLocks) unlock(key any) {
	l.mu.Lock()
	delete(l.owners, key)
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Context returns the context.Context of the originating call.
func (c *CreationContext) Context() context.Context { return c.ctx }

// Locator returns the locator performing the creation.
func (c *CreationContext) Locator() *ServiceLocator { return c.locator }

// Handle returns the handle being created, or nil at the root of a resolution.
func (c *CreationContext) Handle() *InhabitantHandle { return c.handle }

// Descriptor returns the descriptor being created, or nil at the root.
func (c *CreationContext) Descriptor() *ServiceDescriptor {
	if c.handle == nil {
		return nil
	}
	return c.handle.descriptor
}

// Execution returns the execution the originating call runs on.
func (c *CreationContext) Execution() ExecutionID {
	return ExecutionFromContext(c.ctx)
}

// Resolve resolves point on behalf of the instance being created. A point
// without an Owner is attributed to the current descriptor.
func (c *CreationContext) Resolve(point InjectionPoint) (any, error) {
	if point.Owner == nil {
		point.Owner = c.Descriptor()
	}
	return c.locator.resolvers.Resolve(point, c)
}

// ResolveDeclared resolves the descriptor's declared injection points in order.
func (c *CreationContext) ResolveDeclared() ([]any, error) {
	d := c.Descriptor()
	if d == nil {
		return nil, nil
	}
	out := make([]any, len(d.points))
	for i, p := range d.points {
		v, err := c.Resolve(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// InjectFields fills the tagged fields of the struct target points to.
//
//	type Service struct {
//	    Greeter mock.Greeter `inject:""`
//	    French  mock.Greeter `inject:"french,optional"`
//	    Port    string       `configured:"port"`
//	    Host    string       `configured:""`
//	}
//
// An empty configured key defaults to the field name.
func (c *CreationContext) InjectFields(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return &ConfigurationError{Point: fmt.Sprintf("%T", target), Reason: "field injection needs a non-nil pointer to a struct"}
	}
	v = v.Elem()
	t := v.Type()
	declaring := TypeKeyFor(t)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		point, ok := fieldPoint(declaring, i, field)
		if !ok {
			continue
		}
		if !field.IsExported() {
			return &ConfigurationError{Point: point.String(), Reason: "field is not exported"}
		}

		value, err := c.Resolve(point)
		if err != nil {
			return err
		}
		if value == nil {
			continue
		}
		if err := assign(v.Field(i), value, point); err != nil {
			return err
		}
	}
	return nil
}

func fieldPoint(declaring TypeKey, i int, field reflect.StructField) (InjectionPoint, bool) {
	point := InjectionPoint{
		Kind:      ElementField,
		Declaring: declaring,
		Element:   field.Name,
		Position:  i,
		Contract:  TypeKeyFor(field.Type),
	}
	if key, ok := field.Tag.Lookup("configured"); ok {
		point.Marker = Configured{Key: key}
		return point, true
	}
	tag, ok := field.Tag.Lookup("inject")
	if !ok {
		return point, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	point.Name = name
	point.Optional = opts == "optional"
	return point, true
}

func assign(field reflect.Value, value any, point InjectionPoint) error {
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(field.Type()):
		field.Set(rv)
	case rv.Kind() == field.Kind() && rv.Type().ConvertibleTo(field.Type()):
		field.Set(rv.Convert(field.Type()))
	default:
		return &ConfigurationError{
			Point:  point.String(),
			Reason: fmt.Sprintf("value of type %s is not assignable to %s", rv.Type(), field.Type()),
		}
	}
	return nil
}
