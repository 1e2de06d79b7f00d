package habitat

import (
	"fmt"
	"slices"
	"sync"
)

// ElementKind is the kind of element an injection point belongs to.
type ElementKind int

const (
	ElementOther ElementKind = iota
	ElementField
	ElementConstructorParameter
	ElementSetterParameter
)

func (k ElementKind) String() string {
	switch k {
	case ElementField:
		return "field"
	case ElementConstructorParameter:
		return "constructor parameter"
	case ElementSetterParameter:
		return "setter parameter"
	default:
		return "element"
	}
}

// MarkerType identifies a family of markers and selects their resolver.
type MarkerType string

// Marker is a declarative tag attached to an injection point.
type Marker interface {
	MarkerType() MarkerType
}

// InjectionPoint is one value a service needs supplied at creation.
type InjectionPoint struct {
	Kind ElementKind
	// Declaring is the type that declares the element.
	Declaring TypeKey
	// Element is the field name, or the constructor or setter name.
	Element string
	// Position is the parameter index for parameter kinds.
	Position int

	Contract   TypeKey
	Name       string
	Qualifiers []string
	Optional   bool

	Marker Marker
	// Owner is the descriptor of the instance being injected.
	Owner *ServiceDescriptor
}

func (p InjectionPoint) String() string {
	switch p.Kind {
	case ElementField:
		return fmt.Sprintf("field %s of %s", p.Element, p.Declaring)
	case ElementConstructorParameter, ElementSetterParameter:
		return fmt.Sprintf("%s %d of %s.%s", p.Kind, p.Position, p.Declaring, p.Element)
	default:
		if p.Name != "" {
			return fmt.Sprintf("%s(%s)", p.Contract, p.Name)
		}
		return string(p.Contract)
	}
}

// InjectionResolver produces the value for an injection point.
type InjectionResolver interface {
	Resolve(point InjectionPoint, c *CreationContext) (any, error)
}

// InjectionResolverFunc adapts a function to InjectionResolver.
type InjectionResolverFunc func(point InjectionPoint, c *CreationContext) (any, error)

func (f InjectionResolverFunc) Resolve(point InjectionPoint, c *CreationContext) (any, error) {
	return f(point, c)
}

// PointValidator is implemented by resolvers that can reject an injection
// point before any instance is created.
type PointValidator interface {
	Validate(point InjectionPoint) error
}

// ResolverChain maps marker types to their resolvers. Points without a marker,
// or with a marker nobody registered for, go to the system resolver.
type ResolverChain struct {
	mu       sync.RWMutex
	system   InjectionResolver
	byMarker map[MarkerType]InjectionResolver
}

// NewResolverChain returns a chain with system as the default resolver.
func NewResolverChain(system InjectionResolver) *ResolverChain {
	return &ResolverChain{
		system:   system,
		byMarker: make(map[MarkerType]InjectionResolver, 4),
	}
}

// System returns the default resolver.
func (r *ResolverChain) System() InjectionResolver {
	return r.system
}

// Register installs resolver for markers of type mt, replacing any previous one.
func (r *ResolverChain) Register(mt MarkerType, resolver InjectionResolver) {
	r.mu.Lock()
	r.byMarker[mt] = resolver
	r.mu.Unlock()
}

// For returns the resolver owning point.
func (r *ResolverChain) For(point InjectionPoint) InjectionResolver {
	if point.Marker == nil {
		return r.system
	}
	r.mu.RLock()
	resolver, ok := r.byMarker[point.Marker.MarkerType()]
	r.mu.RUnlock()
	if !ok {
		return r.system
	}
	return resolver
}

// Resolve hands point to the resolver owning it.
func (r *ResolverChain) Resolve(point InjectionPoint, c *CreationContext) (any, error) {
	return r.For(point).Resolve(point, c)
}

// Validate asks the owning resolver to check point, when it knows how.
func (r *ResolverChain) Validate(point InjectionPoint) error {
	if v, ok := r.For(point).(PointValidator); ok {
		return v.Validate(point)
	}
	return nil
}

// systemResolver satisfies a point from the registry: the highest ranked
// service of the point's contract that carries its name and qualifiers.
type systemResolver struct {
	locator *ServiceLocator
}

func (s *systemResolver) Resolve(point InjectionPoint, c *CreationContext) (any, error) {
	for _, h := range s.locator.rankedByContract(point.Contract) {
		d := h.descriptor
		if point.Name != "" && d.name != point.Name {
			continue
		}
		if !d.HasQualifiers(point.Qualifiers) {
			continue
		}
		return h.get(c)
	}
	if point.Optional {
		return nil, nil
	}
	return nil, &UnsatisfiedDependencyError{Point: point.String()}
}

// sortByRank orders handles by ranking, highest first, keeping insertion order
// among equal ranks.
func sortByRank(handles []*InhabitantHandle) {
	slices.SortStableFunc(handles, func(a, b *InhabitantHandle) int {
		ra, rb := a.descriptor.Ranking(), b.descriptor.Ranking()
		switch {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		}
		return 0
	})
}
