package habitat

import (
	"maps"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// TypeKey is the opaque identity of a contract or implementation type.
type TypeKey string

var typeKeyCache sync.Map

// TypeKeyFor returns the TypeKey of t: the package path qualified name for
// named types, the reflect string otherwise.
func TypeKeyFor(t reflect.Type) TypeKey {
	if cached, ok := typeKeyCache.Load(t); ok {
		return cached.(TypeKey)
	}
	var key TypeKey
	switch {
	case t.Name() != "" && t.PkgPath() != "":
		key = TypeKey(t.PkgPath() + "." + t.Name())
	case t.Kind() == reflect.Pointer && t.Elem().Name() != "" && t.Elem().PkgPath() != "":
		key = TypeKey("*" + t.Elem().PkgPath() + "." + t.Elem().Name())
	default:
		key = TypeKey(t.String())
	}
	typeKeyCache.Store(t, key)
	return key
}

// ContractOf returns the TypeKey of T.
func ContractOf[T any]() TypeKey {
	return TypeKeyFor(reflect.TypeFor[T]())
}

// Scope defines the lifetime and sharing behavior of a service.
// Any value other than the predefined ones names a custom scope served by a Context.
type Scope string

// Built-in scopes
const (
	// ScopeSingleton keeps one instance for the lifetime of the locator
	ScopeSingleton Scope = "singleton"
	// ScopePerLookup creates a new instance for each lookup
	ScopePerLookup Scope = "perlookup"
)

// DescriptorKind tells how instances of a descriptor are produced.
type DescriptorKind int

const (
	// DescriptorClass creates instances directly through the creator
	DescriptorClass DescriptorKind = iota
	// DescriptorFactory marks a creator that acts as a factory for the contract
	DescriptorFactory
)

// String returns "class" or "factory".
func (k DescriptorKind) String() string {
	if k == DescriptorFactory {
		return "factory"
	}
	return "class"
}

// ServiceDescriptor describes one registerable service.
// Every field except the ranking is fixed once Build returns.
type ServiceDescriptor struct {
	implementation TypeKey
	contracts      []TypeKey
	name           string
	scope          Scope
	qualifiers     []string
	metadata       map[string][]string
	ranking        atomic.Int32
	kind           DescriptorKind
	creator        Creator
	destroyer      Destroyer
	points         []InjectionPoint
}

// Accessors. Slices are returned as copies.
func (d *ServiceDescriptor) Implementation() TypeKey { return d.implementation }
func (d *ServiceDescriptor) Contracts() []TypeKey    { return slices.Clone(d.contracts) }
func (d *ServiceDescriptor) Name() string            { return d.name }
func (d *ServiceDescriptor) Scope() Scope            { return d.scope }
func (d *ServiceDescriptor) Qualifiers() []string    { return slices.Clone(d.qualifiers) }
func (d *ServiceDescriptor) Kind() DescriptorKind    { return d.kind }
func (d *ServiceDescriptor) Ranking() int32          { return d.ranking.Load() }

// SetRanking changes the ranking and returns the previous one. Rankings are
// not part of the descriptor's identity, so this is safe after registration.
func (d *ServiceDescriptor) SetRanking(r int32) int32 {
	return d.ranking.Swap(r)
}

// Metadata returns a copy of the metadata.
func (d *ServiceDescriptor) Metadata() map[string][]string {
	out := make(map[string][]string, len(d.metadata))
	for k, v := range d.metadata {
		out[k] = slices.Clone(v)
	}
	return out
}

// InjectionPoints returns the injection points the descriptor declares.
func (d *ServiceDescriptor) InjectionPoints() []InjectionPoint {
	return slices.Clone(d.points)
}

// Advertises reports whether c is among the descriptor's contracts.
func (d *ServiceDescriptor) Advertises(c TypeKey) bool {
	return slices.Contains(d.contracts, c)
}

// HasQualifiers reports whether the descriptor carries every qualifier in qs.
func (d *ServiceDescriptor) HasQualifiers(qs []string) bool {
	for _, q := range qs {
		if !slices.Contains(d.qualifiers, q) {
			return false
		}
	}
	return true
}

// Equal compares everything but the ranking and the functions.
func (d *ServiceDescriptor) Equal(o *ServiceDescriptor) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.implementation == o.implementation &&
		slices.Equal(d.contracts, o.contracts) &&
		d.name == o.name &&
		d.scope == o.scope &&
		d.kind == o.kind &&
		slices.Equal(d.qualifiers, o.qualifiers) &&
		maps.EqualFunc(d.metadata, o.metadata, func(a, b []string) bool { return slices.Equal(a, b) })
}

func (d *ServiceDescriptor) String() string {
	s := string(d.implementation)
	if d.name != "" {
		s += "(" + d.name + ")"
	}
	return s
}

// DescriptorBuilder assembles a ServiceDescriptor.
type DescriptorBuilder struct {
	d *ServiceDescriptor
}

// Link starts a descriptor for the given implementation. Without a call to
// To the implementation itself is advertised as the only contract.
func Link(implementation TypeKey) *DescriptorBuilder {
	return &DescriptorBuilder{d: &ServiceDescriptor{
		implementation: implementation,
		scope:          ScopePerLookup,
		metadata:       map[string][]string{},
	}}
}

// To adds contract to the advertised contracts. Duplicates are ignored.
func (b *DescriptorBuilder) To(contract TypeKey) *DescriptorBuilder {
	if !slices.Contains(b.d.contracts, contract) {
		b.d.contracts = append(b.d.contracts, contract)
	}
	return b
}

// Named sets the service name used by named lookups.
func (b *DescriptorBuilder) Named(name string) *DescriptorBuilder {
	b.d.name = name
	return b
}

// In sets the scope. Descriptors default to ScopePerLookup.
func (b *DescriptorBuilder) In(scope Scope) *DescriptorBuilder {
	b.d.scope = scope
	return b
}

// QualifiedBy adds a qualifier that injection points can require.
func (b *DescriptorBuilder) QualifiedBy(qualifier string) *DescriptorBuilder {
	if !slices.Contains(b.d.qualifiers, qualifier) {
		b.d.qualifiers = append(b.d.qualifiers, qualifier)
	}
	return b
}

// Has appends value to the metadata values of key.
func (b *DescriptorBuilder) Has(key, value string) *DescriptorBuilder {
	b.d.metadata[key] = append(b.d.metadata[key], value)
	return b
}

// OfRank sets the initial ranking. Higher ranks win rank-aware lookups.
func (b *DescriptorBuilder) OfRank(rank int32) *DescriptorBuilder {
	b.d.ranking.Store(rank)
	return b
}

// AsFactory marks the descriptor as a factory descriptor.
func (b *DescriptorBuilder) AsFactory() *DescriptorBuilder {
	b.d.kind = DescriptorFactory
	return b
}

// ProvidedBy sets the creator. A descriptor without one is rejected by Register.
func (b *DescriptorBuilder) ProvidedBy(creator Creator) *DescriptorBuilder {
	b.d.creator = creator
	return b
}

// DestroyedBy sets the destroyer, which replaces the Lifecycle shutdown hook.
func (b *DescriptorBuilder) DestroyedBy(destroyer Destroyer) *DescriptorBuilder {
	b.d.destroyer = destroyer
	return b
}

// Injects declares an injection point of the descriptor. The point's Owner is
// filled in by Build.
func (b *DescriptorBuilder) Injects(point InjectionPoint) *DescriptorBuilder {
	b.d.points = append(b.d.points, point)
	return b
}

// Build returns the descriptor. The builder must not be used afterwards.
func (b *DescriptorBuilder) Build() *ServiceDescriptor {
	d := b.d
	if len(d.contracts) == 0 {
		d.contracts = []TypeKey{d.implementation}
	}
	for i := range d.points {
		d.points[i].Owner = d
	}
	b.d = nil
	return d
}
