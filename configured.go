package habitat

import "sync"

// ConfiguredMarker is the marker type of Configured.
const ConfiguredMarker MarkerType = "configured"

// Configured marks an injection point whose value is a property of the
// backing bean registered for the owning descriptor. Key names the property;
// on fields it defaults to the field name, on parameters it is required.
type Configured struct {
	Key string
}

// MarkerType returns ConfiguredMarker.
func (Configured) MarkerType() MarkerType { return ConfiguredMarker }

// BeanTable maps owner descriptors to the beans backing their configured
// injection points. Each ServiceLocator owns one.
type BeanTable struct {
	mu    sync.RWMutex
	beans map[*ServiceDescriptor]any
}

// NewBeanTable creates an empty table.
func NewBeanTable() *BeanTable {
	return &BeanTable{beans: make(map[*ServiceDescriptor]any)}
}

// Register associates bean with owner, replacing any previous bean.
func (t *BeanTable) Register(owner *ServiceDescriptor, bean any) {
	t.mu.Lock()
	t.beans[owner] = bean
	t.mu.Unlock()
}

// Lookup returns the bean registered for owner.
func (t *BeanTable) Lookup(owner *ServiceDescriptor) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bean, ok := t.beans[owner]
	return bean, ok
}

// Remove forgets the bean of owner. Instances already created keep the
// values they were given.
func (t *BeanTable) Remove(owner *ServiceDescriptor) {
	t.mu.Lock()
	delete(t.beans, owner)
	t.mu.Unlock()
}

// ConfiguredResolver resolves points marked with Configured.
type ConfiguredResolver struct {
	system InjectionResolver
	beans  *BeanTable
	getter PropertyGetter
}

// NewConfiguredResolver creates a resolver that reads properties of the beans
// in beans through getter and hands unmarked points to system. A nil getter
// means BeanProperty.
func NewConfiguredResolver(system InjectionResolver, beans *BeanTable, getter PropertyGetter) *ConfiguredResolver {
	if getter == nil {
		getter = BeanProperty
	}
	return &ConfiguredResolver{system: system, beans: beans, getter: getter}
}

func markerOf(point InjectionPoint) (Configured, bool) {
	switch m := point.Marker.(type) {
	case Configured:
		return m, true
	case *Configured:
		if m != nil {
			return *m, true
		}
	}
	return Configured{}, false
}

// key returns the property name for point; handled is false when point
// belongs to the system resolver.
func (r *ConfiguredResolver) key(point InjectionPoint) (key string, handled bool, err error) {
	m, ok := markerOf(point)
	if !ok {
		return "", false, nil
	}
	switch point.Kind {
	case ElementField:
		key = m.Key
		if key == "" {
			key = point.Element
		}
		if key == "" {
			return "", true, &ConfigurationError{Point: point.String(), Reason: "configured field has neither a key nor a name"}
		}
		return key, true, nil
	case ElementConstructorParameter, ElementSetterParameter:
		if m.Key == "" {
			return "", true, &ConfigurationError{Point: point.String(), Reason: "configured parameter requires an explicit key"}
		}
		return m.Key, true, nil
	default:
		return "", false, nil
	}
}

// Validate rejects configured parameters that carry no key.
func (r *ConfiguredResolver) Validate(point InjectionPoint) error {
	_, _, err := r.key(point)
	return err
}

func (r *ConfiguredResolver) Resolve(point InjectionPoint, c *CreationContext) (any, error) {
	if point.Owner == nil {
		return r.system.Resolve(point, c)
	}
	key, handled, err := r.key(point)
	if err != nil {
		return nil, err
	}
	if !handled {
		return r.system.Resolve(point, c)
	}

	bean, ok := r.beans.Lookup(point.Owner)
	if !ok {
		return nil, &BeanNotFoundError{Point: point.String()}
	}
	value, err := r.getter(key, bean)
	if err != nil {
		return nil, &PropertyNotFoundError{Key: key, Point: point.String(), Err: err}
	}
	return value, nil
}
