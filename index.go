package habitat

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

type namedHandle struct {
	name   string
	handle *InhabitantHandle
}

// descriptorIndex holds every handle twice: by contract and by implementation.
// Both views share the handle pointers and only ever grow.
type descriptorIndex struct {
	mu               sync.RWMutex
	byContract       map[TypeKey][]namedHandle
	byImplementation map[TypeKey][]*InhabitantHandle
	all              []*InhabitantHandle
}

func newDescriptorIndex() *descriptorIndex {
	return &descriptorIndex{
		byContract:       make(map[TypeKey][]namedHandle, 32),
		byImplementation: make(map[TypeKey][]*InhabitantHandle, 32),
	}
}

func (x *descriptorIndex) add(h *InhabitantHandle) {
	d := h.descriptor

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, c := range d.contracts {
		x.byContract[c] = append(x.byContract[c], namedHandle{name: d.name, handle: h})
	}
	x.byImplementation[d.implementation] = append(x.byImplementation[d.implementation], h)
	x.all = append(x.all, h)
}

// addIndex appends h to the contract view under name. The implementation view
// is left alone.
func (x *descriptorIndex) addIndex(h *InhabitantHandle, contract TypeKey, name string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byContract[contract] = append(x.byContract[contract], namedHandle{name: name, handle: h})
}

func (x *descriptorIndex) first(contract TypeKey) *InhabitantHandle {
	x.mu.RLock()
	defer x.mu.RUnlock()

	l := x.byContract[contract]
	if len(l) == 0 {
		return nil
	}
	return l[0].handle
}

func (x *descriptorIndex) named(contract TypeKey, name string) *InhabitantHandle {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for _, nh := range x.byContract[contract] {
		if nh.name == name {
			return nh.handle
		}
	}
	return nil
}

func (x *descriptorIndex) allByContract(contract TypeKey) []*InhabitantHandle {
	x.mu.RLock()
	defer x.mu.RUnlock()

	l := x.byContract[contract]
	out := make([]*InhabitantHandle, len(l))
	for i, nh := range l {
		out[i] = nh.handle
	}
	return out
}

func (x *descriptorIndex) allByImplementation(impl TypeKey) []*InhabitantHandle {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.byImplementation[impl])
}

func (x *descriptorIndex) hasContract(contract TypeKey) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byContract[contract]) > 0
}

func (x *descriptorIndex) handles() []*InhabitantHandle {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.all)
}

// release releases every handle, newest first, and returns the first error.
func (x *descriptorIndex) release(ctx context.Context, logger *zap.Logger) error {
	var first error
	all := x.handles()
	for i := len(all) - 1; i >= 0; i-- {
		if err := all[i].Release(ctx); err != nil {
			if first == nil {
				first = err
				continue
			}
			logger.Warn("release failed", zap.Stringer("handle", all[i]), zap.Error(err))
		}
	}
	return first
}
