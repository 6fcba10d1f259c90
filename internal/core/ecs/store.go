package ecs

import "reflect"

// TypeID identifies one component store within its World. IDs are assigned
// sequentially at store registration, so they are stable for a fixed
// registration order — the scheduler keys its conflict analysis on them.
type TypeID uint32

// Removable is implemented by all component stores so the World can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Store is a generic typed map store for ECS components. No locking: the
// scheduler's conflict analysis is the entire mutual-exclusion mechanism
// for component data, so a store is only ever touched by systems proven
// conflict-free against each other.
type Store[T any] struct {
	id   TypeID
	name string
	data map[EntityID]*T
}

// NewStore registers a component store with w and assigns its TypeID. The
// component name (used to label conflicts in diagnostics) is taken from T.
func NewStore[T any](w *World) *Store[T] {
	s := &Store[T]{
		name: reflect.TypeOf((*T)(nil)).Elem().Name(),
		data: make(map[EntityID]*T, 256),
	}
	s.id = w.register(s, s.name)
	return s
}

// TypeID returns the store's identity within its World.
func (s *Store[T]) TypeID() TypeID { return s.id }

// ComponentName returns the component type's name for diagnostics.
func (s *Store[T]) ComponentName() string { return s.name }

func (s *Store[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}
