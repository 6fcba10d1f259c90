package ecs

import "sync"

// Resource is the identity a component store exposes for dependency
// declaration: every Store[T] is a Resource.
type Resource interface {
	TypeID() TypeID
	ComponentName() string
}

// registered pairs a store's cleanup hook with its diagnostic identity.
type registered struct {
	store Removable
	res   Resource
}

// World is the top-level ECS container. It owns the entity pool, the set of
// registered component stores, and a deferred destruction queue flushed at
// end of frame by a cleanup system. Store registration happens at setup
// time, before any frame runs; the destroy queue is the one piece mutated
// from pool threads and is guarded accordingly.
type World struct {
	pool   *EntityPool
	stores []registered
	nextID TypeID

	destroyMu    sync.Mutex
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		stores:       make([]registered, 0, 16),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool { return w.pool }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Resources returns every registered store's identity in registration
// order. A system whose footprint is "everything" (e.g. cleanup) declares
// writes across all of them.
func (w *World) Resources() []Resource {
	out := make([]Resource, len(w.stores))
	for i, r := range w.stores {
		out[i] = r.res
	}
	return out
}

// MarkForDestruction queues an entity for end-of-frame cleanup. Safe to
// call from systems running concurrently.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyMu.Lock()
	w.destroyQueue = append(w.destroyQueue, id)
	w.destroyMu.Unlock()
}

// FlushDestroyQueue destroys all queued entities and clears their
// components. Called by a cleanup system that declares writes on every
// store, so it never races sibling systems.
func (w *World) FlushDestroyQueue() {
	w.destroyMu.Lock()
	queue := w.destroyQueue
	w.destroyQueue = make([]EntityID, 0, cap(queue))
	w.destroyMu.Unlock()

	for _, id := range queue {
		for _, r := range w.stores {
			r.store.Remove(id)
		}
		w.pool.Destroy(id)
	}
}

// register assigns the next TypeID to a store. Called from NewStore.
func (w *World) register(store Removable, name string) TypeID {
	id := w.nextID
	w.nextID++
	w.stores = append(w.stores, registered{store: store, res: resourceID{id: id, name: name}})
	return id
}

// resourceID is the immutable identity snapshot kept for Resources(), so
// the world does not retain a generic view of each store.
type resourceID struct {
	id   TypeID
	name string
}

func (r resourceID) TypeID() TypeID        { return r.id }
func (r resourceID) ComponentName() string { return r.name }
