package reconcile

import (
	"sync"
	"time"

	"github.com/fr33d0m21/pull/models"
)

// Snapshot is a copy of one store's reconciliation state. Callers own it.
type Snapshot struct {
	StoreId  string                 `json:"store_id"`
	Orders   []models.RemovalOrder  `json:"orders"`
	Tracking []models.TrackingEntry `json:"tracking"`
	Stats    Stats                  `json:"stats"`
	LoadedAt time.Time              `json:"loaded_at"`
}

// storeState is the in-process view of one store. mu serializes every
// mutation of the store within this process and guards the fields.
type storeState struct {
	mu       sync.Mutex
	loaded   bool
	loadedAt time.Time
	orders   []models.RemovalOrder
	tracking []models.TrackingEntry
	stats    Stats
}

func (st *storeState) snapshot(storeId string) *Snapshot {
	s := &Snapshot{
		StoreId:  storeId,
		Orders:   make([]models.RemovalOrder, len(st.orders)),
		Tracking: append([]models.TrackingEntry(nil), st.tracking...),
		Stats:    st.stats,
		LoadedAt: st.loadedAt,
	}
	for i, o := range st.orders {
		s.Orders[i] = o.Clone()
	}
	return s
}

// replaceOrder swaps the cached copy of o, keeping order.
func (st *storeState) replaceOrder(o models.RemovalOrder) {
	for i := range st.orders {
		if st.orders[i].ID == o.ID {
			st.orders[i] = o.Clone()
			return
		}
	}
	st.orders = append(st.orders, o.Clone())
}

func (st *storeState) reset() {
	st.loaded = false
	st.loadedAt = time.Time{}
	st.orders = nil
	st.tracking = nil
	st.stats = Stats{}
}

// Registry hands out one state per store, so stores never block each other.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*storeState
}

func NewRegistry() *Registry {
	return &Registry{stores: map[string]*storeState{}}
}

func (r *Registry) get(storeId string) *storeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stores[storeId]
	if !ok {
		st = &storeState{}
		r.stores[storeId] = st
	}
	return st
}

// Loaded lists the stores with a state in this process.
func (r *Registry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.stores))
	for id, st := range r.stores {
		if st.loaded {
			ids = append(ids, id)
		}
	}
	return ids
}
