package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fr33d0m21/pull/models"
)

// MemoryRepository keeps everything in process. It backs tests and the
// pullbackctl dry runs.
type MemoryRepository struct {
	mu          sync.Mutex
	nextOrderId int
	nextUnitId  int
	nextOtherId int

	orders       map[int]models.RemovalOrder
	units        map[int][]models.ReceivedUnit
	tracking     []models.TrackingEntry
	spreadsheets []models.Spreadsheet
	completed    map[int]models.CompletedOrder
	events       []models.ReconciliationEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:    map[int]models.RemovalOrder{},
		units:     map[int][]models.ReceivedUnit{},
		completed: map[int]models.CompletedOrder{},
	}
}

func (m *MemoryRepository) withUnits(o models.RemovalOrder) models.RemovalOrder {
	c := o.Clone()
	c.ReceivedUnits = nil
	for _, u := range m.units[o.ID] {
		c.ReceivedUnits = append(c.ReceivedUnits, u.Clone())
	}
	return c
}

func (m *MemoryRepository) LoadOrders(_ context.Context, storeId string) ([]models.RemovalOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RemovalOrder
	for _, o := range m.orders {
		if o.StoreId == storeId {
			out = append(out, m.withUnits(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) GetOrder(_ context.Context, storeId string, id int) (*models.RemovalOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.StoreId != storeId {
		return nil, ErrOrderNotFound
	}
	c := m.withUnits(o)
	return &c, nil
}

func (m *MemoryRepository) LoadTracking(_ context.Context, storeId string) ([]models.TrackingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TrackingEntry
	for _, t := range m.tracking {
		if t.StoreId == storeId {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryRepository) ListSpreadsheets(_ context.Context, storeId string) ([]models.Spreadsheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Spreadsheet
	for _, s := range m.spreadsheets {
		if s.StoreId == storeId {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (m *MemoryRepository) ListCompleted(_ context.Context, storeId string) ([]models.CompletedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CompletedOrder
	for _, c := range m.completed {
		if c.StoreId == storeId {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) InsertRemovalBatch(_ context.Context, sheet *models.Spreadsheet, orders []models.RemovalOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spreadsheets = append(m.spreadsheets, *sheet)
	now := time.Now()
	for i := range orders {
		m.nextOrderId++
		orders[i].ID = m.nextOrderId
		orders[i].CreatedAt = now
		orders[i].UpdatedAt = now
		stored := orders[i].Clone()
		stored.ReceivedUnits = nil
		m.orders[stored.ID] = stored
	}
	return nil
}

func (m *MemoryRepository) InsertTrackingBatch(_ context.Context, sheet *models.Spreadsheet, entries []models.TrackingEntry, matched []models.RemovalOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range matched {
		if existing, ok := m.orders[o.ID]; !ok || existing.StoreId != sheet.StoreId {
			return ErrOrderNotFound
		}
	}
	m.spreadsheets = append(m.spreadsheets, *sheet)
	for i := range entries {
		m.nextOtherId++
		entries[i].ID = m.nextOtherId
		m.tracking = append(m.tracking, entries[i])
	}
	for _, o := range matched {
		m.putOrder(o)
	}
	return nil
}

func (m *MemoryRepository) putOrder(o models.RemovalOrder) {
	stored := o.Clone()
	stored.ReceivedUnits = nil
	stored.UpdatedAt = time.Now()
	m.orders[o.ID] = stored
}

func (m *MemoryRepository) SaveOrder(_ context.Context, order *models.RemovalOrder, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.orders[order.ID]
	if !ok || existing.StoreId != order.StoreId {
		return ErrOrderNotFound
	}
	if expectedVersion > 0 && existing.Version != expectedVersion && existing.Version != order.Version {
		return ErrVersionConflict
	}
	m.putOrder(*order)
	return nil
}

func (m *MemoryRepository) ReplaceUnits(_ context.Context, storeId string, orderId int, units []models.ReceivedUnit) ([]models.ReceivedUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderId]; !ok || o.StoreId != storeId {
		return nil, ErrOrderNotFound
	}
	stored := make([]models.ReceivedUnit, 0, len(units))
	for _, u := range units {
		c := u.Clone()
		m.nextUnitId++
		c.ID = m.nextUnitId
		c.StoreId = storeId
		c.RemovalOrderId = orderId
		c.CreatedAt = time.Now()
		stored = append(stored, c)
	}
	m.units[orderId] = stored
	out := make([]models.ReceivedUnit, len(stored))
	for i, u := range stored {
		out[i] = u.Clone()
	}
	return out, nil
}

func (m *MemoryRepository) UpsertCompletedOrder(_ context.Context, rec *models.CompletedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.completed[rec.RemovalOrderId]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		m.nextOtherId++
		rec.ID = m.nextOtherId
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()
	m.completed[rec.RemovalOrderId] = *rec
	return nil
}

func (m *MemoryRepository) AppendEvent(_ context.Context, ev *models.ReconciliationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOtherId++
	ev.ID = m.nextOtherId
	m.events = append(m.events, *ev)
	return nil
}

// Events returns the outbox events written so far.
func (m *MemoryRepository) Events() []models.ReconciliationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ReconciliationEvent(nil), m.events...)
}

func (m *MemoryRepository) ClearStore(_ context.Context, storeId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, o := range m.orders {
		if o.StoreId == storeId {
			delete(m.orders, id)
			delete(m.units, id)
		}
	}
	for id, c := range m.completed {
		if c.StoreId == storeId {
			delete(m.completed, id)
		}
	}
	m.tracking = filterByStore(m.tracking, storeId, func(t models.TrackingEntry) string { return t.StoreId })
	m.spreadsheets = filterByStore(m.spreadsheets, storeId, func(s models.Spreadsheet) string { return s.StoreId })
	return nil
}

func filterByStore[T any](items []T, storeId string, storeOf func(T) string) []T {
	kept := items[:0]
	for _, it := range items {
		if storeOf(it) != storeId {
			kept = append(kept, it)
		}
	}
	return kept
}
