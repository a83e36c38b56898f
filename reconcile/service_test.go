package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/parser"
	"github.com/fr33d0m21/pull/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const removalCSV = `request-date,order-id,order-source,order-type,order-status,last-updated-date,sku,fnsku,disposition,requested-quantity,cancelled-quantity,disposed-quantity,shipped-quantity,in-process-quantity,removal-fee,currency
2024-03-18,ORD-1,Manual,Return,Pending,2024-03-18,SKU-A,X00A,Sellable,5,0,0,0,0,1.50,USD
2024-03-18,ORD-1,Manual,Return,Pending,2024-03-18,SKU-B,X00B,Sellable,2,0,0,0,0,2.00,USD
2024-02-01,ORD-2,Manual,Return,Pending,2024-02-01,SKU-C,X00C,Unsellable,4,0,0,0,0,3.25,USD
`

const trackingCSV = `request-date,order-id,shipment-date,sku,fnsku,disposition,shipped-quantity,carrier,tracking-number,removal-order-type
2024-03-18,ORD-1,2024-03-19,SKU-A,X00A,Sellable,5,UPS,1Z001,Return
2024-03-18,ORD-1,2024-03-19,SKU-B,X00B,Sellable,2,UPS,1Z001,Return
2024-02-01,ORD-2,2024-02-05,SKU-C,X00C,Unsellable,3,FedEx,7777,Return
2024-02-01,ORD-2,2024-02-06,SKU-C,X00C,Unsellable,1,FedEx,8888,Return
2024-02-01,ORD-9,2024-02-06,SKU-Z,X00Z,Sellable,1,FedEx,9999,Return
`

var testNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo Repository, mutate ...func(*Options)) *Service {
	t.Helper()
	opts := Options{
		Retry: RetryPolicy{MaxRetries: 2},
		Now:   func() time.Time { return testNow },
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewService(repo, opts)
}

func ingest(t *testing.T, svc *Service, storeId string, content string, ft parser.FileType) *IngestResult {
	t.Helper()
	parsed, err := parser.Parse([]byte(content), ft)
	require.NoError(t, err)
	res, err := svc.Ingest(context.Background(), IngestRequest{
		StoreId:    storeId,
		FileName:   string(ft) + ".csv",
		UploadedBy: "tester",
		Result:     parsed,
	})
	require.NoError(t, err)
	return res
}

func findLine(t *testing.T, svc *Service, storeId, orderId, sku string) models.RemovalOrder {
	t.Helper()
	orders, err := svc.ListOrders(context.Background(), storeId, OrderFilter{})
	require.NoError(t, err)
	for _, o := range orders {
		if o.OrderId == orderId && o.Sku == sku {
			return o
		}
	}
	t.Fatalf("line %s/%s not found", orderId, sku)
	return models.RemovalOrder{}
}

func eventTypes(repo *MemoryRepository) []string {
	var types []string
	for _, ev := range repo.Events() {
		types = append(types, ev.EventType)
	}
	return types
}

func TestIngestRemovalFile(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo)

	res := ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, models.FileTypeRemoval, res.Spreadsheet.FileType)
	assert.Equal(t, "tester", res.Spreadsheet.UploadedBy)

	stats := res.Stats
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 3, stats.New)
	assert.Equal(t, 11, stats.TotalRequested)
	assert.True(t, stats.RemovalFeeTotal.Equal(decimal.RequireFromString("6.75")), "fee %s", stats.RemovalFeeTotal)
	assert.Equal(t, 2, stats.Aging.UpTo7Days)
	assert.Equal(t, 1, stats.Aging.Over30Days)
	assert.Equal(t, 3, stats.DistinctSkus)

	orders, err := svc.ListOrders(context.Background(), "store-1", OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	for _, o := range orders {
		assert.NotZero(t, o.ID)
		assert.Equal(t, "store-1", o.StoreId)
		assert.Equal(t, res.Spreadsheet.ID, o.SpreadsheetId)
		assert.Equal(t, models.ProcessingStatusNew, o.ProcessingStatus)
		assert.Equal(t, 1, o.Version)
	}

	sheets, err := svc.Spreadsheets(context.Background(), "store-1")
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, 3, sheets[0].RowCount)
	assert.Equal(t, []string{models.EventSpreadsheetIngested}, eventTypes(repo))
}

func TestIngestTrackingFileMatchesLines(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)

	res := ingest(t, svc, "store-1", trackingCSV, parser.FileTypeTracking)
	assert.Equal(t, 5, res.Inserted)
	assert.Equal(t, 4, res.Matched)
	assert.Equal(t, 1, res.Unmatched)

	a := findLine(t, svc, "store-1", "ORD-1", "SKU-A")
	assert.Equal(t, "1Z001", a.TrackingNumber)
	assert.Equal(t, "UPS", a.Carrier)
	assert.Equal(t, 5, a.ShippedQuantity)

	c := findLine(t, svc, "store-1", "ORD-2", "SKU-C")
	assert.Equal(t, "7777", c.TrackingNumber)
	assert.Equal(t, models.StringList{"7777", "8888"}, c.TrackingNumbers)
	assert.Equal(t, 4, c.ShippedQuantity)

	// the same file again changes nothing on the lines
	ingest(t, svc, "store-1", trackingCSV, parser.FileTypeTracking)
	c = findLine(t, svc, "store-1", "ORD-2", "SKU-C")
	assert.Equal(t, 4, c.ShippedQuantity)
	assert.Len(t, c.TrackingNumbers, 2)

	tracking, err := svc.Tracking(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Len(t, tracking, 10)

	groups, err := svc.TrackingGroups(context.Background(), "store-1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "1Z001", groups[0].TrackingNumber)
	assert.Len(t, groups[0].Orders, 2)
	assert.Equal(t, 7, groups[0].ExpectedUnits)
}

func TestIngestRejectsEmptyInput(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	_, err := svc.Ingest(context.Background(), IngestRequest{StoreId: "store-1", Result: &parser.Result{Type: parser.FileTypeRemoval}})
	assert.ErrorIs(t, err, ErrNothingToIngest)

	_, err = svc.Ingest(context.Background(), IngestRequest{Result: &parser.Result{}})
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestProcessOrderLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo)
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	line := findLine(t, svc, "store-1", "ORD-1", "SKU-A")
	ctx := utils.SetUsernameInContext(context.Background(), "alice")

	units := []UnitInput{{Quantity: 4, Condition: models.UnitConditionSellable}, {Quantity: 1, Condition: models.UnitConditionMissing}}
	updated, err := svc.ProcessOrder(ctx, "store-1", line.ID, OrderPatch{Units: &units})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusProcessing, updated.ProcessingStatus)
	assert.Equal(t, 4, updated.ActualReturnQty)
	assert.Equal(t, 2, updated.Version)
	require.Len(t, updated.ReceivedUnits, 2)
	assert.NotZero(t, updated.ReceivedUnits[0].ID)

	completed := models.ProcessingStatusCompleted
	done, err := svc.ProcessOrder(ctx, "store-1", line.ID, OrderPatch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, done.ProcessingStatus)
	assert.Equal(t, "alice", done.CompletedBy)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, 3, done.Version)

	records, err := svc.CompletedOrders(context.Background(), "store-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, line.ID, records[0].RemovalOrderId)
	assert.Equal(t, 4, records[0].ActualReturnQty)
	assert.Equal(t, "alice", records[0].ProcessedBy)

	// repeating the request is accepted and changes nothing
	again, err := svc.ProcessOrder(ctx, "store-1", line.ID, OrderPatch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, 3, again.Version)
	assert.Equal(t, []string{models.EventSpreadsheetIngested, models.EventOrderCompleted}, eventTypes(repo))

	processing := models.ProcessingStatusProcessing
	_, err = svc.ProcessOrder(ctx, "store-1", line.ID, OrderPatch{Status: &processing})
	assert.ErrorIs(t, err, ErrOrderFinalized)

	stats, err := svc.Stats(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 4, stats.TotalReceived)

	queue, err := svc.WorkingQueue(ctx, "store-1")
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "ORD-2", queue[0].OrderId, "oldest request first")
}

func TestProcessOrderCancel(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo)
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	line := findLine(t, svc, "store-1", "ORD-2", "SKU-C")

	cancelled := models.ProcessingStatusCancelled
	notes := []string{"  seller withdrew  ", ""}
	out, err := svc.ProcessOrder(context.Background(), "store-1", line.ID, OrderPatch{Status: &cancelled, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCancelled, out.ProcessingStatus)
	assert.Equal(t, models.StringList{"seller withdrew"}, out.Notes)
	assert.Contains(t, eventTypes(repo), models.EventOrderCancelled)
}

func TestProcessOrderRepeatedUnitsPatchIsNoop(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo)
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	line := findLine(t, svc, "store-1", "ORD-1", "SKU-A")
	ctx := context.Background()

	units := []UnitInput{{Quantity: 3, Condition: models.UnitConditionSellable}, {Quantity: 2, Condition: models.UnitConditionMissing}}
	notes := []string{"box damaged"}
	patch := OrderPatch{Units: &units, Notes: &notes}
	first, err := svc.ProcessOrder(ctx, "store-1", line.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusProcessing, first.ProcessingStatus)
	assert.Equal(t, 3, first.ActualReturnQty)
	events := eventTypes(repo)

	second, err := svc.ProcessOrder(ctx, "store-1", line.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, 3, second.ActualReturnQty)
	assert.Equal(t, models.ProcessingStatusProcessing, second.ProcessingStatus)
	assert.Equal(t, models.StringList{"box damaged"}, second.Notes)
	assert.Len(t, second.ReceivedUnits, 2)
	assert.Equal(t, events, eventTypes(repo))

	stored := findLine(t, svc, "store-1", "ORD-1", "SKU-A")
	assert.Equal(t, first.Version, stored.Version)
	assert.Equal(t, 3, stored.ActualReturnQty)
}

func TestProcessOrderErrors(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository(), func(o *Options) { o.StrictCompletion = true })
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	line := findLine(t, svc, "store-1", "ORD-1", "SKU-A")
	ctx := context.Background()

	_, err := svc.ProcessOrder(ctx, "store-1", 9999, OrderPatch{})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	stale := 7
	qty := 1
	_, err = svc.ProcessOrder(ctx, "store-1", line.ID, OrderPatch{ActualReturnQty: &qty, ExpectedVersion: &stale})
	assert.ErrorIs(t, err, ErrVersionConflict)

	completed := models.ProcessingStatusCompleted
	_, err = svc.ProcessOrder(ctx, "store-1", line.ID, OrderPatch{ActualReturnQty: &qty, Status: &completed})
	assert.ErrorIs(t, err, ErrIncompleteQuantity)

	full := 5
	out, err := svc.ProcessOrder(ctx, "store-1", line.ID, OrderPatch{ActualReturnQty: &full, Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, out.ProcessingStatus)
}

func TestProcessOrderLine(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	qty := 2
	ctx := context.Background()

	_, err := svc.ProcessOrderLine(ctx, "store-1", "ORD-1", "", OrderPatch{ActualReturnQty: &qty})
	assert.ErrorIs(t, err, ErrAmbiguousOrder)

	_, err = svc.ProcessOrderLine(ctx, "store-1", "ORD-404", "", OrderPatch{ActualReturnQty: &qty})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	out, err := svc.ProcessOrderLine(ctx, "store-1", "ORD-1", "SKU-B", OrderPatch{ActualReturnQty: &qty})
	require.NoError(t, err)
	assert.Equal(t, "SKU-B", out.Sku)
	assert.Equal(t, 2, out.ActualReturnQty)

	out, err = svc.ProcessOrderLine(ctx, "store-1", "ORD-2", "", OrderPatch{ActualReturnQty: &qty})
	require.NoError(t, err)
	assert.Equal(t, "SKU-C", out.Sku)
}

type flakyRepository struct {
	*MemoryRepository
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyRepository) SaveOrder(ctx context.Context, order *models.RemovalOrder, expectedVersion int) error {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return errors.New("connection reset by peer")
	}
	return f.MemoryRepository.SaveOrder(ctx, order, expectedVersion)
}

func TestProcessOrderRetriesWrites(t *testing.T) {
	repo := &flakyRepository{MemoryRepository: NewMemoryRepository()}
	svc := newTestService(t, repo)
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	line := findLine(t, svc, "store-1", "ORD-1", "SKU-A")

	repo.failures.Store(2)
	qty := 3
	out, err := svc.ProcessOrder(context.Background(), "store-1", line.ID, OrderPatch{ActualReturnQty: &qty})
	require.NoError(t, err)
	assert.Equal(t, 3, out.ActualReturnQty)
	assert.Equal(t, int32(3), repo.calls.Load())

	repo.failures.Store(3)
	repo.calls.Store(0)
	qty = 4
	_, err = svc.ProcessOrder(context.Background(), "store-1", line.ID, OrderPatch{ActualReturnQty: &qty})
	require.Error(t, err)
	assert.Equal(t, int32(3), repo.calls.Load())

	stored, err := svc.GetOrder(context.Background(), "store-1", line.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ActualReturnQty)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxRetries: 5}.Do(context.Background(), "test", func(int) error {
		calls++
		return ErrVersionConflict
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryPolicy{MaxRetries: 5, Backoff: time.Hour}.Do(ctx, "test", func(int) error {
		calls++
		cancel()
		return errors.New("timeout")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestStoresAreIsolated(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	line := findLine(t, svc, "store-1", "ORD-1", "SKU-A")

	orders, err := svc.ListOrders(context.Background(), "store-2", OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	qty := 1
	_, err = svc.ProcessOrder(context.Background(), "store-2", line.ID, OrderPatch{ActualReturnQty: &qty})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	require.NoError(t, svc.Clear(context.Background(), "store-2"))
	orders, err = svc.ListOrders(context.Background(), "store-1", OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestClearEmptiesStore(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo)
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	ingest(t, svc, "store-1", trackingCSV, parser.FileTypeTracking)

	require.NoError(t, svc.Clear(context.Background(), "store-1"))

	snap, err := svc.Snapshot(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Orders)
	assert.Empty(t, snap.Tracking)
	assert.Equal(t, 0, snap.Stats.TotalOrders)

	fresh, err := svc.Refresh(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Empty(t, fresh.Orders)

	sheets, err := svc.Spreadsheets(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Empty(t, sheets)
	assert.Contains(t, eventTypes(repo), models.EventStoreCleared)
}

func TestConcurrentUpdatesOnOneStore(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	orders, err := svc.ListOrders(context.Background(), "store-1", OrderFilter{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, len(orders)*5)
	for _, o := range orders {
		for n := 1; n <= 5; n++ {
			wg.Add(1)
			go func(id, qty int) {
				defer wg.Done()
				_, err := svc.ProcessOrder(context.Background(), "store-1", id, OrderPatch{ActualReturnQty: &qty})
				errs <- err
			}(o.ID, n)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := svc.Stats(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processing)
	for _, o := range orders {
		stored, err := svc.GetOrder(context.Background(), "store-1", o.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stored.Version, 2)
		assert.Equal(t, models.ProcessingStatusProcessing, stored.ProcessingStatus)
	}
}

type memoryStatsCache struct {
	mu          sync.Mutex
	stats       map[string]Stats
	invalidated int
}

func (c *memoryStatsCache) Get(_ context.Context, storeId string) (*Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[storeId]
	return &s, ok
}

func (c *memoryStatsCache) Set(_ context.Context, storeId string, s Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[storeId] = s
}

func (c *memoryStatsCache) Invalidate(_ context.Context, storeId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stats, storeId)
	c.invalidated++
}

func TestStatsCacheIsInvalidatedOnWrite(t *testing.T) {
	cache := &memoryStatsCache{stats: map[string]Stats{}}
	svc := newTestService(t, NewMemoryRepository(), func(o *Options) { o.Cache = cache })
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)

	first, err := svc.Stats(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, 3, first.New)
	assert.Contains(t, cache.stats, "store-1")

	line := findLine(t, svc, "store-1", "ORD-1", "SKU-A")
	qty := 2
	_, err = svc.ProcessOrder(context.Background(), "store-1", line.ID, OrderPatch{ActualReturnQty: &qty})
	require.NoError(t, err)
	assert.NotContains(t, cache.stats, "store-1")

	second, err := svc.Stats(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.New)
	assert.Equal(t, 1, second.Processing)
}

func TestStatsCacheIsFilledFromFreshLoad(t *testing.T) {
	repo := NewMemoryRepository()
	cache := &memoryStatsCache{stats: map[string]Stats{}}
	withCache := func(o *Options) { o.Cache = cache }
	writer := newTestService(t, repo, withCache)
	reader := newTestService(t, repo, withCache)
	ctx := context.Background()

	ingest(t, writer, "store-1", removalCSV, parser.FileTypeRemoval)
	// reader now holds a snapshot the writer is about to outdate
	line := findLine(t, reader, "store-1", "ORD-1", "SKU-A")

	cancelled := models.ProcessingStatusCancelled
	_, err := writer.ProcessOrder(ctx, "store-1", line.ID, OrderPatch{Status: &cancelled})
	require.NoError(t, err)

	fromReader, err := reader.Stats(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, 1, fromReader.Cancelled)
	assert.Equal(t, 2, fromReader.New)

	fromWriter, err := writer.Stats(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, 1, fromWriter.Cancelled)
	assert.Equal(t, 2, fromWriter.New)
	require.Contains(t, cache.stats, "store-1")
	assert.Equal(t, 1, cache.stats["store-1"].Cancelled)
}

func TestStatsCacheEntryExpiresWithTheDay(t *testing.T) {
	cache := &memoryStatsCache{stats: map[string]Stats{}}
	now := testNow
	svc := newTestService(t, NewMemoryRepository(), func(o *Options) {
		o.Cache = cache
		o.Now = func() time.Time { return now }
	})
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	ctx := context.Background()

	first, err := svc.Stats(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Aging.UpTo7Days)
	assert.Equal(t, 1, first.Aging.Over30Days)

	now = testNow.Add(7 * 24 * time.Hour)
	later, err := svc.Stats(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, 0, later.Aging.UpTo7Days)
	assert.Equal(t, 2, later.Aging.Days8To14)
	assert.Equal(t, now, cache.stats["store-1"].ComputedAt)
}

func TestLookupAndDailySummary(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	ingest(t, svc, "store-1", trackingCSV, parser.FileTypeTracking)
	ctx := context.Background()

	byTracking, err := svc.Lookup(ctx, "store-1", "1z001")
	require.NoError(t, err)
	assert.Len(t, byTracking, 2)
	bySecondShipment, err := svc.Lookup(ctx, "store-1", "8888")
	require.NoError(t, err)
	assert.Len(t, bySecondShipment, 1)
	bySku, err := svc.Lookup(ctx, "store-1", "sku-b")
	require.NoError(t, err)
	require.Len(t, bySku, 1)
	assert.Equal(t, "ORD-1", bySku[0].OrderId)
	byFnsku, err := svc.Lookup(ctx, "store-1", " X00C ")
	require.NoError(t, err)
	require.Len(t, byFnsku, 1)
	assert.Equal(t, "SKU-C", byFnsku[0].Sku)
	none, err := svc.Lookup(ctx, "store-1", "X00")
	require.NoError(t, err)
	assert.Empty(t, none)

	b := findLine(t, svc, "store-1", "ORD-1", "SKU-B")
	units := []UnitInput{{Quantity: 1, Condition: models.UnitConditionSellable}, {Quantity: 1, Condition: models.UnitConditionMissing}}
	completed := models.ProcessingStatusCompleted
	_, err = svc.ProcessOrder(ctx, "store-1", b.ID, OrderPatch{Units: &units, Status: &completed})
	require.NoError(t, err)

	w, err := ParseWindow(RangeCustom, "2024-03-18", "2024-03-18", testNow)
	require.NoError(t, err)
	summary, err := svc.DailySummary(ctx, "store-1", w)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Orders)
	assert.Equal(t, 7, summary.ExpectedUnits)
	assert.Equal(t, 1, summary.MissingUnits)
	require.Len(t, summary.QueueGroups, 1)
	assert.Empty(t, summary.CompletedGroups)

	a := findLine(t, svc, "store-1", "ORD-1", "SKU-A")
	qty := 5
	_, err = svc.ProcessOrder(ctx, "store-1", a.ID, OrderPatch{ActualReturnQty: &qty, Status: &completed})
	require.NoError(t, err)
	summary, err = svc.DailySummary(ctx, "store-1", w)
	require.NoError(t, err)
	assert.Empty(t, summary.QueueGroups)
	require.Len(t, summary.CompletedGroups, 1)
	assert.Equal(t, "1Z001", summary.CompletedGroups[0].TrackingNumber)
}

func TestExportOrdersXLSX(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	ingest(t, svc, "store-1", removalCSV, parser.FileTypeRemoval)
	orders, err := svc.ListOrders(context.Background(), "store-1", OrderFilter{})
	require.NoError(t, err)

	data, err := ExportOrdersXLSX(orders)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data[:2]), "xlsx is a zip archive")
	assert.Greater(t, len(data), 100, fmt.Sprintf("got %d bytes", len(data)))
}

func TestInvalidateReloadsChangesFromOtherInstance(t *testing.T) {
	repo := NewMemoryRepository()
	writer := newTestService(t, repo)
	reader := newTestService(t, repo)
	ctx := context.Background()

	ingest(t, writer, "store-1", removalCSV, parser.FileTypeRemoval)
	line := findLine(t, reader, "store-1", "ORD-1", "SKU-A")
	assert.Equal(t, 0, line.ActualReturnQty)

	qty := 4
	_, err := writer.ProcessOrder(ctx, "store-1", line.ID, OrderPatch{ActualReturnQty: &qty})
	require.NoError(t, err)

	assert.Equal(t, 0, findLine(t, reader, "store-1", "ORD-1", "SKU-A").ActualReturnQty)
	reader.Invalidate("store-1")
	assert.Equal(t, 4, findLine(t, reader, "store-1", "ORD-1", "SKU-A").ActualReturnQty)
}
