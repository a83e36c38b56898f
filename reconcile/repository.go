package reconcile

import (
	"context"

	"github.com/fr33d0m21/pull/models"
)

// Repository is the durable side of the reconciliation store. Every call is
// scoped by store id; implementations never touch rows of another store.
type Repository interface {
	LoadOrders(ctx context.Context, storeId string) ([]models.RemovalOrder, error)
	GetOrder(ctx context.Context, storeId string, id int) (*models.RemovalOrder, error)
	LoadTracking(ctx context.Context, storeId string) ([]models.TrackingEntry, error)
	ListSpreadsheets(ctx context.Context, storeId string) ([]models.Spreadsheet, error)
	ListCompleted(ctx context.Context, storeId string) ([]models.CompletedOrder, error)

	// InsertRemovalBatch stores the batch record and its orders atomically
	// and assigns the generated ids to orders.
	InsertRemovalBatch(ctx context.Context, sheet *models.Spreadsheet, orders []models.RemovalOrder) error
	// InsertTrackingBatch stores the batch, its entries and the tracking
	// fields of the orders they matched, atomically.
	InsertTrackingBatch(ctx context.Context, sheet *models.Spreadsheet, entries []models.TrackingEntry, matched []models.RemovalOrder) error

	// SaveOrder overwrites the processing fields of order. With
	// expectedVersion > 0 the write only applies to that stored version.
	SaveOrder(ctx context.Context, order *models.RemovalOrder, expectedVersion int) error
	// ReplaceUnits swaps the received units of an order and returns the stored units.
	ReplaceUnits(ctx context.Context, storeId string, orderId int, units []models.ReceivedUnit) ([]models.ReceivedUnit, error)
	// UpsertCompletedOrder writes the terminal record, keyed by removal order id.
	UpsertCompletedOrder(ctx context.Context, rec *models.CompletedOrder) error
	AppendEvent(ctx context.Context, ev *models.ReconciliationEvent) error

	// ClearStore deletes every order, unit, tracking entry, batch and
	// completed record of the store.
	ClearStore(ctx context.Context, storeId string) error
}
