package reconcile

import "errors"

var (
	ErrStoreRequired      = errors.New("store id is required")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderFinalized     = errors.New("order is already completed or cancelled")
	ErrInvalidTransition  = errors.New("invalid processing status transition")
	ErrVersionConflict    = errors.New("order was modified by someone else, reload and try again")
	ErrVersionRequired    = errors.New("expected_version is required")
	ErrIncompleteQuantity = errors.New("received quantity does not match the expected quantity")
	ErrAmbiguousOrder     = errors.New("order id matches more than one line, specify the sku")
	ErrInvalidPatch       = errors.New("invalid order update")
	ErrNothingToIngest    = errors.New("no rows to ingest")
	ErrInvalidWindow      = errors.New("invalid summary window")
)

// isPermanent reports errors a retry cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrInvalidPatch) ||
		errors.Is(err, ErrStoreRequired)
}
