package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/fr33d0m21/pull/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusPtr(s models.ProcessingStatus) *models.ProcessingStatus { return &s }

func intPtr(v int) *int { return &v }

func baseOrder(status models.ProcessingStatus) models.RemovalOrder {
	return models.RemovalOrder{
		ID:                1,
		StoreId:           "store-1",
		OrderId:           "ORD-1",
		Sku:               "SKU-A",
		RequestedQuantity: 5,
		ProcessingStatus:  status,
		Version:           1,
	}
}

func TestApplyPatchTransitions(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		from    models.ProcessingStatus
		patch   OrderPatch
		want    models.ProcessingStatus
		changed bool
		err     error
	}{
		{"quantity starts processing", models.ProcessingStatusNew, OrderPatch{ActualReturnQty: intPtr(2)}, models.ProcessingStatusProcessing, true, nil},
		{"zero quantity keeps new", models.ProcessingStatusNew, OrderPatch{ActualReturnQty: intPtr(0)}, models.ProcessingStatusNew, false, nil},
		{"new to completed", models.ProcessingStatusNew, OrderPatch{Status: statusPtr(models.ProcessingStatusCompleted)}, models.ProcessingStatusCompleted, true, nil},
		{"processing to cancelled", models.ProcessingStatusProcessing, OrderPatch{Status: statusPtr(models.ProcessingStatusCancelled)}, models.ProcessingStatusCancelled, true, nil},
		{"processing back to new", models.ProcessingStatusProcessing, OrderPatch{Status: statusPtr(models.ProcessingStatusNew)}, "", false, ErrInvalidTransition},
		{"completed is final", models.ProcessingStatusCompleted, OrderPatch{ActualReturnQty: intPtr(3)}, "", false, ErrOrderFinalized},
		{"cancelled to completed", models.ProcessingStatusCancelled, OrderPatch{Status: statusPtr(models.ProcessingStatusCompleted)}, "", false, ErrOrderFinalized},
		{"same status on final order", models.ProcessingStatusCancelled, OrderPatch{Status: statusPtr(models.ProcessingStatusCancelled)}, models.ProcessingStatusCancelled, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := applyPatch(baseOrder(tt.from), tt.patch, applyOptions{now: now, user: "bob"})
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.order.ProcessingStatus)
			assert.Equal(t, tt.changed, res.changed)
			if tt.changed {
				assert.Equal(t, 2, res.order.Version)
			} else {
				assert.Equal(t, 1, res.order.Version)
			}
			if tt.changed && tt.want.IsTerminal() {
				require.NotNil(t, res.order.CompletedAt)
				assert.Equal(t, "bob", res.order.CompletedBy)
			}
		})
	}
}

func TestApplyPatchClampsQuantity(t *testing.T) {
	res, err := applyPatch(baseOrder(models.ProcessingStatusProcessing), OrderPatch{ActualReturnQty: intPtr(-4)}, applyOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.order.ActualReturnQty)

	units := []UnitInput{{Quantity: -2, Condition: models.UnitConditionSellable}, {Quantity: 3, Condition: models.UnitConditionUnsellable}}
	res, err = applyPatch(baseOrder(models.ProcessingStatusNew), OrderPatch{Units: &units, ActualReturnQty: intPtr(99)}, applyOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.order.ActualReturnQty, "units decide the received quantity")
	assert.Equal(t, 0, res.order.ReceivedUnits[0].Quantity)
	assert.True(t, res.unitsChanged)
	assert.Equal(t, models.ProcessingStatusProcessing, res.order.ProcessingStatus)
}

func TestApplyPatchLeavesCurrentUntouched(t *testing.T) {
	current := baseOrder(models.ProcessingStatusNew)
	current.Notes = models.StringList{"first"}
	notes := []string{"second"}
	_, err := applyPatch(current, OrderPatch{Notes: &notes}, applyOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"first"}, current.Notes)
	assert.Equal(t, 1, current.Version)
}

func TestApplyPatchTrackingLists(t *testing.T) {
	numbers := []string{"1Z1", " 1Z2 "}
	carriers := []string{"UPS"}
	res, err := applyPatch(baseOrder(models.ProcessingStatusNew), OrderPatch{TrackingNumbers: &numbers, Carriers: &carriers}, applyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "1Z1", res.order.TrackingNumber)
	assert.Equal(t, "UPS", res.order.Carrier)
	assert.Equal(t, models.StringList{"1Z1", "1Z2"}, res.order.TrackingNumbers)
	assert.Equal(t, models.ProcessingStatusNew, res.order.ProcessingStatus)
}

func TestApplyPatchVersionChecks(t *testing.T) {
	current := baseOrder(models.ProcessingStatusNew)

	_, err := applyPatch(current, OrderPatch{ActualReturnQty: intPtr(1)}, applyOptions{requireVersion: true})
	assert.ErrorIs(t, err, ErrVersionRequired)

	_, err = applyPatch(current, OrderPatch{ActualReturnQty: intPtr(1), ExpectedVersion: intPtr(2)}, applyOptions{})
	assert.ErrorIs(t, err, ErrVersionConflict)

	res, err := applyPatch(current, OrderPatch{ActualReturnQty: intPtr(1), ExpectedVersion: intPtr(1)}, applyOptions{requireVersion: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.expectedVersion)

	// a patch that changes nothing never conflicts
	res, err = applyPatch(current, OrderPatch{ActualReturnQty: intPtr(0), ExpectedVersion: intPtr(5)}, applyOptions{requireVersion: true})
	require.NoError(t, err)
	assert.False(t, res.changed)
}

func TestApplyPatchStrictCompletion(t *testing.T) {
	current := baseOrder(models.ProcessingStatusProcessing)
	current.ShippedQuantity = 4
	opts := applyOptions{strictCompletion: true}

	_, err := applyPatch(current, OrderPatch{Status: statusPtr(models.ProcessingStatusCompleted), ActualReturnQty: intPtr(5)}, opts)
	assert.ErrorIs(t, err, ErrIncompleteQuantity)

	res, err := applyPatch(current, OrderPatch{Status: statusPtr(models.ProcessingStatusCompleted), ActualReturnQty: intPtr(4)}, opts)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, res.order.ProcessingStatus)

	// cancelling ignores quantities
	_, err = applyPatch(current, OrderPatch{Status: statusPtr(models.ProcessingStatusCancelled)}, opts)
	require.NoError(t, err)
}

func TestDecodePatch(t *testing.T) {
	p, err := DecodePatch(strings.NewReader(`{"processing_status":"completed","actual_return_qty":3,"units":[{"quantity":3,"condition":"Sellable"}]}`))
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, *p.Status)
	assert.Equal(t, 3, *p.ActualReturnQty)
	require.Len(t, *p.Units, 1)

	_, err = DecodePatch(strings.NewReader(`{"actual_return_qty":3,"sku":"OTHER"}`))
	assert.ErrorIs(t, err, ErrInvalidPatch)

	_, err = DecodePatch(strings.NewReader(`{"processing_status":"shipped"}`))
	assert.ErrorIs(t, err, ErrInvalidPatch)

	_, err = DecodePatch(strings.NewReader(`{"units":[{"quantity":1}]}`))
	assert.ErrorIs(t, err, ErrInvalidPatch)

	p, err = DecodePatchBytes([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
}
