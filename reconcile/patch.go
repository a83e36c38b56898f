package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fr33d0m21/pull/models"
)

// OrderPatch lists the fields an operator may change on an order line.
// Nil fields are left as they are; slices replace the stored value.
type OrderPatch struct {
	Status          *models.ProcessingStatus `json:"processing_status,omitempty"`
	ActualReturnQty *int                     `json:"actual_return_qty,omitempty"`
	Units           *[]UnitInput             `json:"units,omitempty"`
	Notes           *[]string                `json:"notes,omitempty"`
	TrackingNumbers *[]string                `json:"tracking_numbers,omitempty"`
	Carriers        *[]string                `json:"carriers,omitempty"`
	ExpectedVersion *int                     `json:"expected_version,omitempty"`
}

// UnitInput is one received unit group in a patch.
type UnitInput struct {
	Quantity      int                  `json:"quantity"`
	Condition     models.UnitCondition `json:"condition"`
	Notes         string               `json:"notes,omitempty"`
	Images        []string             `json:"images,omitempty"`
	Discrepancies []models.Discrepancy `json:"discrepancies,omitempty"`
}

// DecodePatch reads a JSON patch, rejecting unknown fields.
func DecodePatch(r io.Reader) (*OrderPatch, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var p OrderPatch
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodePatchBytes is DecodePatch for an in-memory body.
func DecodePatchBytes(b []byte) (*OrderPatch, error) {
	return DecodePatch(bytes.NewReader(b))
}

func (p *OrderPatch) Validate() error {
	if p.Status != nil && !p.Status.IsValid() {
		return fmt.Errorf("%w: unknown processing status %q", ErrInvalidPatch, *p.Status)
	}
	if p.Units != nil {
		for i, u := range *p.Units {
			if !u.Condition.IsValid() {
				return fmt.Errorf("%w: unit %d has no valid condition", ErrInvalidPatch, i+1)
			}
			for _, d := range u.Discrepancies {
				if !d.Type.IsValid() {
					return fmt.Errorf("%w: unit %d has an unknown discrepancy type", ErrInvalidPatch, i+1)
				}
			}
		}
	}
	if p.ExpectedVersion != nil && *p.ExpectedVersion < 1 {
		return fmt.Errorf("%w: expected_version must be positive", ErrInvalidPatch)
	}
	return nil
}

// IsEmpty reports a patch that changes nothing.
func (p *OrderPatch) IsEmpty() bool {
	return p.Status == nil && p.ActualReturnQty == nil && p.Units == nil &&
		p.Notes == nil && p.TrackingNumbers == nil && p.Carriers == nil
}

// applyOptions carries the policies applyPatch enforces.
type applyOptions struct {
	strictCompletion bool
	requireVersion   bool
	user             string
	now              time.Time
}

// applyResult is the outcome of applying a patch to the current order.
type applyResult struct {
	order        models.RemovalOrder
	changed      bool
	unitsChanged bool
	// expectedVersion is the stored version the write must match, 0 for none.
	expectedVersion int
}

var allowedTransitions = map[models.ProcessingStatus][]models.ProcessingStatus{
	models.ProcessingStatusNew:        {models.ProcessingStatusProcessing, models.ProcessingStatusCompleted, models.ProcessingStatusCancelled},
	models.ProcessingStatusProcessing: {models.ProcessingStatusCompleted, models.ProcessingStatusCancelled},
}

func canTransition(from, to models.ProcessingStatus) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// applyPatch computes the next state of current under patch. current is not
// modified. A patch that changes nothing returns changed=false and no error,
// even on a terminal order, so repeating a request is harmless.
func applyPatch(current models.RemovalOrder, patch OrderPatch, opts applyOptions) (applyResult, error) {
	if err := patch.Validate(); err != nil {
		return applyResult{}, err
	}
	next := current.Clone()
	res := applyResult{}

	if patch.Units != nil {
		units := make([]models.ReceivedUnit, 0, len(*patch.Units))
		for _, in := range *patch.Units {
			units = append(units, unitFromInput(current, in))
		}
		next.ReceivedUnits = units
		next.ActualReturnQty = receivedQuantity(units)
		res.unitsChanged = !sameUnits(current.ReceivedUnits, units)
	} else if patch.ActualReturnQty != nil {
		next.ActualReturnQty = max(*patch.ActualReturnQty, 0)
	}
	if patch.Notes != nil {
		next.Notes = cleanList(*patch.Notes)
	}
	if patch.TrackingNumbers != nil {
		next.TrackingNumbers = cleanList(*patch.TrackingNumbers)
		if len(next.TrackingNumbers) > 0 && next.TrackingNumber == "" {
			next.TrackingNumber = next.TrackingNumbers[0]
		}
	}
	if patch.Carriers != nil {
		next.Carriers = cleanList(*patch.Carriers)
		if len(next.Carriers) > 0 && next.Carrier == "" {
			next.Carrier = next.Carriers[0]
		}
	}

	target := current.ProcessingStatus
	if patch.Status != nil {
		target = *patch.Status
	}
	// recording anything on a new line starts processing it
	if target == models.ProcessingStatusNew && current.ProcessingStatus == models.ProcessingStatusNew &&
		(next.ActualReturnQty > 0 || len(next.ReceivedUnits) > 0) {
		target = models.ProcessingStatusProcessing
	}
	next.ProcessingStatus = target

	if !orderChanged(current, next) && !res.unitsChanged {
		res.order = current.Clone()
		return res, nil
	}
	if current.ProcessingStatus.IsTerminal() {
		return applyResult{}, ErrOrderFinalized
	}
	if !canTransition(current.ProcessingStatus, target) {
		return applyResult{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.ProcessingStatus, target)
	}
	if patch.ExpectedVersion != nil {
		if *patch.ExpectedVersion != current.Version {
			return applyResult{}, ErrVersionConflict
		}
		res.expectedVersion = current.Version
	} else if opts.requireVersion {
		return applyResult{}, ErrVersionRequired
	}
	if target == models.ProcessingStatusCompleted && opts.strictCompletion && next.ActualReturnQty != current.ExpectedQuantity() {
		return applyResult{}, fmt.Errorf("%w: received %d, expected %d", ErrIncompleteQuantity, next.ActualReturnQty, current.ExpectedQuantity())
	}
	if target.IsTerminal() {
		at := opts.now
		next.CompletedAt = &at
		next.CompletedBy = opts.user
	}
	next.Version = current.Version + 1
	res.order = next
	res.changed = true
	return res, nil
}

func unitFromInput(order models.RemovalOrder, in UnitInput) models.ReceivedUnit {
	u := models.ReceivedUnit{
		StoreId:        order.StoreId,
		RemovalOrderId: order.ID,
		Quantity:       max(in.Quantity, 0),
		Condition:      in.Condition,
		Notes:          strings.TrimSpace(in.Notes),
		Images:         cleanList(in.Images),
	}
	if len(in.Discrepancies) > 0 {
		u.Discrepancies = make(models.DiscrepancyList, len(in.Discrepancies))
		for i, d := range in.Discrepancies {
			d.Quantity = max(d.Quantity, 0)
			d.Images = append([]string(nil), d.Images...)
			u.Discrepancies[i] = d
		}
	}
	return u
}

// receivedQuantity sums units that physically arrived.
func receivedQuantity(units []models.ReceivedUnit) int {
	total := 0
	for _, u := range units {
		if u.Condition != models.UnitConditionMissing {
			total += u.Quantity
		}
	}
	return total
}

func orderChanged(a, b models.RemovalOrder) bool {
	return a.ProcessingStatus != b.ProcessingStatus ||
		a.ActualReturnQty != b.ActualReturnQty ||
		a.TrackingNumber != b.TrackingNumber ||
		a.Carrier != b.Carrier ||
		!a.Notes.Equal(b.Notes) ||
		!a.TrackingNumbers.Equal(b.TrackingNumbers) ||
		!a.Carriers.Equal(b.Carriers)
}

// sameUnits compares unit content, ignoring ids and timestamps.
func sameUnits(a, b []models.ReceivedUnit) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Quantity != y.Quantity || x.Condition != y.Condition || x.Notes != y.Notes ||
			!x.Images.Equal(y.Images) || len(x.Discrepancies) != len(y.Discrepancies) {
			return false
		}
		for j := range x.Discrepancies {
			dx, dy := x.Discrepancies[j], y.Discrepancies[j]
			if dx.Type != dy.Type || dx.Description != dy.Description || dx.Quantity != dy.Quantity ||
				!models.StringList(dx.Images).Equal(dy.Images) {
				return false
			}
		}
	}
	return true
}

// cleanList trims entries and drops blanks.
func cleanList(in []string) models.StringList {
	out := models.StringList{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
