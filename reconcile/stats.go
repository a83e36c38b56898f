package reconcile

import (
	"time"

	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/parser"
	"github.com/shopspring/decimal"
)

// AgingBuckets counts working orders by days since their request date.
type AgingBuckets struct {
	UpTo7Days    int `json:"up_to_7_days"`
	Days8To14    int `json:"days_8_to_14"`
	Days15To30   int `json:"days_15_to_30"`
	Over30Days   int `json:"over_30_days"`
	UnknownDates int `json:"unknown_dates"`
}

// Stats summarizes one store. It is always derived from the orders, never
// edited directly.
type Stats struct {
	TotalOrders     int             `json:"total_orders"`
	New             int             `json:"new"`
	Processing      int             `json:"processing"`
	Completed       int             `json:"completed"`
	Cancelled       int             `json:"cancelled"`
	TotalRequested  int             `json:"total_requested"`
	TotalExpected   int             `json:"total_expected"`
	TotalReceived   int             `json:"total_received"`
	RemovalFeeTotal decimal.Decimal `json:"removal_fee_total"`
	Mismatches      int             `json:"mismatches"`
	MissingLines    int             `json:"missing_lines"`
	DistinctSkus    int             `json:"distinct_skus"`
	Aging           AgingBuckets    `json:"aging"`
	ComputedAt      time.Time       `json:"computed_at"`
}

// ComputeStats derives Stats from orders as of now.
func ComputeStats(orders []models.RemovalOrder, now time.Time) Stats {
	s := Stats{RemovalFeeTotal: decimal.Zero, ComputedAt: now}
	skus := map[string]struct{}{}
	for _, o := range orders {
		s.TotalOrders++
		switch o.ProcessingStatus {
		case models.ProcessingStatusNew:
			s.New++
		case models.ProcessingStatusProcessing:
			s.Processing++
		case models.ProcessingStatusCompleted:
			s.Completed++
		case models.ProcessingStatusCancelled:
			s.Cancelled++
		}
		s.TotalRequested += o.RequestedQuantity
		s.TotalExpected += o.ExpectedQuantity()
		s.TotalReceived += o.ActualReturnQty
		s.RemovalFeeTotal = s.RemovalFeeTotal.Add(o.RemovalFee)
		if o.HasMismatch() {
			s.Mismatches++
		}
		if o.Sku != "" {
			skus[o.Sku] = struct{}{}
		}
		if !o.ProcessingStatus.IsWorking() {
			continue
		}
		if o.ActualReturnQty < o.RequestedQuantity {
			s.MissingLines++
		}
		s.Aging.add(o.RequestDate, now)
	}
	s.DistinctSkus = len(skus)
	return s
}

func (a *AgingBuckets) add(requestDate string, now time.Time) {
	t, ok := parser.ParseDate(requestDate)
	if !ok {
		a.UnknownDates++
		return
	}
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 7:
		a.UpTo7Days++
	case days <= 14:
		a.Days8To14++
	case days <= 30:
		a.Days15To30++
	default:
		a.Over30Days++
	}
}
