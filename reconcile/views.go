package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/parser"
)

// TrackingGroup is every order line shipped under one tracking number.
type TrackingGroup struct {
	TrackingNumber string                `json:"tracking_number"`
	Carrier        string                `json:"carrier"`
	Orders         []models.RemovalOrder `json:"orders"`
	ExpectedUnits  int                   `json:"expected_units"`
	ReceivedUnits  int                   `json:"received_units"`
	Complete       bool                  `json:"complete"`
}

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	Status        models.ProcessingStatus
	SpreadsheetId string
	Search        string
}

func (f OrderFilter) match(o models.RemovalOrder) bool {
	if f.Status != "" && o.ProcessingStatus != f.Status {
		return false
	}
	if f.SpreadsheetId != "" && o.SpreadsheetId != f.SpreadsheetId {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		return strings.Contains(strings.ToLower(o.OrderId), q) ||
			strings.Contains(strings.ToLower(o.Sku), q) ||
			strings.Contains(strings.ToLower(o.Fnsku), q) ||
			strings.Contains(strings.ToLower(o.TrackingNumber), q)
	}
	return true
}

func filterOrders(orders []models.RemovalOrder, f OrderFilter) []models.RemovalOrder {
	out := []models.RemovalOrder{}
	for _, o := range orders {
		if f.match(o) {
			out = append(out, o)
		}
	}
	return out
}

// workingQueue returns new and processing lines, oldest request first.
func workingQueue(orders []models.RemovalOrder) []models.RemovalOrder {
	out := []models.RemovalOrder{}
	for _, o := range orders {
		if o.ProcessingStatus.IsWorking() {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := parser.ParseDate(out[i].RequestDate)
		tj, _ := parser.ParseDate(out[j].RequestDate)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// groupByTracking groups non-cancelled lines that carry a tracking number.
// Incomplete groups come first, then by tracking number.
func groupByTracking(orders []models.RemovalOrder) []TrackingGroup {
	index := map[string]int{}
	groups := []TrackingGroup{}
	for _, o := range orders {
		if o.ProcessingStatus == models.ProcessingStatusCancelled || o.TrackingNumber == "" {
			continue
		}
		i, ok := index[o.TrackingNumber]
		if !ok {
			i = len(groups)
			index[o.TrackingNumber] = i
			groups = append(groups, TrackingGroup{TrackingNumber: o.TrackingNumber, Carrier: o.Carrier, Complete: true})
		}
		g := &groups[i]
		g.Orders = append(g.Orders, o)
		g.ExpectedUnits += o.ExpectedQuantity()
		g.ReceivedUnits += o.ActualReturnQty
		if o.ProcessingStatus != models.ProcessingStatusCompleted {
			g.Complete = false
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Complete != groups[j].Complete {
			return !groups[i].Complete
		}
		return groups[i].TrackingNumber < groups[j].TrackingNumber
	})
	return groups
}

// lookup finds lines by order id, tracking number, SKU or FNSKU,
// case-insensitively.
func lookup(orders []models.RemovalOrder, code string) []models.RemovalOrder {
	code = strings.TrimSpace(code)
	out := []models.RemovalOrder{}
	if code == "" {
		return out
	}
	for _, o := range orders {
		if strings.EqualFold(o.OrderId, code) || strings.EqualFold(o.Sku, code) || strings.EqualFold(o.Fnsku, code) ||
			strings.EqualFold(o.TrackingNumber, code) || containsFold(o.TrackingNumbers, code) {
			out = append(out, o)
		}
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Window is an inclusive request date range.
type Window struct {
	Range string    `json:"range"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
}

const (
	RangeDay    = "day"
	RangeWeek   = "week"
	RangeMonth  = "month"
	RangeCustom = "custom"
)

// ParseWindow builds the window for rng relative to now. Weeks start on
// Sunday. custom needs from and to as YYYY-MM-DD, both inclusive.
func ParseWindow(rng, from, to string, now time.Time) (Window, error) {
	rng = strings.ToLower(strings.TrimSpace(rng))
	if rng == "" {
		rng = RangeDay
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOf := func(t time.Time) time.Time { return t.Add(24*time.Hour - time.Nanosecond) }
	switch rng {
	case RangeDay:
		return Window{Range: rng, From: day, To: endOf(day)}, nil
	case RangeWeek:
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return Window{Range: rng, From: start, To: endOf(start.AddDate(0, 0, 6))}, nil
	case RangeMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{Range: rng, From: start, To: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}, nil
	case RangeCustom:
		f, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(from), now.Location())
		if err != nil {
			return Window{}, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidWindow)
		}
		t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(to), now.Location())
		if err != nil {
			return Window{}, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidWindow)
		}
		if t.Before(f) {
			return Window{}, fmt.Errorf("%w: to is before from", ErrInvalidWindow)
		}
		return Window{Range: rng, From: f, To: endOf(t)}, nil
	}
	return Window{}, fmt.Errorf("%w: unknown range %q", ErrInvalidWindow, rng)
}

func (w Window) contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Summary is the work done on orders requested inside a window.
type Summary struct {
	Window          Window          `json:"window"`
	Orders          int             `json:"orders"`
	QueueGroups     []TrackingGroup `json:"queue_groups"`
	CompletedGroups []TrackingGroup `json:"completed_groups"`
	ExpectedUnits   int             `json:"expected_units"`
	ReceivedUnits   int             `json:"received_units"`
	MissingUnits    int             `json:"missing_units"`
}

func summarize(orders []models.RemovalOrder, w Window) Summary {
	s := Summary{Window: w, QueueGroups: []TrackingGroup{}, CompletedGroups: []TrackingGroup{}}
	var inWindow []models.RemovalOrder
	for _, o := range orders {
		t, ok := parser.ParseDate(o.RequestDate)
		if !ok || !w.contains(t.In(w.From.Location())) {
			continue
		}
		inWindow = append(inWindow, o)
		s.Orders++
		s.ExpectedUnits += o.ShippedQuantity
		s.ReceivedUnits += o.ActualReturnQty
		for _, u := range o.ReceivedUnits {
			if u.Condition == models.UnitConditionMissing {
				s.MissingUnits += u.Quantity
			}
		}
	}
	for _, g := range groupByTracking(inWindow) {
		if g.Complete {
			s.CompletedGroups = append(s.CompletedGroups, g)
		} else {
			s.QueueGroups = append(s.QueueGroups, g)
		}
	}
	return s
}
