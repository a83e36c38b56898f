// Package reconcile keeps the per-store removal order state: it ingests
// parsed uploads, applies operator updates and derives the views the
// warehouse works from.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/parser"
	"github.com/fr33d0m21/pull/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const moduleName = "reconcile"

// Locker serializes writers of a store across processes.
type Locker interface {
	Lock(ctx context.Context, storeId string) (release func(), err error)
}

// StatsCache shares computed stats between processes.
type StatsCache interface {
	Get(ctx context.Context, storeId string) (*Stats, bool)
	Set(ctx context.Context, storeId string, stats Stats)
	Invalidate(ctx context.Context, storeId string)
}

type Options struct {
	StrictCompletion bool
	RequireVersion   bool
	Retry            RetryPolicy
	// SnapshotTTL bounds how long a loaded store is served before being
	// reloaded from the repository. Zero keeps it until a write or Refresh.
	SnapshotTTL time.Duration
	Locker      Locker
	Cache       StatsCache
	Now         func() time.Time
}

// OptionsFromEnv reads the policies from the feature flags.
func OptionsFromEnv() Options {
	return Options{
		StrictCompletion: config.CompletionPolicy() == config.CompletionPolicyStrict,
		RequireVersion:   config.OrderVersionCheck(),
		Retry:            RetryPolicyFromEnv(),
		SnapshotTTL:      config.SecondsFromEnv("STORE_SNAPSHOT_TTL_SECONDS", 15),
	}
}

type Service struct {
	repo     Repository
	registry *Registry
	opts     Options
	logger   *logrus.Logger
	tracer   trace.Tracer
}

func NewService(repo Repository, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:     repo,
		registry: NewRegistry(),
		opts:     opts,
		logger:   config.GetLogger(),
		tracer:   otel.Tracer("github.com/fr33d0m21/pull/reconcile"),
	}
}

func (s *Service) Repository() Repository {
	return s.repo
}

func (s *Service) startSpan(ctx context.Context, name, storeId string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("store.id", storeId))
	return s.tracer.Start(ctx, "reconcile."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// lockStore takes the process lock of the store and, when configured, the
// cross-process lock. The returned func releases both.
func (s *Service) lockStore(ctx context.Context, storeId string) (*storeState, func(), error) {
	st := s.registry.get(storeId)
	st.mu.Lock()
	if s.opts.Locker == nil {
		return st, st.mu.Unlock, nil
	}
	release, err := s.opts.Locker.Lock(ctx, storeId)
	if err != nil {
		st.mu.Unlock()
		return nil, nil, err
	}
	return st, func() {
		release()
		st.mu.Unlock()
	}, nil
}

// load fills st from the repository. Callers hold st.mu.
func (s *Service) load(ctx context.Context, storeId string, st *storeState) error {
	var orders []models.RemovalOrder
	var tracking []models.TrackingEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = s.repo.LoadOrders(gctx, storeId)
		return err
	})
	g.Go(func() (err error) {
		tracking, err = s.repo.LoadTracking(gctx, storeId)
		return err
	})
	if err := g.Wait(); err != nil {
		config.LogError(s.logger, moduleName, "load", "load store", storeId, err)
		return err
	}
	st.orders = orders
	st.tracking = tracking
	st.loaded = true
	st.loadedAt = s.opts.Now()
	st.stats = ComputeStats(orders, st.loadedAt)
	return nil
}

func (s *Service) stale(st *storeState) bool {
	if !st.loaded {
		return true
	}
	return s.opts.SnapshotTTL > 0 && s.opts.Now().Sub(st.loadedAt) > s.opts.SnapshotTTL
}

// afterWrite recomputes stats and drops the shared cache entry. Callers hold st.mu.
func (s *Service) afterWrite(ctx context.Context, storeId string, st *storeState) {
	st.stats = ComputeStats(st.orders, s.opts.Now())
	if s.opts.Cache != nil {
		s.opts.Cache.Invalidate(ctx, storeId)
	}
}

// Snapshot returns a copy of the store's state, loading it when needed.
func (s *Service) Snapshot(ctx context.Context, storeId string) (*Snapshot, error) {
	if storeId == "" {
		return nil, ErrStoreRequired
	}
	st := s.registry.get(storeId)
	st.mu.Lock()
	defer st.mu.Unlock()
	if s.stale(st) {
		if err := s.load(ctx, storeId, st); err != nil {
			return nil, err
		}
	}
	return st.snapshot(storeId), nil
}

// Refresh reloads the store from the repository.
func (s *Service) Refresh(ctx context.Context, storeId string) (*Snapshot, error) {
	if storeId == "" {
		return nil, ErrStoreRequired
	}
	st := s.registry.get(storeId)
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := s.load(ctx, storeId, st); err != nil {
		return nil, err
	}
	if s.opts.Cache != nil {
		s.opts.Cache.Invalidate(ctx, storeId)
	}
	return st.snapshot(storeId), nil
}

// Invalidate drops the in-process state of the store so the next read
// reloads it. Used when another instance reports a change.
func (s *Service) Invalidate(storeId string) {
	st := s.registry.get(storeId)
	st.mu.Lock()
	st.reset()
	st.mu.Unlock()
}

// Ingest stores a parsed upload as one batch. Removal rows become new order
// lines; tracking rows are stored and matched onto working lines.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (_ *IngestResult, err error) {
	if req.StoreId == "" {
		return nil, ErrStoreRequired
	}
	if req.Result == nil || req.Result.Len() == 0 {
		return nil, ErrNothingToIngest
	}
	ctx, span := s.startSpan(ctx, "Ingest", req.StoreId,
		attribute.String("file.type", string(req.Result.Type)),
		attribute.Int("file.rows", req.Result.Len()))
	defer func() { endSpan(span, err) }()

	st, unlock, err := s.lockStore(ctx, req.StoreId)
	if err != nil {
		return nil, err
	}
	defer unlock()
	// tracking rows match against the stored orders, not a cached copy
	if err := s.load(ctx, req.StoreId, st); err != nil {
		return nil, err
	}

	now := s.opts.Now().UTC()
	sheet := models.Spreadsheet{
		ID:          uuid.NewString(),
		StoreId:     req.StoreId,
		FileType:    models.FileType(req.Result.Type),
		FileName:    req.FileName,
		RowCount:    req.Result.Len(),
		SkippedRows: len(req.Result.Warnings),
		UploadedBy:  req.UploadedBy,
		UploadedAt:  now,
	}
	res := &IngestResult{Warnings: req.Result.Warnings}

	switch req.Result.Type {
	case parser.FileTypeRemoval:
		orders := removalOrders(req.Result.Removal, req.StoreId, sheet.ID, now)
		if err := s.repo.InsertRemovalBatch(ctx, &sheet, orders); err != nil {
			config.LogError(s.logger, moduleName, "Ingest", "insert removal batch", sheet.ID, err)
			return nil, err
		}
		res.Inserted = len(orders)
	case parser.FileTypeTracking:
		entries := trackingEntries(req.Result.Tracking, req.StoreId, sheet.ID, now)
		changed, matched, unmatched := matchTracking(st.orders, entries)
		if err := s.repo.InsertTrackingBatch(ctx, &sheet, entries, changed); err != nil {
			config.LogError(s.logger, moduleName, "Ingest", "insert tracking batch", sheet.ID, err)
			return nil, err
		}
		res.Inserted = len(entries)
		res.Matched = matched
		res.Unmatched = unmatched
	default:
		return nil, parser.ErrUnknownFileType
	}
	res.Spreadsheet = sheet

	s.appendEvent(ctx, req.StoreId, models.EventSpreadsheetIngested, sheet.ID, map[string]any{
		"spreadsheet_id": sheet.ID,
		"file_type":      sheet.FileType,
		"file_name":      sheet.FileName,
		"rows":           res.Inserted,
		"matched":        res.Matched,
		"unmatched":      res.Unmatched,
		"skipped":        sheet.SkippedRows,
	})

	// the repository is authoritative after a batch
	if err := s.load(ctx, req.StoreId, st); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, req.StoreId, st)
	res.Stats = st.stats
	return res, nil
}

// ProcessOrder applies patch to the order line with the given id. Writes are
// retried on transient failures; an unchanged order is returned as is.
func (s *Service) ProcessOrder(ctx context.Context, storeId string, id int, patch OrderPatch) (_ *models.RemovalOrder, err error) {
	if storeId == "" {
		return nil, ErrStoreRequired
	}
	ctx, span := s.startSpan(ctx, "ProcessOrder", storeId, attribute.Int("order.id", id))
	defer func() { endSpan(span, err) }()

	st, unlock, err := s.lockStore(ctx, storeId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.repo.GetOrder(ctx, storeId, id)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			config.LogError(s.logger, moduleName, "ProcessOrder", "get order", id, err)
		}
		return nil, err
	}
	applied, err := applyPatch(*current, patch, applyOptions{
		strictCompletion: s.opts.StrictCompletion,
		requireVersion:   s.opts.RequireVersion,
		user:             currentUser(ctx),
		now:              s.opts.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if !applied.changed {
		if st.loaded {
			st.replaceOrder(*current)
		}
		return &applied.order, nil
	}

	next := applied.order
	err = s.opts.Retry.Do(ctx, "ProcessOrder", func(attempt int) error {
		return s.persist(ctx, &next, applied)
	})
	if err != nil {
		config.LogError(s.logger, moduleName, "ProcessOrder", "persist order", id, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.status", string(next.ProcessingStatus)))

	if next.ProcessingStatus.IsTerminal() {
		eventType := models.EventOrderCompleted
		if next.ProcessingStatus == models.ProcessingStatusCancelled {
			eventType = models.EventOrderCancelled
		}
		s.appendEvent(ctx, storeId, eventType, strconv.Itoa(next.ID), map[string]any{
			"removal_order_id":  next.ID,
			"order_id":          next.OrderId,
			"sku":               next.Sku,
			"processing_status": next.ProcessingStatus,
			"actual_return_qty": next.ActualReturnQty,
			"expected_quantity": next.ExpectedQuantity(),
			"version":           next.Version,
		})
	}

	if st.loaded {
		st.replaceOrder(next)
		s.afterWrite(ctx, storeId, st)
	} else if s.opts.Cache != nil {
		s.opts.Cache.Invalidate(ctx, storeId)
	}
	out := next.Clone()
	return &out, nil
}

// persist issues the writes of one order update concurrently and waits for
// all of them. Each write is an overwrite, so running it again is safe.
func (s *Service) persist(ctx context.Context, next *models.RemovalOrder, applied applyResult) error {
	var g errgroup.Group
	order := next.Clone()
	g.Go(func() error {
		return s.repo.SaveOrder(ctx, &order, applied.expectedVersion)
	})
	var stored []models.ReceivedUnit
	if applied.unitsChanged {
		units := make([]models.ReceivedUnit, len(next.ReceivedUnits))
		for i, u := range next.ReceivedUnits {
			units[i] = u.Clone()
		}
		g.Go(func() (err error) {
			stored, err = s.repo.ReplaceUnits(ctx, next.StoreId, next.ID, units)
			return err
		})
	}
	if next.ProcessingStatus.IsTerminal() {
		rec := completedRecord(*next)
		g.Go(func() error {
			return s.repo.UpsertCompletedOrder(ctx, &rec)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if applied.unitsChanged {
		next.ReceivedUnits = stored
	}
	return nil
}

func completedRecord(o models.RemovalOrder) models.CompletedOrder {
	processed := time.Now().UTC()
	if o.CompletedAt != nil {
		processed = *o.CompletedAt
	}
	return models.CompletedOrder{
		StoreId:          o.StoreId,
		RemovalOrderId:   o.ID,
		OrderId:          o.OrderId,
		Sku:              o.Sku,
		SpreadsheetId:    o.SpreadsheetId,
		ProcessingStatus: o.ProcessingStatus,
		ProcessingDate:   processed,
		ActualReturnQty:  o.ActualReturnQty,
		TrackingNumbers:  append(models.StringList{}, o.TrackingNumbers...),
		Carriers:         append(models.StringList{}, o.Carriers...),
		Notes:            append(models.StringList{}, o.Notes...),
		ProcessedBy:      o.CompletedBy,
	}
}

// ProcessOrderLine applies patch to the line identified by order id and
// sku. An empty sku is accepted when the order has a single line.
func (s *Service) ProcessOrderLine(ctx context.Context, storeId, orderId, sku string, patch OrderPatch) (*models.RemovalOrder, error) {
	snap, err := s.Snapshot(ctx, storeId)
	if err != nil {
		return nil, err
	}
	var candidates []models.RemovalOrder
	for _, o := range snap.Orders {
		if o.OrderId == orderId && (sku == "" || o.Sku == sku) {
			candidates = append(candidates, o)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, ErrOrderNotFound
	case 1:
		return s.ProcessOrder(ctx, storeId, candidates[0].ID, patch)
	}
	return nil, ErrAmbiguousOrder
}

// Clear removes every order, tracking entry and batch of the store.
func (s *Service) Clear(ctx context.Context, storeId string) (err error) {
	if storeId == "" {
		return ErrStoreRequired
	}
	ctx, span := s.startSpan(ctx, "Clear", storeId)
	defer func() { endSpan(span, err) }()

	st, unlock, err := s.lockStore(ctx, storeId)
	if err != nil {
		return err
	}
	defer unlock()
	if err := s.repo.ClearStore(ctx, storeId); err != nil {
		config.LogError(s.logger, moduleName, "Clear", "clear store", storeId, err)
		return err
	}
	s.appendEvent(ctx, storeId, models.EventStoreCleared, storeId, map[string]any{
		"store_id":   storeId,
		"cleared_by": currentUser(ctx),
	})
	st.reset()
	st.loaded = true
	st.loadedAt = s.opts.Now()
	s.afterWrite(ctx, storeId, st)
	return nil
}

// appendEvent writes an outbox row. Failures are logged, not returned: the
// change it describes is already stored.
func (s *Service) appendEvent(ctx context.Context, storeId, eventType, referenceId string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		config.LogError(s.logger, moduleName, "appendEvent", "marshal payload", eventType, err)
		return
	}
	ev := &models.ReconciliationEvent{
		StoreId:       storeId,
		EventType:     eventType,
		ReferenceId:   referenceId,
		OccurredAt:    s.opts.Now().UTC(),
		Payload:       body,
		PublishStatus: models.OutboxPublishStatusPending,
		CorrelationId: correlationId(ctx),
	}
	if err := s.repo.AppendEvent(ctx, ev); err != nil {
		config.LogError(s.logger, moduleName, "appendEvent", fmt.Sprintf("append %s event", eventType), referenceId, err)
	}
}

func currentUser(ctx context.Context) string {
	name, _ := utils.GetUsernameFromContext(ctx)
	return name
}

func correlationId(ctx context.Context) string {
	id, _ := utils.GetCorrelationIdFromContext(ctx)
	return id
}
