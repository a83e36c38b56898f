package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/parser"
	"github.com/fr33d0m21/pull/reconcile"
	"github.com/fr33d0m21/pull/utils"
	"github.com/fr33d0m21/pull/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var errInvalidUpload = errors.New("invalid upload")

const (
	idempotencyHeader  = "Idempotency-Key"
	uploadHandlerName  = "spreadsheet.upload"
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultUploadLimit = 20 << 20
)

func maxUploadBytes() int64 {
	return int64(config.IntFromEnv("MAX_UPLOAD_BYTES", defaultUploadLimit))
}

// readUpload returns the uploaded file from a multipart "file" field or the
// raw body, with the file name when one was given.
func readUpload(c *gin.Context) ([]byte, string, error) {
	limit := maxUploadBytes()
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("file is required: %w", err)
		}
		if fh.Size > limit {
			return nil, "", fmt.Errorf("file exceeds %d bytes", limit)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		return data, fh.Filename, err
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, c.Query("filename"), nil
}

func isXLSX(c *gin.Context, fileName string) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return true
	}
	return c.ContentType() == xlsxContentType || strings.EqualFold(c.Query("format"), parser.FormatXLSX)
}

func uploadHandler(svc *reconcile.Service, p *parser.Parser) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := config.GetLogger()
		storeId := c.Param("storeId")

		fileType, err := parser.ParseFileType(c.Query("type"))
		if err != nil {
			abortWithError(c, "uploadHandler", err)
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader(idempotencyHeader))
		db := config.GetDB()
		useIdempotency := idemKey != "" && db != nil
		if useIdempotency {
			skip, stored, err := workflow.BeginIdempotency(db.WithContext(ctx), storeId, uploadHandlerName, idemKey)
			if err != nil {
				abortWithError(c, "uploadHandler", err)
				return
			}
			if skip && stored != nil {
				c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(*stored))
				return
			}
		}
		fail := func(err error) {
			if useIdempotency {
				if markErr := workflow.MarkIdempotencyFailed(db.WithContext(ctx), storeId, uploadHandlerName, idemKey, err); markErr != nil {
					config.LogError(logger, "server", "uploadHandler", "mark idempotency failed", idemKey, markErr)
				}
			}
			abortWithError(c, "uploadHandler", err)
		}

		data, fileName, err := readUpload(c)
		if err != nil {
			fail(fmt.Errorf("%w: %v", errInvalidUpload, err))
			return
		}
		if fileName == "" {
			fileName = string(fileType) + "_upload"
		}

		var result *parser.Result
		if isXLSX(c, fileName) {
			result, err = p.ParseXLSX(bytes.NewReader(data), fileType)
		} else {
			result, err = p.Parse(data, fileType)
		}
		if err != nil {
			fail(err)
			return
		}
		for _, w := range result.Warnings {
			logger.WithFields(logrus.Fields{
				"store_id": storeId,
				"file":     fileName,
				"row":      w.Row,
				"reason":   w.Reason,
			}).Warn("skipped upload row")
		}

		uploadedBy, _ := utils.GetUsernameFromContext(ctx)
		res, err := svc.Ingest(ctx, reconcile.IngestRequest{
			StoreId:    storeId,
			FileName:   fileName,
			UploadedBy: uploadedBy,
			Result:     result,
		})
		if err != nil {
			fail(err)
			return
		}

		body, err := json.Marshal(gin.H{"data": res})
		if err != nil {
			fail(err)
			return
		}
		if useIdempotency {
			if err := workflow.MarkIdempotencySucceeded(db.WithContext(ctx), storeId, uploadHandlerName, idemKey, string(body)); err != nil {
				config.LogError(logger, "server", "uploadHandler", "mark idempotency succeeded", idemKey, err)
			}
		}
		c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
	}
}

func orderIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return id, true
}

func listOrdersHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := reconcile.OrderFilter{
			SpreadsheetId: c.Query("spreadsheet_id"),
			Search:        c.Query("q"),
		}
		if s := c.Query("status"); s != "" {
			status := models.ProcessingStatus(strings.ToLower(s))
			if !status.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid processing status"})
				return
			}
			filter.Status = status
		}
		orders, err := svc.ListOrders(c.Request.Context(), c.Param("storeId"), filter)
		if err != nil {
			abortWithError(c, "listOrdersHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": orders})
	}
}

func getOrderHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderIdParam(c)
		if !ok {
			return
		}
		order, err := svc.GetOrder(c.Request.Context(), c.Param("storeId"), id)
		if err != nil {
			abortWithError(c, "getOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

func patchOrderHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderIdParam(c)
		if !ok {
			return
		}
		patch, err := reconcile.DecodePatch(c.Request.Body)
		if err != nil {
			abortWithError(c, "patchOrderHandler", err)
			return
		}
		order, err := svc.ProcessOrder(c.Request.Context(), c.Param("storeId"), id, *patch)
		if err != nil {
			abortWithError(c, "patchOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

// patchLineHandler updates the line named by ?order_id= and optional ?sku=,
// as sent by the scanner.
func patchLineHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId := strings.TrimSpace(c.Query("order_id"))
		if orderId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
			return
		}
		patch, err := reconcile.DecodePatch(c.Request.Body)
		if err != nil {
			abortWithError(c, "patchLineHandler", err)
			return
		}
		order, err := svc.ProcessOrderLine(c.Request.Context(), c.Param("storeId"), orderId, strings.TrimSpace(c.Query("sku")), *patch)
		if err != nil {
			abortWithError(c, "patchLineHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

func queueHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.WorkingQueue(c.Request.Context(), c.Param("storeId"))
		if err != nil {
			abortWithError(c, "queueHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": orders})
	}
}

func trackingGroupsHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		groups, err := svc.TrackingGroups(c.Request.Context(), c.Param("storeId"))
		if err != nil {
			abortWithError(c, "trackingGroupsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": groups})
	}
}

func lookupHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.Lookup(c.Request.Context(), c.Param("storeId"), c.Param("code"))
		if err != nil {
			abortWithError(c, "lookupHandler", err)
			return
		}
		if len(orders) == 0 {
			abortWithError(c, "lookupHandler", reconcile.ErrOrderNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": orders})
	}
}

func statsHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context(), c.Param("storeId"))
		if err != nil {
			abortWithError(c, "statsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": stats})
	}
}

func summaryHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		window, err := reconcile.ParseWindow(c.DefaultQuery("range", reconcile.RangeDay), c.Query("from"), c.Query("to"), time.Now().UTC())
		if err != nil {
			abortWithError(c, "summaryHandler", err)
			return
		}
		summary, err := svc.DailySummary(c.Request.Context(), c.Param("storeId"), window)
		if err != nil {
			abortWithError(c, "summaryHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": summary})
	}
}

func trackingHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := svc.Tracking(c.Request.Context(), c.Param("storeId"))
		if err != nil {
			abortWithError(c, "trackingHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": entries})
	}
}

func spreadsheetsHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sheets, err := svc.Spreadsheets(c.Request.Context(), c.Param("storeId"))
		if err != nil {
			abortWithError(c, "spreadsheetsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sheets})
	}
}

func completedOrdersHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		completed, err := svc.CompletedOrders(c.Request.Context(), c.Param("storeId"))
		if err != nil {
			abortWithError(c, "completedOrdersHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": completed})
	}
}

func clearStoreHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("confirm") != "true" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "clearing a store needs confirm=true"})
			return
		}
		if err := svc.Clear(c.Request.Context(), c.Param("storeId")); err != nil {
			abortWithError(c, "clearStoreHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func refreshStoreHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := svc.Refresh(c.Request.Context(), c.Param("storeId"))
		if err != nil {
			abortWithError(c, "refreshStoreHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"orders":    len(snapshot.Orders),
			"tracking":  len(snapshot.Tracking),
			"stats":     snapshot.Stats,
			"loaded_at": snapshot.LoadedAt,
		}})
	}
}

func exportOrdersHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId := c.Param("storeId")
		orders, err := svc.ListOrders(c.Request.Context(), storeId, reconcile.OrderFilter{})
		if err != nil {
			abortWithError(c, "exportOrdersHandler", err)
			return
		}
		data, err := reconcile.ExportOrdersXLSX(orders)
		if err != nil {
			abortWithError(c, "exportOrdersHandler", err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_orders.xlsx"`, storeId))
		c.Data(http.StatusOK, xlsxContentType, data)
	}
}

func sampleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileType, err := parser.ParseFileType(c.Param("type"))
		if err != nil {
			abortWithError(c, "sampleHandler", err)
			return
		}
		format := strings.ToLower(c.DefaultQuery("format", parser.FormatCSV))
		data, err := parser.Sample(fileType, format)
		if err != nil {
			abortWithError(c, "sampleHandler", err)
			return
		}
		contentType := "text/csv; charset=utf-8"
		if format == parser.FormatXLSX {
			contentType = xlsxContentType
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, parser.SampleFileName(fileType, format)))
		c.Data(http.StatusOK, contentType, data)
	}
}

func outboxCountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		counts, err := workflow.OutboxStatusCounts(c.Request.Context(), db, c.Param("storeId"))
		if err != nil {
			abortWithError(c, "outboxCountsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": counts})
	}
}

func requeueOutboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		n, err := workflow.RequeueDeadEvents(c.Request.Context(), db, config.GetLogger(), c.Param("storeId"))
		if err != nil {
			abortWithError(c, "requeueOutboxHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"requeued": n}})
	}
}
