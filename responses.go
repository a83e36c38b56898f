package main

import (
	"errors"
	"net/http"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/parser"
	"github.com/fr33d0m21/pull/reconcile"
	"github.com/fr33d0m21/pull/utils"
	"github.com/fr33d0m21/pull/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var missing *parser.MissingHeadersError
	var rowErr *parser.RowError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.As(err, &rowErr), errors.As(err, &validationErrs):
		return http.StatusBadRequest
	case errors.Is(err, parser.ErrEmptyFile),
		errors.Is(err, parser.ErrNoDataRows),
		errors.Is(err, parser.ErrUnknownFileType),
		errors.Is(err, errInvalidUpload),
		errors.Is(err, reconcile.ErrInvalidPatch),
		errors.Is(err, reconcile.ErrInvalidWindow),
		errors.Is(err, reconcile.ErrNothingToIngest),
		errors.Is(err, reconcile.ErrVersionRequired),
		errors.Is(err, reconcile.ErrIncompleteQuantity),
		errors.Is(err, reconcile.ErrStoreRequired),
		errors.Is(err, utils.ErrorStoreRequired):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrOrderNotFound),
		errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrOrderFinalized),
		errors.Is(err, reconcile.ErrInvalidTransition),
		errors.Is(err, reconcile.ErrVersionConflict),
		errors.Is(err, reconcile.ErrAmbiguousOrder),
		errors.Is(err, models.ErrStoreHasOrders),
		errors.Is(err, workflow.ErrIdempotencyInProgress),
		errors.Is(err, utils.ErrorStoreBusy):
		return http.StatusConflict
	case errors.Is(err, utils.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, utils.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, utils.ErrorBucketNotConfigured),
		errors.Is(err, utils.ErrorLockUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// abortWithError writes {"error": ...} with the mapped status. Missing
// headers also carry the header lists, validation errors the failing fields.
func abortWithError(c *gin.Context, funcName string, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var missing *parser.MissingHeadersError
	var validationErrs validator.ValidationErrors
	if errors.As(err, &missing) {
		body["expected"] = missing.Expected
		body["missing"] = missing.Missing
		body["found"] = missing.Found
	} else if errors.As(err, &validationErrs) {
		body["fields"] = utils.ProcessValidationErrors(err)
	}

	if status >= http.StatusInternalServerError {
		storeId := c.Param("storeId")
		config.LogError(config.GetLogger(), "server", funcName, c.FullPath(), storeId, err)
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

// abortWithInputError is abortWithError for store and user CRUD, where the
// models report bad input as plain errors.
func abortWithInputError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		status = http.StatusBadRequest
	}
	body := gin.H{"error": err.Error()}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		body["fields"] = utils.ProcessValidationErrors(err)
	}
	c.AbortWithStatusJSON(status, body)
}
