package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrorStoreRequired  = errors.New("store id is required")
	ErrorUnauthorized   = errors.New("unauthorized")
	ErrorForbidden      = errors.New("forbidden")
)
