package models

import (
	"context"
	"errors"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/utils"
	"gorm.io/gorm"
)

// fetchByID loads one row by primary key, mapping a miss to
// utils.ErrorRecordNotFound.
func fetchByID[T any](ctx context.Context, id any, preload ...string) (*T, error) {
	q := config.GetDB().WithContext(ctx)
	for _, assoc := range preload {
		q = q.Preload(assoc)
	}
	var row T
	if err := q.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &row, nil
}

// GetResource reads through the redis cache; a miss loads the row and
// caches it for utils.GetCacheLifespan.
func GetResource[T any](ctx context.Context, id any, preload ...string) (*T, error) {
	if cached, err := utils.CacheGet[T](ctx, id); err != nil || cached != nil {
		return cached, err
	}
	row, err := fetchByID[T](ctx, id, preload...)
	if err != nil {
		return nil, err
	}
	return row, utils.CachePut[T](ctx, row, id)
}
