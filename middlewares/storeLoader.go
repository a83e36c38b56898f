package middlewares

import (
	"context"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/utils"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
)

type loadersKey struct{}

// Loaders batch the store lookups a request repeats: the access check, the
// store handlers and the per-user store lists all go through StoreLoader.
type Loaders struct {
	StoreLoader *dataloader.Loader[string, *models.Store]
}

func NewLoaders() *Loaders {
	return &Loaders{
		StoreLoader: dataloader.NewBatchedLoader(
			batchStores,
			dataloader.WithWait[string, *models.Store](time.Millisecond),
		),
	}
}

// LoaderMiddleware gives every request its own loaders, so nothing cached
// outlives the request.
func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.GetDB() != nil {
			c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), loadersKey{}, NewLoaders()))
		}
		c.Next()
	}
}

// For returns the request's loaders, or throwaway ones outside a request.
func For(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(loadersKey{}).(*Loaders); ok {
		return l
	}
	return NewLoaders()
}

// batchStores answers in key order; unknown ids get ErrorRecordNotFound.
func batchStores(ctx context.Context, ids []string) []*dataloader.Result[*models.Store] {
	out := make([]*dataloader.Result[*models.Store], len(ids))
	byId, err := models.MapStoresByIds(ctx, ids)
	for i, id := range ids {
		switch store, ok := byId[id]; {
		case err != nil:
			out[i] = &dataloader.Result[*models.Store]{Error: err}
		case !ok:
			out[i] = &dataloader.Result[*models.Store]{Error: utils.ErrorRecordNotFound}
		default:
			out[i] = &dataloader.Result[*models.Store]{Data: store}
		}
	}
	return out
}

func GetStore(ctx context.Context, id string) (*models.Store, error) {
	return For(ctx).StoreLoader.Load(ctx, id)()
}

// LoadStores queues ids without waiting, so loads queued together are
// fetched in one query.
func LoadStores(ctx context.Context, ids []string) dataloader.ThunkMany[*models.Store] {
	return For(ctx).StoreLoader.LoadMany(ctx, ids)
}
