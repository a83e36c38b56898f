package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/reconcile"
	"github.com/fr33d0m21/pull/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxImageSizeBytes int64 = 5 * 1024 * 1024
	thumbnailWidth          = 200
	imageSignTTL            = 15 * time.Minute
)

var (
	errImageTooLarge   = errors.New("image exceeds 5MB limit")
	errImageType       = errors.New("image must be image/jpeg or image/png")
	errInvalidImageKey = errors.New("invalid image key")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// unitImages serves the photos attached to the received units and
// discrepancies of a removal order line. The client PUTs the file straight
// to the bucket with a signed URL, then calls complete, which builds the
// thumbnail. The returned URLs go into the line's unit "images" lists.
type unitImages struct {
	bucket *utils.ImageBucket
	svc    *reconcile.Service
}

type signImageInput struct {
	OrderId  int    `json:"order_id" binding:"required"`
	MimeType string `json:"mime_type" binding:"required"`
	Size     int64  `json:"size" binding:"required"`
}

type completeImageInput struct {
	ObjectKey string `json:"object_key" binding:"required"`
}

type completedImage struct {
	ObjectKey    string `json:"object_key"`
	ImageURL     string `json:"image_url"`
	ThumbnailKey string `json:"thumbnail_key"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Keys are stores/<store>/units/<order line id>/<uuid>.<ext>, thumbnails
// sit in a thumbnails/ folder next to the image.
func storeImagePrefix(storeId string) string {
	return path.Join("stores", sanitizeSegment(storeId), "units") + "/"
}

func lineImageKey(storeId string, orderId int, mimeType string) string {
	return storeImagePrefix(storeId) + strconv.Itoa(orderId) + "/" + uuid.NewString() + imageExtensions[mimeType]
}

func validImageKey(storeId, key string) bool {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return false
	}
	return strings.HasPrefix(key, storeImagePrefix(storeId))
}

func thumbnailObjectKey(key string) string {
	return path.Join(path.Dir(key), "thumbnails", path.Base(key))
}

// sanitizeSegment keeps [a-z0-9_-] of the lowercased input.
func sanitizeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return -1
	}, strings.ToLower(s))
}

// sign hands out a PUT URL for a new photo of a line still being worked.
func (u *unitImages) sign() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId := c.Param("storeId")
		var in signImageInput
		if err := c.ShouldBindJSON(&in); err != nil {
			abortWithError(c, "signImage", fmt.Errorf("%w: %v", errInvalidUpload, err))
			return
		}
		if _, ok := imageExtensions[in.MimeType]; !ok {
			abortWithError(c, "signImage", errImageType)
			return
		}
		if in.Size <= 0 || in.Size > maxImageSizeBytes {
			abortWithError(c, "signImage", errImageTooLarge)
			return
		}

		ctx := c.Request.Context()
		order, err := u.svc.GetOrder(ctx, storeId, in.OrderId)
		if err != nil {
			abortWithError(c, "signImage", err)
			return
		}
		if order.ProcessingStatus.IsTerminal() {
			abortWithError(c, "signImage", reconcile.ErrOrderFinalized)
			return
		}

		signed, err := u.bucket.SignPut(ctx, lineImageKey(storeId, order.ID, in.MimeType), in.MimeType, imageSignTTL)
		if err != nil {
			abortWithError(c, "signImage", err)
			return
		}
		config.GetLogger().WithFields(logrus.Fields{
			"store_id":   storeId,
			"order_id":   order.ID,
			"object_key": signed.ObjectKey,
			"size":       in.Size,
		}).Info("[image.sign]")
		c.JSON(http.StatusOK, gin.H{"data": signed})
	}
}

// complete checks the upload landed and writes its thumbnail.
func (u *unitImages) complete() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId := c.Param("storeId")
		var in completeImageInput
		if err := c.ShouldBindJSON(&in); err != nil {
			abortWithError(c, "completeImage", fmt.Errorf("%w: %v", errInvalidUpload, err))
			return
		}
		if !validImageKey(storeId, in.ObjectKey) {
			abortWithError(c, "completeImage", errInvalidImageKey)
			return
		}

		ctx := c.Request.Context()
		exists, err := u.bucket.Exists(ctx, in.ObjectKey)
		if err != nil {
			abortWithError(c, "completeImage", err)
			return
		}
		if !exists {
			abortWithError(c, "completeImage", utils.ErrorRecordNotFound)
			return
		}
		thumbKey, err := u.writeThumbnail(ctx, in.ObjectKey)
		if err != nil {
			abortWithError(c, "completeImage", err)
			return
		}

		config.GetLogger().WithFields(logrus.Fields{
			"store_id":   storeId,
			"object_key": in.ObjectKey,
		}).Info("[image.complete]")
		c.JSON(http.StatusOK, gin.H{"data": completedImage{
			ObjectKey:    in.ObjectKey,
			ImageURL:     u.bucket.URL(in.ObjectKey),
			ThumbnailKey: thumbKey,
			ThumbnailURL: u.bucket.URL(thumbKey),
		}})
	}
}

// object streams a photo; ?key= may be a key or a URL handed out earlier.
func (u *unitImages) object() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := u.bucket.KeyFrom(c.Query("key"))
		if !validImageKey(c.Param("storeId"), key) {
			abortWithError(c, "imageObject", errInvalidImageKey)
			return
		}
		data, contentType, err := u.bucket.Get(c.Request.Context(), key, maxImageSizeBytes)
		if err != nil {
			abortWithError(c, "imageObject", err)
			return
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Cache-Control", "private, max-age=3600")
		c.Data(http.StatusOK, contentType, data)
	}
}

// remove deletes a photo and its thumbnail.
func (u *unitImages) remove() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := u.bucket.KeyFrom(c.Query("key"))
		if !validImageKey(c.Param("storeId"), key) {
			abortWithError(c, "deleteImage", errInvalidImageKey)
			return
		}
		ctx := c.Request.Context()
		for _, k := range []string{key, thumbnailObjectKey(key)} {
			if err := u.bucket.Remove(ctx, k); err != nil {
				abortWithError(c, "deleteImage", err)
				return
			}
		}
		c.Status(http.StatusNoContent)
	}
}

func (u *unitImages) writeThumbnail(ctx context.Context, key string) (string, error) {
	data, _, err := u.bucket.Get(ctx, key, maxImageSizeBytes+1)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxImageSizeBytes {
		return "", errImageTooLarge
	}
	thumb, err := renderThumbnail(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errImageType, err)
	}
	thumbKey := thumbnailObjectKey(key)
	if err := u.bucket.Put(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
		return "", err
	}
	return thumbKey, nil
}

// renderThumbnail scales an image to thumbnailWidth, honouring EXIF
// orientation, as JPEG.
func renderThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos), imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
