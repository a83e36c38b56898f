package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var ErrorBucketNotConfigured = errors.New("GCS_BUCKET is required")

// ImageBucket holds the photos taken of received units and discrepancies.
// Objects are addressed by key; AccessBase turns a key into a URL the
// client can open.
type ImageBucket struct {
	Name       string
	AccessBase string
	credJSON   string
}

// ImageBucketFromEnv reads GCS_BUCKET, STORAGE_ACCESS_BASE_URL and
// GCS_CREDENTIALS_JSON.
func ImageBucketFromEnv() *ImageBucket {
	return &ImageBucket{
		Name:       strings.TrimSpace(os.Getenv("GCS_BUCKET")),
		AccessBase: strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL")),
		credJSON:   strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON")),
	}
}

// open returns a handle on key; close the client when done.
func (b *ImageBucket) open(ctx context.Context, key string) (*storage.Client, *storage.ObjectHandle, error) {
	if b.Name == "" {
		return nil, nil, ErrorBucketNotConfigured
	}
	var opts []option.ClientOption
	if b.credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(b.credJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("storage client: %w", err)
	}
	return client, client.Bucket(b.Name).Object(key), nil
}

func (b *ImageBucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	client, obj, err := b.open(ctx, key)
	if err != nil {
		return err
	}
	defer client.Close()

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	return nil
}

// Get reads up to limit bytes of key. A missing object is ErrorRecordNotFound.
func (b *ImageBucket) Get(ctx context.Context, key string, limit int64) ([]byte, string, error) {
	client, obj, err := b.open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	defer client.Close()

	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, "", ErrorRecordNotFound
	} else if err != nil {
		return nil, "", err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, "", err
	}
	return data, r.Attrs.ContentType, nil
}

func (b *ImageBucket) Exists(ctx context.Context, key string) (bool, error) {
	client, obj, err := b.open(ctx, key)
	if err != nil {
		return false, err
	}
	defer client.Close()

	if _, err := obj.Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes key; deleting an absent object is not an error.
func (b *ImageBucket) Remove(ctx context.Context, key string) error {
	client, obj, err := b.open(ctx, key)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// URL is the address handed to clients for key. AccessBase may carry a
// {objectKey} placeholder or end in a query string; without AccessBase the
// public storage.googleapis.com URL is used.
func (b *ImageBucket) URL(key string) string {
	switch {
	case strings.Contains(b.AccessBase, "{objectKey}"):
		escaped := key
		if strings.Contains(b.AccessBase, "?") {
			escaped = url.QueryEscape(key)
		}
		return strings.ReplaceAll(b.AccessBase, "{objectKey}", escaped)
	case strings.Contains(b.AccessBase, "?"):
		return b.AccessBase + url.QueryEscape(key)
	case b.AccessBase != "":
		return strings.TrimRight(b.AccessBase, "/") + "/" + key
	case b.Name != "":
		return "https://storage.googleapis.com/" + b.Name + "/" + key
	}
	return key
}

// KeyFrom recovers an object key from something URL returned, a gs:// URL
// or a bare key. It returns "" for anything outside the bucket.
func (b *ImageBucket) KeyFrom(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "..") {
		return ""
	}
	if !strings.Contains(raw, "://") {
		return strings.TrimPrefix(raw, "/")
	}
	if rest, ok := strings.CutPrefix(raw, "gs://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || (b.Name != "" && bucket != b.Name) {
			return ""
		}
		return key
	}

	if before, after, ok := strings.Cut(b.AccessBase, "{objectKey}"); ok &&
		strings.HasPrefix(raw, before) && strings.HasSuffix(raw, after) {
		key := strings.TrimSuffix(strings.TrimPrefix(raw, before), after)
		if decoded, err := url.QueryUnescape(key); err == nil {
			return decoded
		}
		return key
	}
	if b.AccessBase != "" && !strings.Contains(b.AccessBase, "?") {
		if key, ok := strings.CutPrefix(raw, strings.TrimRight(b.AccessBase, "/")+"/"); ok {
			return key
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if key := u.Query().Get("objectKey"); key != "" {
		return key
	}
	if strings.EqualFold(u.Host, "storage.googleapis.com") {
		bucket, key, found := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if found && key != "" && (b.Name == "" || bucket == b.Name) {
			return key
		}
	}
	return ""
}
