package utils

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"
)

// SignedUpload is a V4 signed PUT the client uses to upload a unit photo.
type SignedUpload struct {
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"object_key"`
	AccessURL string            `json:"access_url"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// SignPut signs a PUT of contentType to key, valid for ttl.
func (b *ImageBucket) SignPut(ctx context.Context, key, contentType string, ttl time.Duration) (*SignedUpload, error) {
	if b.Name == "" {
		return nil, ErrorBucketNotConfigured
	}
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      "PUT",
		Expires:     time.Now().Add(ttl),
		ContentType: contentType,
	}
	if err := b.signWith(ctx, opts); err != nil {
		return nil, err
	}

	signed, err := storage.SignedURL(b.Name, key, opts)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", key, err)
	}
	return &SignedUpload{
		UploadURL: signed,
		Method:    opts.Method,
		Headers:   map[string]string{"Content-Type": contentType},
		ObjectKey: key,
		AccessURL: b.URL(key),
		ExpiresAt: opts.Expires,
	}, nil
}

// signWith fills the signer of opts. A private key (credentials JSON or
// GCS_SIGNER_PRIVATE_KEY) signs locally; otherwise the IAM SignBlob API
// signs as GCS_SIGNER_EMAIL or the instance's default account.
func (b *ImageBucket) signWith(ctx context.Context, opts *storage.SignedURLOptions) error {
	email, key, err := b.privateKeySigner()
	if err != nil {
		return err
	}
	if key != nil {
		opts.GoogleAccessID = email
		opts.PrivateKey = key
		return nil
	}

	if email == "" && metadata.OnGCE() {
		if email, err = metadata.Email("default"); err != nil {
			return fmt.Errorf("default service account: %w", err)
		}
	}
	if email == "" {
		return errors.New("GCS_SIGNER_EMAIL is required when no private key is provided")
	}
	creds, err := google.FindDefaultCredentials(ctx, iamcredentials.CloudPlatformScope)
	if err != nil {
		return fmt.Errorf("default credentials: %w", err)
	}
	svc, err := iamcredentials.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return fmt.Errorf("iamcredentials: %w", err)
	}

	name := "projects/-/serviceAccounts/" + email
	opts.GoogleAccessID = email
	opts.SignBytes = func(payload []byte) ([]byte, error) {
		resp, err := svc.Projects.ServiceAccounts.SignBlob(name, &iamcredentials.SignBlobRequest{
			Payload: base64.StdEncoding.EncodeToString(payload),
		}).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(resp.SignedBlob)
	}
	return nil
}

// privateKeySigner returns the signer email and, when one is configured,
// its PEM key. The email alone is returned for IAM signing.
func (b *ImageBucket) privateKeySigner() (string, []byte, error) {
	if b.credJSON != "" {
		var account struct {
			ClientEmail string `json:"client_email"`
			PrivateKey  string `json:"private_key"`
		}
		if err := json.Unmarshal([]byte(b.credJSON), &account); err != nil {
			return "", nil, fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
		}
		if account.ClientEmail != "" && account.PrivateKey != "" {
			return account.ClientEmail, pemBytes(account.PrivateKey), nil
		}
	}

	email := strings.TrimSpace(os.Getenv("GCS_SIGNER_EMAIL"))
	if key := strings.TrimSpace(os.Getenv("GCS_SIGNER_PRIVATE_KEY")); email != "" && key != "" {
		return email, pemBytes(key), nil
	}
	return email, nil, nil
}

// pemBytes undoes the \n escaping env files apply to PEM keys.
func pemBytes(key string) []byte {
	return []byte(strings.ReplaceAll(key, `\n`, "\n"))
}
