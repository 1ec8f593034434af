package gcs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	pingTimeout        = 5 * time.Second
	defaultDownloadTTL = 15 * time.Minute
	maxSignedURLTTL    = 7 * 24 * time.Hour
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// signer holds what storage.SignedURL needs to sign on behalf of a service
// account: either its private key or an IAM SignBlob callback.
type signer struct {
	accessID   string
	privateKey []byte
	signBytes  func([]byte) ([]byte, error)
}

type Client struct {
	storage       *storage.Client
	defaultBucket string
	downloadTTL   time.Duration
	signer        signer
	now           func() time.Time
}

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var (
		opts     []option.ClientOption
		credsRaw []byte
	)
	switch {
	case gcp.CredentialsJSON != "":
		credsRaw = []byte(gcp.CredentialsJSON)
		opts = append(opts, option.WithCredentialsJSON(credsRaw))
	case gcp.ApplicationCredentials != "":
		raw, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		credsRaw = raw
		opts = append(opts, option.WithCredentialsJSON(credsRaw))
	}

	sgn, err := newSigner(ctx, credsRaw, cfg.SignerEmail, opts)
	if err != nil {
		return nil, err
	}

	sc, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	client := &Client{
		storage:       sc,
		defaultBucket: cfg.BucketName,
		downloadTTL:   cfg.DownloadURLExpiry,
		signer:        sgn,
		now:           time.Now,
	}

	if err := client.Ping(ctx); err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}

	return client, nil
}

// newSigner prefers the service account key from the credentials; without
// one it signs through the IAM credentials API as signerEmail.
func newSigner(ctx context.Context, credsRaw []byte, signerEmail string, opts []option.ClientOption) (signer, error) {
	if len(credsRaw) > 0 {
		var key serviceAccountKey
		if err := json.Unmarshal(credsRaw, &key); err != nil {
			return signer{}, fmt.Errorf("parsing service account credentials: %w", err)
		}
		if key.ClientEmail != "" && key.PrivateKey != "" {
			return signer{accessID: key.ClientEmail, privateKey: []byte(key.PrivateKey)}, nil
		}
	}

	email := strings.TrimSpace(signerEmail)
	if email == "" {
		return signer{}, errors.New("gcs signer email is required when credentials carry no private key")
	}
	iam, err := iamcredentials.NewService(ctx, opts...)
	if err != nil {
		return signer{}, fmt.Errorf("creating iam credentials client: %w", err)
	}
	name := fmt.Sprintf("projects/-/serviceAccounts/%s", email)
	return signer{
		accessID: email,
		signBytes: func(payload []byte) ([]byte, error) {
			resp, err := iam.Projects.ServiceAccounts.SignBlob(name, &iamcredentials.SignBlobRequest{
				Payload: base64.StdEncoding.EncodeToString(payload),
			}).Do()
			if err != nil {
				return nil, err
			}
			return base64.StdEncoding.DecodeString(resp.SignedBlob)
		},
	}, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Close() error {
	if c == nil || c.storage == nil {
		return nil
	}
	return c.storage.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.storage == nil {
		return errors.New("gcs client not initialized")
	}
	if c.defaultBucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.storage.Bucket(c.defaultBucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket check failed: %w", err)
	}
	return nil
}

// SignedReadURL returns a V4 signed GET URL for object in the default bucket.
// A non-positive ttl falls back to the configured download expiry.
func (c *Client) SignedReadURL(object string, ttl time.Duration) (string, time.Time, error) {
	if c == nil {
		return "", time.Time{}, errors.New("gcs client not initialized")
	}
	object = strings.TrimPrefix(strings.TrimSpace(object), "/")
	if object == "" {
		return "", time.Time{}, errors.New("object name is required")
	}
	if c.signer.accessID == "" || (len(c.signer.privateKey) == 0 && c.signer.signBytes == nil) {
		return "", time.Time{}, errors.New("gcs signer not configured")
	}
	if ttl <= 0 {
		ttl = c.downloadTTL
	}
	if ttl <= 0 {
		ttl = defaultDownloadTTL
	}
	if ttl > maxSignedURLTTL {
		ttl = maxSignedURLTTL
	}

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	expires := now().UTC().Add(ttl)
	signed, err := storage.SignedURL(c.defaultBucket, object, &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         http.MethodGet,
		Expires:        expires,
		GoogleAccessID: c.signer.accessID,
		PrivateKey:     c.signer.privateKey,
		SignBytes:      c.signer.signBytes,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing download url: %w", err)
	}
	return signed, expires, nil
}
