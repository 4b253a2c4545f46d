package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/menta2k/vision-lens/internal/utils"
	"github.com/menta2k/vision-lens/pkg/client"
	"github.com/menta2k/vision-lens/pkg/types"
)

// Config points at an S3 compatible bucket that serves objects publicly
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicBaseURL replaces the endpoint in returned URLs, e.g. a CDN host
	PublicBaseURL string
}

// Store uploads images to a MinIO or S3 bucket
type Store struct {
	client  *minio.Client
	cfg     Config
	newName func() string
}

// New validates the config and builds the client. No request is sent here.
func New(cfg Config) (*Store, error) {
	var missing []string
	if cfg.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if cfg.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		missing = append(missing, "credentials")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: object store %s not set", client.ErrConfig, strings.Join(missing, ", "))
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", client.ErrConfig, err)
	}

	return &Store{client: cli, cfg: cfg, newName: uuid.NewString}, nil
}

// ObjectKey returns the key used for a file name
func (s *Store) ObjectKey(name string) string {
	name = utils.SanitizeFilename(path.Base(name))
	if name == "" || name == "." {
		name = "upload"
	}
	return s.newName() + "/" + name
}

// URL returns the public URL of an object key
func (s *Store) URL(key string) string {
	base := s.cfg.PublicBaseURL
	if base == "" {
		base = s.client.EndpointURL().String()
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(base, "/"), s.cfg.Bucket, key)
}

// Upload puts the file in the bucket and returns its public URL
func (s *Store) Upload(ctx context.Context, file types.Upload) (string, error) {
	if len(file.Data) == 0 {
		return "", fmt.Errorf("empty file")
	}
	key := s.ObjectKey(file.Name)

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(file.Data), int64(len(file.Data)), minio.PutObjectOptions{
		ContentType: http.DetectContentType(file.Data),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", client.ErrTransport, err)
	}
	return s.URL(key), nil
}
