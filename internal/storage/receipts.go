package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const pdfContentType = "application/pdf"

// ObjectPutter is the subset of *minio.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
}

// ReceiptStore writes receipts to an S3 compatible bucket under a
// deterministic key, so a retried upload overwrites the previous object.
type ReceiptStore struct {
	client  ObjectPutter
	bucket  string
	baseURL string
}

func NewMinioClient(cfg Config) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3." + cfg.Region + ".amazonaws.com"
	}
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

func NewReceiptStore(client ObjectPutter, cfg Config) *ReceiptStore {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &ReceiptStore{client: client, bucket: cfg.Bucket, baseURL: base}
}

// URL is the public address of key. It is derived from configuration, not
// from the upload response.
func (s *ReceiptStore) URL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// Put uploads data under key and returns its public URL.
func (s *ReceiptStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s/%s: %v", domain.ErrStorage, s.bucket, key, err)
	}
	return s.URL(key), nil
}

// PutReceipt stores a booking's receipt at bookings/{id}/receipt.pdf.
func (s *ReceiptStore) PutReceipt(ctx context.Context, bookingID string, pdf []byte) (string, error) {
	return s.Put(ctx, domain.ReceiptKey(bookingID), pdf, pdfContentType)
}
