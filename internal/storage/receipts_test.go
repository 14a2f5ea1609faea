package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, bucketName, objectName string, reader io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	f.bucket, f.key, f.contentType = bucketName, objectName, opts.ContentType
	f.body, _ = io.ReadAll(reader)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: int64(len(f.body))}, nil
}

func TestPutReceipt(t *testing.T) {
	putter := &fakePutter{}
	store := NewReceiptStore(putter, Config{Bucket: "receipts", Region: "ap-south-1"})

	url, err := store.PutReceipt(context.Background(), "BK1", []byte("%PDF-1.3"))
	require.NoError(t, err)

	assert.Equal(t, "receipts", putter.bucket)
	assert.Equal(t, "bookings/BK1/receipt.pdf", putter.key)
	assert.Equal(t, "application/pdf", putter.contentType)
	assert.Equal(t, []byte("%PDF-1.3"), putter.body)
	assert.Equal(t, "https://receipts.s3.ap-south-1.amazonaws.com/bookings/BK1/receipt.pdf", url)
}

func TestPutReceipt_SameKeyOnRetry(t *testing.T) {
	putter := &fakePutter{}
	store := NewReceiptStore(putter, Config{Bucket: "receipts", Region: "ap-south-1"})

	first, err := store.PutReceipt(context.Background(), "BK1", []byte("a"))
	require.NoError(t, err)
	second, err := store.PutReceipt(context.Background(), "BK1", []byte("b"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPutReceipt_PublicBaseURL(t *testing.T) {
	store := NewReceiptStore(&fakePutter{}, Config{Bucket: "receipts", PublicBaseURL: "https://cdn.example.com/r/"})

	url, err := store.PutReceipt(context.Background(), "BK 2", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/r/bookings/BK%202/receipt.pdf", url)
}

func TestPutReceipt_Failure(t *testing.T) {
	store := NewReceiptStore(&fakePutter{err: errors.New("access denied")}, Config{Bucket: "receipts"})

	_, err := store.PutReceipt(context.Background(), "BK1", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}
