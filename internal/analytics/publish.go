package analytics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"assetsdb/internal/domain"
)

// PublishOptions locates the S3-compatible bucket receiving exports.
type PublishOptions struct {
	Endpoint        string // host[:port], no scheme
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	Region          string
	Secure          bool
}

// Publisher uploads close-matrix exports to object storage.
type Publisher struct {
	client *minio.Client
	bucket string
	prefix string
	log    *slog.Logger
}

// NewPublisher builds a Publisher. An empty region defaults to us-east-1 so
// no bucket-location lookup is made before uploads.
func NewPublisher(opts PublishOptions, log *slog.Logger) (*Publisher, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, errors.New("publish endpoint and bucket are required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.Secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object storage client: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		client: client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		log:    log.With("component", "publisher"),
	}, nil
}

// ObjectKey names the export of the matrix whose last row is asOf.
func (p *Publisher) ObjectKey(asOf time.Time) string {
	return path.Join(p.prefix, "close_"+domain.FormatDate(asOf)+".csv")
}

// Publish renders m as CSV and uploads it under ObjectKey of its last date.
// It returns the object key.
func (p *Publisher) Publish(ctx context.Context, m *CloseMatrix) (string, error) {
	if len(m.Dates) == 0 {
		return "", errors.New("close matrix is empty")
	}
	var buf bytes.Buffer
	if err := m.WriteCSV(&buf); err != nil {
		return "", fmt.Errorf("rendering close matrix: %w", err)
	}

	key := p.ObjectKey(m.Dates[len(m.Dates)-1])
	info, err := p.client.PutObject(ctx, p.bucket, key, &buf, int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		var minioErr minio.ErrorResponse
		if errors.As(err, &minioErr) {
			return "", fmt.Errorf("uploading %s/%s: status %d: %s", p.bucket, key, minioErr.StatusCode, minioErr.Message)
		}
		return "", fmt.Errorf("uploading %s/%s: %w", p.bucket, key, err)
	}
	p.log.Info("published close matrix", "bucket", p.bucket, "key", key, "bytes", info.Size)
	return key, nil
}
