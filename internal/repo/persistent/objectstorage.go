package persistent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/andreyxaxa/catalog-ingest/pkg/mediatype"
	"github.com/andreyxaxa/catalog-ingest/pkg/s3client"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

const (
	// MultipartThreshold is the payload size from which put switches to a
	// multipart upload.
	MultipartThreshold int64 = 5 * 1024 * 1024
	// PartSize is the size of every multipart part except the last one.
	PartSize int64 = 5 * 1024 * 1024

	DefaultSignedURLTTL = 24 * time.Hour

	strategySingle    = "single"
	strategyMultipart = "multipart"

	_cleanupTimeout = 30 * time.Second
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_storage_uploads_total",
		Help: "Object uploads by strategy and result.",
	}, []string{"strategy", "result"})

	multipartAbortsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_storage_multipart_aborts_total",
		Help: "Multipart upload sessions aborted after a part or completion failure.",
	})

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_storage_upload_bytes",
		Help:    "Size of uploaded objects in bytes.",
		Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
	})
)

// S3API is the subset of *s3.Client the object storage needs.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	PutObjectAcl(ctx context.Context, in *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is the subset of *s3.PresignClient the object storage needs.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type ObjectStorage struct {
	api       S3API
	presigner Presigner
	bucket    string

	publicRead      bool
	signedURLTTL    time.Duration
	partConcurrency int

	logger logger.Interface
}

type ObjectStorageOption func(*ObjectStorage)

// PublicRead toggles the best-effort public-read ACL applied after a put.
func PublicRead(enabled bool) ObjectStorageOption {
	return func(s *ObjectStorage) {
		s.publicRead = enabled
	}
}

func SignedURLTTL(ttl time.Duration) ObjectStorageOption {
	return func(s *ObjectStorage) {
		if ttl > 0 {
			s.signedURLTTL = ttl
		}
	}
}

// PartConcurrency bounds in-flight part uploads of one multipart session.
// Zero uploads every part at once.
func PartConcurrency(n int) ObjectStorageOption {
	return func(s *ObjectStorage) {
		s.partConcurrency = n
	}
}

func NewObjectStorage(s3c *s3client.S3Client, bucket string, l logger.Interface, opts ...ObjectStorageOption) *ObjectStorage {
	return newObjectStorage(s3c.Client, s3c.Presign, bucket, l, opts...)
}

func newObjectStorage(api S3API, presigner Presigner, bucket string, l logger.Interface, opts ...ObjectStorageOption) *ObjectStorage {
	s := &ObjectStorage{
		api:          api,
		presigner:    presigner,
		bucket:       bucket,
		publicRead:   true,
		signedURLTTL: DefaultSignedURLTTL,
		logger:       l,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PartCount is the number of multipart parts for a payload of size bytes.
func PartCount(size int64) int {
	if size <= 0 {
		return 0
	}

	return int((size + PartSize - 1) / PartSize)
}

// UsesMultipart reports whether a payload of size bytes goes through the
// multipart path.
func UsesMultipart(size int64) bool {
	return size >= MultipartThreshold
}

// Put stores one payload under a fresh key below folder/entityID and returns
// its key and a signed read URL. A failed put never leaves an object behind.
func (s *ObjectStorage) Put(ctx context.Context, file dto.MediaFile, folder, entityID string) dto.UploadOutcome {
	contentType := mediatype.Resolve(file.Name, file.ContentType)
	key := objectKey(folder, entityID, file.Name)
	size := file.Size()

	outcome := dto.UploadOutcome{
		FileName:    file.Name,
		ContentType: contentType,
		Size:        size,
		Multipart:   UsesMultipart(size),
	}

	strategy := strategySingle
	var err error
	if outcome.Multipart {
		strategy = strategyMultipart
		err = s.putMultipart(ctx, key, contentType, file.Data)
	} else {
		err = s.putSingle(ctx, key, contentType, file.Data)
	}
	if err != nil {
		uploadsTotal.WithLabelValues(strategy, "error").Inc()
		outcome.Err = fmt.Errorf("%w: ObjectStorage - Put - %s %q: %w", errs.ErrStorageTransport, strategy, file.Name, err)

		return outcome
	}

	uploadsTotal.WithLabelValues(strategy, "ok").Inc()
	uploadBytes.Observe(float64(size))

	if s.publicRead {
		s.allowPublicRead(ctx, key)
	}

	url, err := s.SignedURL(ctx, key, s.signedURLTTL)
	if err != nil {
		// an object nobody can reference is an orphan
		s.deleteQuietly(ctx, key, "ObjectStorage - Put - s.SignedURL")
		outcome.Err = fmt.Errorf("%w: ObjectStorage - Put - s.SignedURL: %w", errs.ErrStorageTransport, err)

		return outcome
	}

	outcome.ObjectKey = key
	outcome.URL = url

	return outcome
}

// BulkPut puts every file concurrently and returns one outcome per file, in
// input order. It never short-circuits on a failed file.
func (s *ObjectStorage) BulkPut(ctx context.Context, files []dto.MediaFile, folder, entityID string) []dto.UploadOutcome {
	outcomes := make([]dto.UploadOutcome, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = s.Put(ctx, f, folder, entityID)
		}()
	}
	wg.Wait()

	return outcomes
}

// SignedURL returns a GET-scoped presigned URL for key valid for ttl, or for
// the configured default when ttl is not positive.
func (s *ObjectStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.signedURLTTL
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("ObjectStorage - SignedURL - s.presigner.PresignGetObject: %w", err)
	}

	return req.URL, nil
}

// Delete removes key. A key that does not exist is not an error.
func (s *ObjectStorage) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: ObjectStorage - Delete - s.api.DeleteObject: %w", errs.ErrStorageTransport, err)
	}

	return nil
}

func (s *ObjectStorage) putSingle(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		// the store may have committed the object before the client gave up
		s.deleteQuietly(ctx, key, "ObjectStorage - putSingle")
		return fmt.Errorf("s.api.PutObject: %w", err)
	}

	return nil
}

// putMultipart runs initiate, concurrent part uploads and complete. Any
// failure after initiate aborts the session so no partial object survives,
// and a failed complete also removes the key.
func (s *ObjectStorage) putMultipart(ctx context.Context, key, contentType string, data []byte) error {
	created, err := s.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s.api.CreateMultipartUpload: %w", err)
	}
	uploadID := aws.ToString(created.UploadId)

	parts, err := s.uploadParts(ctx, key, uploadID, data)
	if err != nil {
		s.abort(ctx, key, uploadID)
		return err
	}

	_, err = s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		// a completion that failed on the client may still have committed
		s.abort(ctx, key, uploadID)
		s.deleteQuietly(ctx, key, "ObjectStorage - putMultipart")
		return fmt.Errorf("s.api.CompleteMultipartUpload: %w", err)
	}

	return nil
}

// uploadParts returns the completed parts ordered by part number, 1-indexed.
func (s *ObjectStorage) uploadParts(ctx context.Context, key, uploadID string, data []byte) ([]types.CompletedPart, error) {
	size := int64(len(data))
	count := PartCount(size)
	parts := make([]types.CompletedPart, count)

	g, gctx := errgroup.WithContext(ctx)
	if s.partConcurrency > 0 {
		g.SetLimit(s.partConcurrency)
	}

	for i := 0; i < count; i++ {
		partNumber := int32(i + 1)
		start := int64(i) * PartSize
		end := min(start+PartSize, size)
		body := data[start:end]

		g.Go(func() error {
			out, err := s.api.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        aws.String(s.bucket),
				Key:           aws.String(key),
				UploadId:      aws.String(uploadID),
				PartNumber:    aws.Int32(partNumber),
				Body:          bytes.NewReader(body),
				ContentLength: aws.Int64(int64(len(body))),
			})
			if err != nil {
				return fmt.Errorf("s.api.UploadPart %d/%d: %w", partNumber, count, err)
			}

			parts[partNumber-1] = types.CompletedPart{
				ETag:       out.ETag,
				PartNumber: aws.Int32(partNumber),
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return parts, nil
}

func (s *ObjectStorage) abort(ctx context.Context, key, uploadID string) {
	multipartAbortsTotal.Inc()

	// the caller's deadline may be what failed the upload
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _cleanupTimeout)
	defer cancel()

	_, err := s.api.AbortMultipartUpload(abortCtx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil && !isNotFound(err) {
		s.logger.Error(err, "ObjectStorage - abort - s.api.AbortMultipartUpload key=%s upload_id=%s", key, uploadID)
	}
}

func (s *ObjectStorage) allowPublicRead(ctx context.Context, key string) {
	_, err := s.api.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		s.logger.Warn("ObjectStorage - allowPublicRead - key=%s, signed URL stays the only access path: %v", key, err)
	}
}

func (s *ObjectStorage) deleteQuietly(ctx context.Context, key, caller string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _cleanupTimeout)
	defer cancel()

	if err := s.Delete(delCtx, key); err != nil {
		s.logger.Error(err, "%s - s.Delete key=%s", caller, key)
	}
}

// objectKey never reuses a key: bytes at an existing key are never
// overwritten.
func objectKey(folder, entityID, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = "products"
	}

	ext := strings.ToLower(filepath.Ext(name))

	return path.Join(folder, entityID, uuid.NewString()+ext)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var noSuchUpload *types.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchUpload":
			return true
		}
	}

	return false
}
