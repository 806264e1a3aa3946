package persistent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu sync.Mutex

	objects  map[string][]byte
	sessions map[string]map[int32][]byte
	aborted  []string
	acls     []string
	nextID   int

	putErr      error
	aclErr      error
	completeErr error
	deleteErr   error
	failPart    int32

	// storedErr is returned after the object was committed
	storedErr error
	deletes   []string

	singlePuts int
	completed  []types.CompletedPart
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:  make(map[string][]byte),
		sessions: make(map[string]map[int32][]byte),
	}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return nil, f.putErr
	}

	b, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = b
	f.singlePuts++

	if f.storedErr != nil {
		return nil, f.storedErr
	}

	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.sessions[id] = make(map[int32][]byte)

	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id), Key: in.Key}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	n := aws.ToInt32(in.PartNumber)
	if f.failPart != 0 && n == f.failPart {
		return nil, errors.New("connection reset")
	}

	b, _ := io.ReadAll(in.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[aws.ToString(in.UploadId)][n] = b

	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", n))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.completeErr != nil {
		return nil, f.completeErr
	}

	session := f.sessions[aws.ToString(in.UploadId)]
	var buf bytes.Buffer
	for _, p := range in.MultipartUpload.Parts {
		buf.Write(session[aws.ToInt32(p.PartNumber)])
	}
	f.objects[aws.ToString(in.Key)] = buf.Bytes()
	f.completed = in.MultipartUpload.Parts
	delete(f.sessions, aws.ToString(in.UploadId))

	if f.storedErr != nil {
		return nil, f.storedErr
	}

	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.aborted = append(f.aborted, aws.ToString(in.UploadId))
	delete(f.sessions, aws.ToString(in.UploadId))

	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) PutObjectAcl(_ context.Context, in *s3.PutObjectAclInput, _ ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.aclErr != nil {
		return nil, f.aclErr
	}
	f.acls = append(f.acls, aws.ToString(in.Key))

	return &s3.PutObjectAclOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	delete(f.objects, aws.ToString(in.Key))

	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct {
	mu      sync.Mutex
	err     error
	lastTTL time.Duration
}

func (p *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}

	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	p.mu.Lock()
	p.lastTTL = opts.Expires
	p.mu.Unlock()

	return &v4.PresignedHTTPRequest{
		URL:    fmt.Sprintf("https://s3.test/%s/%s?X-Amz-Expires=%d", aws.ToString(in.Bucket), aws.ToString(in.Key), int(opts.Expires.Seconds())),
		Method: http.MethodGet,
	}, nil
}

func newTestStorage(api *fakeS3, presigner *fakePresigner, opts ...ObjectStorageOption) *ObjectStorage {
	return newObjectStorage(api, presigner, "catalog", logger.New("disabled"), opts...)
}

func payload(size int64) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestPartCount(t *testing.T) {
	tests := []struct {
		size int64
		want int
	}{
		{0, 0},
		{1, 1},
		{PartSize - 1, 1},
		{PartSize, 1},
		{PartSize + 1, 2},
		{3 * PartSize, 3},
		{3*PartSize + 7, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PartCount(tt.size), "size=%d", tt.size)
	}
}

func TestObjectStorage_Put_SizeThreshold(t *testing.T) {
	tests := []struct {
		name      string
		size      int64
		multipart bool
		parts     int
	}{
		{"tiny", 10, false, 0},
		{"just below threshold", MultipartThreshold - 1, false, 0},
		{"exactly threshold", MultipartThreshold, true, 1},
		{"two parts", MultipartThreshold + 1, true, 2},
		{"three full parts", 3 * PartSize, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeS3()
			st := newTestStorage(api, &fakePresigner{})
			data := payload(tt.size)

			out := st.Put(context.Background(), dto.MediaFile{Name: "A1_primary.jpg", Data: data}, "products", "rec-1")
			require.NoError(t, out.Err)
			assert.Equal(t, tt.multipart, out.Multipart)

			if tt.multipart {
				assert.Equal(t, 0, api.singlePuts)
				require.Len(t, api.completed, tt.parts)
				for i, p := range api.completed {
					assert.Equal(t, int32(i+1), aws.ToInt32(p.PartNumber))
					assert.Equal(t, fmt.Sprintf("etag-%d", i+1), aws.ToString(p.ETag))
				}
			} else {
				assert.Equal(t, 1, api.singlePuts)
				assert.Empty(t, api.completed)
			}

			assert.Equal(t, data, api.objects[out.ObjectKey])
		})
	}
}

func TestObjectStorage_Put_Outcome(t *testing.T) {
	api := newFakeS3()
	presigner := &fakePresigner{}
	st := newTestStorage(api, presigner)

	out := st.Put(context.Background(), dto.MediaFile{Name: "A1_red_1.PNG", Data: []byte("img")}, "products", "rec-1")
	require.NoError(t, out.Err)

	assert.True(t, strings.HasPrefix(out.ObjectKey, "products/rec-1/"))
	assert.True(t, strings.HasSuffix(out.ObjectKey, ".png"))
	assert.Equal(t, "image/png", out.ContentType)
	assert.Contains(t, out.URL, out.ObjectKey)
	assert.Contains(t, out.URL, "X-Amz-Expires=86400")
	assert.Equal(t, DefaultSignedURLTTL, presigner.lastTTL)
	assert.Equal(t, []string{out.ObjectKey}, api.acls)
}

func TestObjectStorage_Put_FreshKeys(t *testing.T) {
	api := newFakeS3()
	st := newTestStorage(api, &fakePresigner{})

	f := dto.MediaFile{Name: "A1_primary.jpg", Data: []byte("x")}
	a := st.Put(context.Background(), f, "products", "rec-1")
	b := st.Put(context.Background(), f, "products", "rec-1")

	require.NoError(t, a.Err)
	require.NoError(t, b.Err)
	assert.NotEqual(t, a.ObjectKey, b.ObjectKey)
	assert.Len(t, api.objects, 2)
}

func TestObjectStorage_Put_SingleFailure(t *testing.T) {
	api := newFakeS3()
	api.putErr = errors.New("timeout")
	st := newTestStorage(api, &fakePresigner{})

	out := st.Put(context.Background(), dto.MediaFile{Name: "a.jpg", Data: []byte("x")}, "products", "rec-1")

	assert.ErrorIs(t, out.Err, errs.ErrStorageTransport)
	assert.Empty(t, out.ObjectKey)
	assert.Empty(t, out.URL)
	assert.Empty(t, api.objects)
}

func TestObjectStorage_Put_MultipartPartFailureAborts(t *testing.T) {
	api := newFakeS3()
	api.failPart = 2
	st := newTestStorage(api, &fakePresigner{})

	out := st.Put(context.Background(), dto.MediaFile{Name: "clip.mp4", Data: payload(3 * PartSize)}, "products", "rec-1")

	assert.ErrorIs(t, out.Err, errs.ErrStorageTransport)
	assert.Equal(t, []string{"upload-1"}, api.aborted)
	assert.Empty(t, api.objects)
	assert.Empty(t, api.sessions)
}

func TestObjectStorage_Put_MultipartCompleteFailureAborts(t *testing.T) {
	api := newFakeS3()
	api.completeErr = errors.New("InvalidPart")
	st := newTestStorage(api, &fakePresigner{})

	out := st.Put(context.Background(), dto.MediaFile{Name: "clip.mp4", Data: payload(PartSize + 10)}, "products", "rec-1")

	assert.ErrorIs(t, out.Err, errs.ErrStorageTransport)
	assert.Equal(t, []string{"upload-1"}, api.aborted)
	assert.Empty(t, api.objects)
}

func TestObjectStorage_Put_CommittedBeforeErrorIsRemoved(t *testing.T) {
	tests := []struct {
		name string
		size int64
	}{
		{"single", 10},
		{"multipart", PartSize + 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeS3()
			api.storedErr = context.DeadlineExceeded
			st := newTestStorage(api, &fakePresigner{})

			out := st.Put(context.Background(), dto.MediaFile{Name: "a.jpg", Data: payload(tt.size)}, "products", "rec-1")

			assert.ErrorIs(t, out.Err, errs.ErrStorageTransport)
			assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
			assert.Empty(t, out.ObjectKey)
			assert.Empty(t, api.objects)
			assert.Len(t, api.deletes, 1)
		})
	}
}

func TestObjectStorage_Put_ACLFailureIsNotFatal(t *testing.T) {
	api := newFakeS3()
	api.aclErr = errors.New("AccessControlListNotSupported")
	st := newTestStorage(api, &fakePresigner{})

	out := st.Put(context.Background(), dto.MediaFile{Name: "a.jpg", Data: []byte("x")}, "products", "rec-1")

	require.NoError(t, out.Err)
	assert.NotEmpty(t, out.URL)
	assert.Contains(t, api.objects, out.ObjectKey)
}

func TestObjectStorage_Put_PublicReadDisabled(t *testing.T) {
	api := newFakeS3()
	st := newTestStorage(api, &fakePresigner{}, PublicRead(false))

	out := st.Put(context.Background(), dto.MediaFile{Name: "a.jpg", Data: []byte("x")}, "products", "rec-1")

	require.NoError(t, out.Err)
	assert.Empty(t, api.acls)
}

func TestObjectStorage_Put_SignFailureRemovesObject(t *testing.T) {
	api := newFakeS3()
	st := newTestStorage(api, &fakePresigner{err: errors.New("no credentials")})

	out := st.Put(context.Background(), dto.MediaFile{Name: "a.jpg", Data: []byte("x")}, "products", "rec-1")

	assert.ErrorIs(t, out.Err, errs.ErrStorageTransport)
	assert.Empty(t, api.objects)
}

func TestObjectStorage_SignedURL_TTL(t *testing.T) {
	presigner := &fakePresigner{}
	st := newTestStorage(newFakeS3(), presigner, SignedURLTTL(time.Hour))

	url, err := st.SignedURL(context.Background(), "products/x/y.jpg", 0)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, presigner.lastTTL)
	assert.Contains(t, url, "products/x/y.jpg")

	_, err = st.SignedURL(context.Background(), "products/x/y.jpg", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, presigner.lastTTL)
}

func TestObjectStorage_Delete_Idempotent(t *testing.T) {
	api := newFakeS3()
	st := newTestStorage(api, &fakePresigner{})

	require.NoError(t, st.Delete(context.Background(), "never/existed.jpg"))

	api.deleteErr = &types.NoSuchKey{}
	require.NoError(t, st.Delete(context.Background(), "never/existed.jpg"))

	api.deleteErr = errors.New("503 slow down")
	assert.ErrorIs(t, st.Delete(context.Background(), "some/key.jpg"), errs.ErrStorageTransport)
}

func TestObjectStorage_BulkPut_ReturnsEveryOutcome(t *testing.T) {
	api := newFakeS3()
	st := newTestStorage(api, &fakePresigner{})

	files := []dto.MediaFile{
		{Name: "A1_primary.jpg", Data: []byte("a")},
		{Name: "A1_red_1.jpg", Data: payload(PartSize + 1)},
		{Name: "A1_red_2.jpg", Data: []byte("c")},
	}
	api.failPart = 2 // only the multipart file fails

	outcomes := st.BulkPut(context.Background(), files, "products", "rec-1")
	require.Len(t, outcomes, 3)

	for i, o := range outcomes {
		assert.Equal(t, files[i].Name, o.FileName)
	}

	assert.True(t, outcomes[0].OK())
	assert.False(t, outcomes[1].OK())
	assert.True(t, outcomes[2].OK())
	assert.Len(t, api.objects, 2)
}
