package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	mu      sync.Mutex
	records map[uuid.UUID]*entity.CatalogRecord
}

func (c *fakeCatalog) Create(context.Context, *entity.CatalogRecord) error      { return nil }
func (c *fakeCatalog) ExistsByExternalID(context.Context, string) (bool, error) { return false, nil }
func (c *fakeCatalog) InsertMedia(context.Context, []entity.MediaAsset) error   { return nil }
func (c *fakeCatalog) UpdateStatus(context.Context, uuid.UUID, entity.StatusChange, time.Time) (bool, error) {
	return false, nil
}
func (c *fakeCatalog) ListDue(context.Context, time.Time, uuid.UUID, int) ([]entity.DueRecord, error) {
	return nil, nil
}

func (c *fakeCatalog) GetByExternalID(_ context.Context, externalID string) (*entity.CatalogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.records {
		if strings.EqualFold(r.ExternalID, externalID) {
			cp := *r
			cp.Media = append([]entity.MediaAsset(nil), r.Media...)
			return &cp, nil
		}
	}
	return nil, errs.ErrRecordNotFound
}

func (c *fakeCatalog) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[id]; !ok {
		return errs.ErrRecordNotFound
	}
	delete(c.records, id)
	return nil
}

type fakeStorage struct {
	signs   int
	signErr error
	deleted []string
}

func (s *fakeStorage) Put(context.Context, dto.MediaFile, string, string) dto.UploadOutcome {
	return dto.UploadOutcome{}
}
func (s *fakeStorage) BulkPut(context.Context, []dto.MediaFile, string, string) []dto.UploadOutcome {
	return nil
}

func (s *fakeStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	s.signs++
	return "https://signed.example/" + key + "?ttl=" + ttl.String(), nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	if key == "products/broken" {
		return errors.New("access denied")
	}
	return nil
}

type fakeOutbox struct {
	processing uuid.UUIDs
	processed  uuid.UUIDs
	retried    uuid.UUIDs
	olderThan  time.Time
}

func (o *fakeOutbox) Create(context.Context, *entity.OutboxEvent) error { return nil }
func (o *fakeOutbox) GetPendingEvents(context.Context, int, int) ([]*entity.OutboxEvent, error) {
	return nil, nil
}
func (o *fakeOutbox) MarkAsProcessingBatch(_ context.Context, ids uuid.UUIDs) error {
	o.processing = ids
	return nil
}
func (o *fakeOutbox) MarkAsProcessedBatch(_ context.Context, ids uuid.UUIDs) error {
	o.processed = ids
	return nil
}
func (o *fakeOutbox) MarkMaxRetriesAsFailed(context.Context, int) error { return nil }
func (o *fakeOutbox) IncrementRetryCountBatch(_ context.Context, ids uuid.UUIDs) error {
	o.retried = ids
	return nil
}
func (o *fakeOutbox) DeleteOldProcessedAndFailed(_ context.Context, olderThan time.Time) (int64, error) {
	o.olderThan = olderThan
	return 3, nil
}

func newCatalog(records ...entity.CatalogRecord) *fakeCatalog {
	c := &fakeCatalog{records: make(map[uuid.UUID]*entity.CatalogRecord)}
	for i := range records {
		r := records[i]
		c.records[r.ID] = &r
	}
	return c
}

func record(externalID string, keys ...string) entity.CatalogRecord {
	r := entity.CatalogRecord{ID: uuid.New(), ExternalID: externalID, Status: entity.Draft}
	for i, k := range keys {
		r.Media = append(r.Media, entity.MediaAsset{ObjectKey: k, Priority: i, Primary: i == 0})
	}
	return r
}

func TestGetSignsAndCaches(t *testing.T) {
	c := newCatalog(record("A1", "products/a/1.jpg", "products/a/2.jpg"))
	s := &fakeStorage{}
	uc := New(c, &fakeOutbox{}, s, logger.New("disabled"), SignedURLTTL(time.Hour))

	r, err := uc.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, r.Media, 2)
	assert.Equal(t, "https://signed.example/products/a/1.jpg?ttl=1h0m0s", r.Media[0].URL)
	assert.Equal(t, 2, s.signs)

	media, err := uc.MediaURLs(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, r.Media[1].URL, media[1].URL)
	assert.Equal(t, 2, s.signs, "second read is served from cache")
}

func TestGetErrors(t *testing.T) {
	c := newCatalog(record("A1", "products/a/1.jpg"))
	s := &fakeStorage{signErr: errors.New("no credentials")}
	uc := New(c, &fakeOutbox{}, s, logger.New("disabled"))

	_, err := uc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)

	_, err = uc.Get(context.Background(), "A1")
	assert.ErrorIs(t, err, errs.ErrStorageTransport)
}

func TestDelete(t *testing.T) {
	r := record("D1", "products/broken", "products/d/2.jpg")
	c := newCatalog(r)
	s := &fakeStorage{}
	uc := New(c, &fakeOutbox{}, s, logger.New("disabled"))

	require.NoError(t, uc.Delete(context.Background(), "D1"))
	assert.Equal(t, []string{"products/broken", "products/d/2.jpg"}, s.deleted)

	_, err := c.GetByExternalID(context.Background(), "D1")
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)

	err = uc.Delete(context.Background(), "D1")
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)
}

func TestOutboxBookkeeping(t *testing.T) {
	o := &fakeOutbox{}
	uc := New(newCatalog(), o, &fakeStorage{}, logger.New("disabled"), OutboxRetention(time.Hour))
	ctx := context.Background()

	events := []*entity.OutboxEvent{{ID: uuid.New()}, {ID: uuid.New()}}
	want := uuid.UUIDs{events[0].ID, events[1].ID}

	require.NoError(t, uc.MarkAsProcessingBatch(ctx, events))
	require.NoError(t, uc.MarkAsProcessedBatch(ctx, events))
	require.NoError(t, uc.IncrementRetryCountBatch(ctx, events))
	assert.Equal(t, want, o.processing)
	assert.Equal(t, want, o.processed)
	assert.Equal(t, want, o.retried)

	before := time.Now()
	require.NoError(t, uc.CleanupOutbox(ctx))
	assert.WithinDuration(t, before.Add(-time.Hour), o.olderThan, time.Second)
}
