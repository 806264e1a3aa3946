package ingestion

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/pkg/mediatype"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/google/uuid"
)

type pooledFile struct {
	desc dto.MediaDescriptor
	file dto.MediaFile
}

// filePool is the batch's uploaded files, grouped by folded external id.
type filePool struct {
	byID      map[string][]pooledFile
	unmatched []string
}

func newFilePool(files []dto.MediaFile) *filePool {
	p := &filePool{byID: make(map[string][]pooledFile)}

	for _, f := range files {
		desc, ok := ParseFileName(f.Name)
		if !ok {
			p.unmatched = append(p.unmatched, f.Name)
			continue
		}
		key := externalIDKey(desc.ExternalID)
		p.byID[key] = append(p.byID[key], pooledFile{desc: desc, file: f})
	}

	return p
}

// take hands out the files of externalID. Each group is handed out once.
func (p *filePool) take(externalID string) []pooledFile {
	key := externalIDKey(externalID)
	files := p.byID[key]
	delete(p.byID, key)

	return files
}

// leftovers lists names that no item claimed, sorted.
func (p *filePool) leftovers() []string {
	names := slices.Clone(p.unmatched)
	for _, files := range p.byID {
		for _, f := range files {
			names = append(names, f.file.Name)
		}
	}
	slices.Sort(names)

	return names
}

// selectMedia checks the primary constraint and returns files in their final
// order: primary first, then by ordinal, color group and name.
func selectMedia(externalID string, files []pooledFile, requirePrimary bool) ([]pooledFile, error) {
	primaries := 0
	for _, f := range files {
		if f.desc.Primary {
			primaries++
		}
	}

	switch {
	case primaries == 0 && requirePrimary:
		return nil, newItemError(
			KindNoPrimary,
			fmt.Sprintf("No primary image found for productId: %s", externalID),
			errs.ErrNoPrimaryMedia,
		)
	case primaries > 1:
		return nil, validationf("productId %s has %d primary files", externalID, primaries)
	}

	ordered := slices.Clone(files)
	slices.SortStableFunc(ordered, func(a, b pooledFile) int {
		if a.desc.Primary != b.desc.Primary {
			if a.desc.Primary {
				return -1
			}
			return 1
		}

		return cmp.Or(
			cmp.Compare(a.desc.Ordinal, b.desc.Ordinal),
			strings.Compare(a.desc.ColorGroup, b.desc.ColorGroup),
			strings.Compare(a.file.Name, b.file.Name),
		)
	})

	return ordered, nil
}

func mediaFiles(files []pooledFile) []dto.MediaFile {
	out := make([]dto.MediaFile, len(files))
	for i, f := range files {
		out[i] = f.file
	}

	return out
}

// buildAssets pairs ordered files with their outcomes. outcomes[i] belongs to
// files[i]; Priority is the final position.
func buildAssets(recordID uuid.UUID, files []pooledFile, outcomes []dto.UploadOutcome, now time.Time) []entity.MediaAsset {
	assets := make([]entity.MediaAsset, len(files))

	for i, f := range files {
		o := outcomes[i]

		var colorGroup *string
		if !f.desc.Primary {
			group := f.desc.ColorGroup
			colorGroup = &group
		}

		assets[i] = entity.MediaAsset{
			ID:           uuid.New(),
			RecordID:     recordID,
			ObjectKey:    o.ObjectKey,
			URL:          o.URL,
			Priority:     i,
			Primary:      f.desc.Primary,
			ColorGroup:   colorGroup,
			Ordinal:      f.desc.Ordinal,
			Kind:         entity.MediaKind(mediatype.Kind(o.ContentType)),
			ContentType:  o.ContentType,
			Size:         o.Size,
			OriginalName: f.file.Name,
			CreatedAt:    now,
		}
	}

	return assets
}

// uploadFailure summarizes failed outcomes. Some successes make it a
// partial upload, none a transport failure.
func uploadFailure(externalID string, outcomes []dto.UploadOutcome) error {
	var (
		failed  []string
		cause   error
		success int
	)
	for _, o := range outcomes {
		if o.OK() {
			success++
			continue
		}
		failed = append(failed, o.FileName)
		if cause == nil {
			cause = o.Err
		}
	}

	if len(failed) == 0 {
		return nil
	}

	sentinel := errs.ErrStorageTransport
	kind := KindStorage
	if success > 0 {
		sentinel = errs.ErrPartialUpload
		kind = KindPartialUpload
	}

	return newItemError(
		kind,
		fmt.Sprintf("upload failed for productId %s (%d of %d files): %s", externalID, len(failed), len(outcomes), strings.Join(failed, ", ")),
		fmt.Errorf("%w: %w", sentinel, cause),
	)
}
