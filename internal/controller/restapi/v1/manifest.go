package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
)

// decodeManifest reads the manifest form field: a JSON array of item
// descriptors. Unknown fields are rejected.
func decodeManifest(raw string) ([]dto.ManifestItem, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var items []dto.ManifestItem
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid manifest: trailing data after the item array")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("manifest has no items")
	}

	return items, nil
}

// readFiles loads the files parts into memory, enforcing the per-file and
// per-batch byte limits.
func readFiles(headers []*multipart.FileHeader, limits UploadLimits) ([]dto.MediaFile, error) {
	files := make([]dto.MediaFile, 0, len(headers))

	var total int64
	for _, fh := range headers {
		if limits.MaxFileSize > 0 && fh.Size > limits.MaxFileSize {
			return nil, fmt.Errorf("file %s is larger than %d bytes", fh.Filename, limits.MaxFileSize)
		}

		total += fh.Size
		if limits.MaxBatchBytes > 0 && total > limits.MaxBatchBytes {
			return nil, fmt.Errorf("files exceed the batch limit of %d bytes", limits.MaxBatchBytes)
		}

		data, err := readFile(fh)
		if err != nil {
			return nil, fmt.Errorf("read file %s: %w", fh.Filename, err)
		}

		files = append(files, dto.MediaFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return files, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
