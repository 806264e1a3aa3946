package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/google/uuid"
)

// itemSpec is a manifest item after normalization. Nothing downstream reads
// dto.ManifestItem directly.
type itemSpec struct {
	externalID    string
	name          string
	description   string
	categoryID    uuid.UUID
	subcategoryID *uuid.UUID
	attributes    entity.Attributes
	schedule      *entity.Schedule
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errs.ErrValidation}, args...)...)
}

// normalize trims, validates and resolves defaults of one manifest item.
func normalize(item dto.ManifestItem, loc *time.Location) (*itemSpec, error) {
	spec := &itemSpec{
		externalID:  strings.TrimSpace(item.ProductID),
		name:        strings.TrimSpace(item.Name),
		description: strings.TrimSpace(item.Description),
	}

	switch {
	case spec.externalID == "":
		return nil, validationf("productId is required")
	case strings.Contains(spec.externalID, "_"):
		// media file names use '_' as the separator
		return nil, validationf("productId %q must not contain '_'", spec.externalID)
	case spec.name == "":
		return nil, validationf("name is required")
	}

	categoryID := strings.TrimSpace(item.CategoryID)
	if categoryID == "" {
		return nil, validationf("categoryId is required")
	}
	id, err := uuid.Parse(categoryID)
	if err != nil {
		return nil, validationf("categoryId %q is not a valid id", categoryID)
	}
	spec.categoryID = id

	if item.SubcategoryID != nil {
		if sub := strings.TrimSpace(*item.SubcategoryID); sub != "" {
			id, err := uuid.Parse(sub)
			if err != nil {
				return nil, validationf("subcategoryId %q is not a valid id", sub)
			}
			spec.subcategoryID = &id
		}
	}

	spec.attributes, err = normalizeAttributes(item)
	if err != nil {
		return nil, err
	}

	spec.schedule, err = entity.ParseSchedule(item.ScheduledDate, item.ScheduledTime, loc)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

func normalizeAttributes(item dto.ManifestItem) (entity.Attributes, error) {
	var attrs entity.Attributes

	if item.Price != nil {
		if *item.Price < 0 {
			return attrs, validationf("price must not be negative")
		}
		price := *item.Price
		attrs.Price = &price
	}

	seen := make(map[string]struct{}, len(item.Sizes))
	for i, size := range item.Sizes {
		size = strings.TrimSpace(size)
		if size == "" {
			return attrs, validationf("sizes[%d] is empty", i)
		}
		if _, ok := seen[size]; ok {
			return attrs, validationf("size %q is listed twice", size)
		}
		seen[size] = struct{}{}
		attrs.Sizes = append(attrs.Sizes, size)
	}

	for i, f := range item.Filters {
		key, value := strings.TrimSpace(f.Key), strings.TrimSpace(f.Value)
		if key == "" || value == "" {
			return attrs, validationf("filters[%d] needs both key and value", i)
		}
		attrs.Filters = append(attrs.Filters, entity.Filter{Key: key, Value: value})
	}

	for i, v := range item.Variants {
		color := strings.TrimSpace(v.Color)
		if color == "" {
			return attrs, validationf("variants[%d] has no color", i)
		}
		attrs.Variants = append(attrs.Variants, entity.Variant{Color: color, SKU: strings.TrimSpace(v.SKU)})
	}

	return attrs, nil
}
