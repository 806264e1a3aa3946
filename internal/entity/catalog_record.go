package entity

import (
	"time"

	"github.com/google/uuid"
)

type CatalogRecord struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"external_id"`

	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	CategoryID    uuid.UUID  `json:"category_id"`
	SubcategoryID *uuid.UUID `json:"subcategory_id,omitempty"`
	Attributes    Attributes `json:"attributes"`

	Status Status       `json:"status"` // draft, scheduled, published
	Media  []MediaAsset `json:"media"`

	ScheduledDate *string    `json:"scheduled_date,omitempty"` // 2006-01-02
	ScheduledTime *string    `json:"scheduled_time,omitempty"` // 15:04
	PublishAt     *time.Time `json:"publish_at,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attributes holds the optional structured sub-fields of a manifest item.
type Attributes struct {
	Price    *float64  `json:"price,omitempty"`
	Sizes    []string  `json:"sizes,omitempty"`
	Filters  []Filter  `json:"filters,omitempty"`
	Variants []Variant `json:"variants,omitempty"`
}

type Filter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Variant struct {
	Color string `json:"color"`
	SKU   string `json:"sku,omitempty"`
}

// PrimaryMedia returns the primary asset, if the record has one.
func (r *CatalogRecord) PrimaryMedia() (MediaAsset, bool) {
	for _, m := range r.Media {
		if m.Primary {
			return m, true
		}
	}

	return MediaAsset{}, false
}
