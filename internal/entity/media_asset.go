package entity

import (
	"time"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

type MediaAsset struct {
	ID       uuid.UUID `json:"id"`
	RecordID uuid.UUID `json:"record_id"`

	ObjectKey string `json:"object_key"`
	URL       string `json:"url"` // signed, expires

	// Priority is the position in the record's media list, 0 is primary.
	Priority   int       `json:"priority"`
	Primary    bool      `json:"primary"`
	ColorGroup *string   `json:"color_group,omitempty"`
	Ordinal    int       `json:"ordinal"`
	Kind       MediaKind `json:"kind"`

	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	OriginalName string `json:"original_name"`

	CreatedAt time.Time `json:"created_at"`
}
