package response

import (
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/entity"
)

type Record struct {
	ID            string            `json:"id"`
	ExternalID    string            `json:"externalId"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	CategoryID    string            `json:"categoryId"`
	SubcategoryID *string           `json:"subcategoryId,omitempty"`
	Attributes    entity.Attributes `json:"attributes"`
	Status        string            `json:"status"`
	ScheduledDate *string           `json:"scheduledDate,omitempty"`
	ScheduledTime *string           `json:"scheduledTime,omitempty"`
	PublishAt     *string           `json:"publishAt,omitempty"`
	PublishedAt   *string           `json:"publishedAt,omitempty"`
	Media         []Media           `json:"media"`
	CreatedAt     string            `json:"createdAt"`
	UpdatedAt     string            `json:"updatedAt"`
}

type Media struct {
	ObjectKey   string  `json:"objectKey"`
	URL         string  `json:"url"`
	Priority    int     `json:"priority"`
	Primary     bool    `json:"primary"`
	ColorGroup  *string `json:"colorGroup,omitempty"`
	Kind        string  `json:"kind"`
	ContentType string  `json:"contentType"`
	Size        int64   `json:"size"`
}

func NewRecord(r *entity.CatalogRecord) Record {
	resp := Record{
		ID:            r.ID.String(),
		ExternalID:    r.ExternalID,
		Name:          r.Name,
		Description:   r.Description,
		CategoryID:    r.CategoryID.String(),
		Attributes:    r.Attributes,
		Status:        string(r.Status),
		ScheduledDate: r.ScheduledDate,
		ScheduledTime: r.ScheduledTime,
		PublishAt:     formatTime(r.PublishAt),
		PublishedAt:   formatTime(r.PublishedAt),
		Media:         NewMedia(r.Media),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}

	if r.SubcategoryID != nil {
		s := r.SubcategoryID.String()
		resp.SubcategoryID = &s
	}

	return resp
}

func NewMedia(media []entity.MediaAsset) []Media {
	out := make([]Media, 0, len(media))
	for _, m := range media {
		out = append(out, Media{
			ObjectKey:   m.ObjectKey,
			URL:         m.URL,
			Priority:    m.Priority,
			Primary:     m.Primary,
			ColorGroup:  m.ColorGroup,
			Kind:        string(m.Kind),
			ContentType: m.ContentType,
			Size:        m.Size,
		})
	}

	return out
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
