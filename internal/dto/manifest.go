package dto

// ManifestItem is one item descriptor of a bulk ingestion manifest, as sent
// by the caller. It is normalized before any business logic sees it.
type ManifestItem struct {
	ProductID     string    `json:"productId"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CategoryID    string    `json:"categoryId"`
	SubcategoryID *string   `json:"subcategoryId,omitempty"`
	Price         *float64  `json:"price,omitempty"`
	Sizes         []string  `json:"sizes,omitempty"`
	Filters       []Filter  `json:"filters,omitempty"`
	Variants      []Variant `json:"variants,omitempty"`
	ScheduledDate string    `json:"scheduledDate,omitempty"`
	ScheduledTime string    `json:"scheduledTime,omitempty"`
}

type Filter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Variant struct {
	Color string `json:"color"`
	SKU   string `json:"sku,omitempty"`
}
