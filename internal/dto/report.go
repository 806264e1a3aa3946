package dto

import "time"

// IngestionReport is the per-item breakdown of one bulk ingestion call.
type IngestionReport struct {
	Successful   []IngestedItem `json:"successful"`
	Failed       []FailedItem   `json:"failed"`
	SkippedFiles []string       `json:"skippedFiles,omitempty"`
}

type IngestedItem struct {
	ExternalID string          `json:"externalId"`
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	PublishAt  *time.Time      `json:"publishAt,omitempty"`
	Media      []IngestedMedia `json:"media"`
}

type IngestedMedia struct {
	ObjectKey  string  `json:"objectKey"`
	URL        string  `json:"url"`
	Priority   int     `json:"priority"`
	Primary    bool    `json:"primary"`
	ColorGroup *string `json:"colorGroup,omitempty"`
	Kind       string  `json:"kind"`
}

type FailedItem struct {
	ExternalID string `json:"externalId"`
	Error      string `json:"error"`
	Kind       string `json:"kind"`
}
