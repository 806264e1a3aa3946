package dto

// MediaFile is an uploaded, not yet associated file of a batch.
type MediaFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f MediaFile) Size() int64 {
	return int64(len(f.Data))
}

// MediaDescriptor is what a file name encodes about the file.
type MediaDescriptor struct {
	ExternalID string
	Primary    bool
	ColorGroup string // empty for primary
	Ordinal    int    // 0 for primary
	Ext        string // without the dot
}

// UploadOutcome is the result of one put: either ObjectKey and URL are set,
// or Err is.
type UploadOutcome struct {
	FileName    string
	ObjectKey   string
	URL         string
	ContentType string
	Size        int64
	Multipart   bool
	Err         error
}

func (o UploadOutcome) OK() bool {
	return o.Err == nil
}
