package models

// Blob is a media reference stored in a document property. Exactly one of
// Path or Bucket+Key locates the bytes.
type Blob struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Length   int64  `json:"length,omitempty"`

	Path   string `json:"path,omitempty"`
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key,omitempty"`

	// Temporary marks a local file the pipeline created and must remove.
	Temporary bool `json:"-"`
}

// IsLocal reports whether the blob points at a file on disk.
func (b Blob) IsLocal() bool {
	return b.Path != ""
}

// IsRemote reports whether the blob lives in an object store.
func (b Blob) IsRemote() bool {
	return b.Bucket != "" && b.Key != ""
}

// RelatedText is one entry of a document's full-text side index.
type RelatedText struct {
	ID   string `json:"relatedtextid"`
	Text string `json:"relatedtext"`
}

// DocumentContext is the payload attached to document events.
type DocumentContext struct {
	Repository string `json:"repository"`
	DocRef     string `json:"doc_ref"`
	Category   string `json:"category,omitempty"`
}
