package entity

const (
	EntryTypeFile = "file"
	EntryTypeDir  = "dir"

	TreeTypeBlob = "blob"
	TreeTypeTree = "tree"
)

// RepoEntry is one node of a repository contents listing.
type RepoEntry struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Type        string  `json:"type"`
	DownloadURL *string `json:"download_url"`
	SHA         string  `json:"sha"`
	Size        int64   `json:"size"`
}

// TreeEntry is one node of a recursive git tree.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Payload is an upstream response relayed verbatim.
type Payload struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}
