package entity

import "time"

// Arch is a CPU architecture bucket for APK selection. The zero value is the unknown bucket.
type Arch string

const (
	ArchUnknown Arch = ""
	Arch32      Arch = "32"
	Arch64      Arch = "64"
)

func ParseArch(s string) Arch {
	switch Arch(s) {
	case Arch32:
		return Arch32
	case Arch64:
		return Arch64
	}

	return ArchUnknown
}

// ReleaseAsset is a single downloadable file attached to a release.
type ReleaseAsset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Release is a tagged, published version of the app.
type Release struct {
	Tag         string         `json:"tag_name"`
	Title       *string        `json:"name"`
	Notes       *string        `json:"body"`
	Assets      []ReleaseAsset `json:"assets"`
	PublishedAt time.Time      `json:"published_at"`
}

// AssetPick is an asset together with the release that owns it.
type AssetPick struct {
	Asset   ReleaseAsset `json:"asset"`
	Release *Release     `json:"release"`
}

type DownloadView struct {
	Found     bool           `json:"found"`
	Arch      Arch           `json:"arch"`
	Version   string         `json:"version,omitempty"`
	Legacy    bool           `json:"legacy"`
	Release   *Release       `json:"release"`
	Standard  *AssetPick     `json:"standard"`
	Clone     *AssetPick     `json:"clone"`
	NotesHTML string         `json:"notes_html,omitempty"`
	NotesMeta map[string]any `json:"notes_meta,omitempty"`
}
