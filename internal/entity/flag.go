package entity

// FlagOption holds the behavioral toggles of a flag.
type FlagOption struct {
	IsEnabled                  bool `json:"is_enabled" yaml:"is_enabled"`
	DeleteMedia                bool `json:"delete_media" yaml:"delete_media"`
	EditMedia                  bool `json:"edit_media" yaml:"edit_media"`
	FavoriteMedia              bool `json:"favorite_media" yaml:"favorite_media"`
	IsRedesignedPreviewEnabled bool `json:"is_redesigned_preview_enabled" yaml:"is_redesigned_preview_enabled"`
}

type Flag struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Source      string     `json:"source" yaml:"source"`
	Tags        []string   `json:"tags" yaml:"tags"`
	Author      string     `json:"author" yaml:"author"`
	DateAdded   string     `json:"date_added" yaml:"date_added"`
	DateRemoved *string    `json:"date_removed" yaml:"date_removed"`
	Options     FlagOption `json:"options" yaml:"options"`
	FlagName    *string    `json:"flag_name,omitempty" yaml:"flag_name,omitempty"`
}

type FlagManifest struct {
	Flags []Flag `json:"flags"`
}

type FlagCategory struct {
	Name  string `json:"name" yaml:"name"`
	Path  string `json:"path" yaml:"path"`
	Icon  string `json:"icon" yaml:"icon"`
	Flags []Flag `json:"flags" yaml:"flags"`
}

// ManifestRef points at <Category>/<Folder>/manifest.json. Index is the position in the tree.
type ManifestRef struct {
	Category string
	Folder   string
	Index    int
}

// FlagSearchResult is a filtered view over the catalog.
type FlagSearchResult struct {
	Query      string         `json:"query"`
	Category   string         `json:"category"`
	Categories []FlagCategory `json:"categories"`
	Flags      []Flag         `json:"flags"`
}
