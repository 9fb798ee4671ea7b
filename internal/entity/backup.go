package entity

type BackupManifest struct {
	ManifestVersion *int        `json:"manifest_version,omitempty"`
	Manifest        *BackupInfo `json:"manifest,omitempty"`
}

type BackupInfo struct {
	VersionName    string         `json:"version_name"`
	BackupVersion  int            `json:"backup_version"`
	Author         string         `json:"author"`
	Changelog      string         `json:"changelog,omitempty"`
	Name           string         `json:"name"`
	LastUpdated    string         `json:"last_updated"`
	Description    string         `json:"description"`
	Optional       *BackupOptions `json:"optional,omitempty"`
	OptionalValues map[string]any `json:"optional_values,omitempty"`
}

type BackupOptions struct {
	ShowAuthorSocials bool `json:"show_author_socials"`
}

// Backup is the shaped view of one backup folder.
type Backup struct {
	ID            string          `json:"id"`
	Manifest      *BackupManifest `json:"manifest"`
	OverridesURL  *string         `json:"overrides_url"`
	ChangelogHTML string          `json:"changelog_html,omitempty"`
}
