package backup

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jgivc/ghrelay/internal/common"
	"github.com/jgivc/ghrelay/internal/config"
	"github.com/jgivc/ghrelay/internal/entity"
)

const (
	serviceName = "backup"

	manifestFileName  = "manifest.json"
	overridesFileName = "mc_overrides.json"
)

type BackupSource interface {
	ListDir(ctx context.Context, owner, repo, path string) ([]entity.RepoEntry, error)
	Contents(ctx context.Context, owner, repo, path string, raw bool) (*entity.Payload, error)
}

type ChangelogRenderer interface {
	Render(src string, assets []entity.ReleaseAsset) (string, map[string]any, error)
}

type backupService struct {
	src   BackupSource
	notes ChangelogRenderer
	cfg   *config.RepoConfig
	log   *slog.Logger
}

func NewBackupService(src BackupSource, notes ChangelogRenderer, cfg *config.RepoConfig, log *slog.Logger) *backupService {
	return &backupService{
		src:   src,
		notes: notes,
		cfg:   cfg,
		log:   log.With(slog.String("service", serviceName)),
	}
}

// List returns the backup folders at the repository root.
func (b *backupService) List(ctx context.Context) ([]entity.RepoEntry, error) {
	entries, err := b.src.ListDir(ctx, b.cfg.Owner, b.cfg.Repo, "")
	if err != nil {
		b.log.Error("Cannot list backups", slog.Any("error", err))

		return nil, fmt.Errorf("cannot list backups: %w", err)
	}

	dirs := make([]entity.RepoEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type == entity.EntryTypeDir {
			dirs = append(dirs, e)
		}
	}

	return dirs, nil
}

// Get reads one backup folder. A missing or broken manifest leaves Manifest nil.
func (b *backupService) Get(ctx context.Context, id string) (*entity.Backup, error) {
	if !validID(id) {
		return nil, fmt.Errorf("backup %q: %w", id, common.ErrInvalidBackupID)
	}

	entries, err := b.src.ListDir(ctx, b.cfg.Owner, b.cfg.Repo, id)
	if err != nil {
		if common.UpstreamStatus(err) == http.StatusNotFound {
			return nil, fmt.Errorf("backup %s: %w", id, common.ErrBackupNotFound)
		}

		b.log.Error("Cannot list backup folder", slog.String("backup_id", id), slog.Any("error", err))

		return nil, fmt.Errorf("cannot list backup %s: %w", id, err)
	}

	backup := &entity.Backup{ID: id}

	var hasManifest bool
	for _, e := range entries {
		if e.Type != entity.EntryTypeFile {
			continue
		}

		switch e.Name {
		case manifestFileName:
			hasManifest = true
		case overridesFileName:
			backup.OverridesURL = e.DownloadURL
		}
	}

	if hasManifest {
		backup.Manifest = b.manifest(ctx, id)
	}

	if backup.Manifest != nil && backup.Manifest.Manifest != nil && backup.Manifest.Manifest.Changelog != "" {
		html, _, err := b.notes.Render(backup.Manifest.Manifest.Changelog, nil)
		if err != nil {
			b.log.Error("Cannot render changelog", slog.String("backup_id", id), slog.Any("error", err))
		} else {
			backup.ChangelogHTML = html
		}
	}

	return backup, nil
}

func (b *backupService) manifest(ctx context.Context, id string) *entity.BackupManifest {
	log := b.log.With(slog.String("backup_id", id))

	payload, err := b.src.Contents(ctx, b.cfg.Owner, b.cfg.Repo, path.Join(id, manifestFileName), true)
	if err != nil {
		log.Warn("Cannot fetch manifest", slog.Any("error", err))

		return nil
	}

	var manifest entity.BackupManifest
	if err := json.Unmarshal(payload.Body, &manifest); err != nil {
		log.Warn("Cannot decode manifest", slog.Any("error", err))

		return nil
	}

	return &manifest
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
