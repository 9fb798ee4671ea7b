package release

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jgivc/ghrelay/internal/common"
	"github.com/jgivc/ghrelay/internal/config"
	"github.com/jgivc/ghrelay/internal/entity"
)

const (
	serviceName = "release"
)

type ReleaseSource interface {
	Releases(ctx context.Context, owner, repo string) ([]entity.Release, error)
}

type NotesRenderer interface {
	Render(src string, assets []entity.ReleaseAsset) (string, map[string]any, error)
}

type ReleaseService struct {
	src   ReleaseSource
	notes NotesRenderer
	cfg   *config.ReleasesConfig
	log   *slog.Logger
}

func NewReleaseService(src ReleaseSource, notes NotesRenderer, cfg *config.ReleasesConfig, log *slog.Logger) *ReleaseService {
	return &ReleaseService{
		src:   src,
		notes: notes,
		cfg:   cfg,
		log:   log.With(slog.String("service", serviceName)),
	}
}

// Downloads answers which APKs a user with arch should download. With a version the
// answer is limited to that release and flagged legacy unless it is the current one.
// No releases at all is reported as Found=false, not as an error.
func (s *ReleaseService) Downloads(ctx context.Context, arch entity.Arch, version string) (*entity.DownloadView, error) {
	releases, err := s.src.Releases(ctx, s.cfg.Owner, s.cfg.Repo)
	if err != nil {
		s.log.Error("Cannot get releases", slog.String("owner", s.cfg.Owner), slog.String("repo", s.cfg.Repo), slog.Any("error", err))

		return nil, fmt.Errorf("cannot get releases: %w", err)
	}

	view := &entity.DownloadView{
		Arch:    arch,
		Version: version,
	}

	if len(releases) < 1 {
		s.log.Info("No releases found")

		return view, nil
	}

	if version == "" {
		view.Release = MostRecentReleaseFor(releases, arch)
		view.Standard, view.Clone = LatestVariants(SelectAssetsForArchitecture(releases, arch))
	} else {
		target := findVersion(releases, version)
		if target == nil {
			return nil, fmt.Errorf("cannot find version %s: %w", version, common.ErrReleaseNotFound)
		}

		view.Release = target
		view.Legacy = !s.isCurrent(releases, target, version)
		view.Standard, view.Clone = LatestVariants(releaseAssets(target, arch))
	}

	view.Found = true

	if view.Release.Notes != nil {
		html, meta, err := s.notes.Render(*view.Release.Notes, view.Release.Assets)
		if err != nil {
			s.log.Error("Cannot render release notes", slog.String("tag", view.Release.Tag), slog.Any("error", err))
		} else {
			view.NotesHTML = html
			view.NotesMeta = meta
		}
	}

	return view, nil
}

func (s *ReleaseService) isCurrent(releases []entity.Release, target *entity.Release, version string) bool {
	latest := Newest(releases)
	if strings.EqualFold(target.Tag, latest.Tag) || strings.EqualFold(version, latest.Tag) {
		return true
	}

	for _, alias := range s.cfg.CurrentAliases {
		if strings.EqualFold(version, alias) {
			return true
		}
	}

	return false
}

func findVersion(releases []entity.Release, version string) *entity.Release {
	for i := range releases {
		if releases[i].Tag == version {
			return &releases[i]
		}
	}

	for i := range releases {
		if releases[i].Title != nil && strings.Contains(*releases[i].Title, version) {
			return &releases[i]
		}
	}

	return nil
}

// releaseAssets returns the APKs of one release, limited to arch unless arch is unknown.
func releaseAssets(r *entity.Release, arch entity.Arch) []entity.AssetPick {
	var picks []entity.AssetPick
	for _, asset := range r.Assets {
		if !IsAPK(asset.Name) {
			continue
		}

		if arch != entity.ArchUnknown && ClassifyArchitecture(asset.Name) != arch {
			continue
		}

		picks = append(picks, entity.AssetPick{Asset: asset, Release: r})
	}

	return picks
}
