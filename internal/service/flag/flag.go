package flag

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"

	"github.com/jgivc/ghrelay/internal/common"
	"github.com/jgivc/ghrelay/internal/config"
	"github.com/jgivc/ghrelay/internal/entity"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	serviceName   = "flag"
	allCategories = "all"
	imageBaseName = "image"
)

var imageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

type FlagSource interface {
	Tree(ctx context.Context, owner, repo, ref string) ([]entity.TreeEntry, error)
	RawURL(owner, repo, ref, path string) string
	Exists(ctx context.Context, rawURL string) (bool, error)
}

type ManifestLoader interface {
	Load(ctx context.Context, refs []entity.ManifestRef) []*entity.FlagManifest
}

type flagService struct {
	refreshing atomic.Bool
	src        FlagSource
	loader     ManifestLoader
	cfg        *config.FlagsConfig
	log        *slog.Logger
}

func NewFlagService(src FlagSource, loader ManifestLoader, cfg *config.FlagsConfig, log *slog.Logger) *flagService {
	return &flagService{
		src:    src,
		loader: loader,
		cfg:    cfg,
		log:    log.With(slog.String("service", serviceName)),
	}
}

// Categories builds the catalog from the flags repository. When the tree cannot be read or is empty
// the example catalog is returned instead.
func (s *flagService) Categories(ctx context.Context) []entity.FlagCategory {
	tree, err := s.src.Tree(ctx, s.cfg.Owner, s.cfg.Repo, s.cfg.Ref)
	if err != nil {
		s.log.Error("Cannot fetch flags tree, using fallback catalog", slog.Any("error", err))

		return FallbackCategories()
	}

	if len(tree) == 0 {
		s.log.Warn("Flags tree is empty, using fallback catalog")

		return FallbackCategories()
	}

	return s.Aggregate(ctx, tree)
}

func (s *flagService) Aggregate(ctx context.Context, tree []entity.TreeEntry) []entity.FlagCategory {
	refs := DiscoverManifests(tree)
	manifests := s.loader.Load(ctx, refs)
	categories := Aggregate(refs, manifests)

	s.log.Debug("Catalog built", slog.Int("manifests", len(refs)), slog.Int("categories", len(categories)))

	return categories
}

// Search filters the catalog by query, limited to category unless it is empty or "all".
func (s *flagService) Search(ctx context.Context, query, category string) *entity.FlagSearchResult {
	categories := s.Categories(ctx)

	var flags []entity.Flag
	if category == "" || strings.EqualFold(category, allCategories) {
		flags = Flatten(categories)
	} else {
		flags = make([]entity.Flag, 0)
		for _, c := range categories {
			if strings.EqualFold(c.Name, category) {
				flags = append(flags, c.Flags...)
			}
		}
	}

	return &entity.FlagSearchResult{
		Query:      query,
		Category:   category,
		Categories: categories,
		Flags:      Search(flags, query),
	}
}

// Image returns the raw url of the first existing image.{jpg,jpeg,png,gif,webp} of a flag folder.
func (s *flagService) Image(ctx context.Context, category, folder string) (string, error) {
	if !validSegment(category) || !validSegment(folder) {
		return "", fmt.Errorf("bad flag folder %s/%s: %w", category, folder, common.ErrInvalidArgument)
	}

	for _, ext := range imageExtensions {
		url := s.src.RawURL(s.cfg.Owner, s.cfg.Repo, s.cfg.Ref, path.Join(category, folder, imageBaseName+"."+ext))

		ok, err := s.src.Exists(ctx, url)
		if err != nil {
			return "", fmt.Errorf("cannot probe flag image: %w", err)
		}

		if ok {
			return url, nil
		}
	}

	return "", fmt.Errorf("flag %s/%s: %w", category, folder, common.ErrImageNotFound)
}

// Warm rebuilds the catalog so that the upstream responses land in the cache.
func (s *flagService) Warm(ctx context.Context) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		return common.ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	categories := s.Categories(ctx)
	s.log.Info("Catalog refreshed", slog.Int("categories", len(categories)), slog.Int("flags", len(Flatten(categories))))

	return nil
}

// Dump writes the catalog to fileName as yaml.
func (s *flagService) Dump(ctx context.Context, fs afero.Fs, fileName string) error {
	categories := s.Categories(ctx)

	data, err := yaml.Marshal(categories)
	if err != nil {
		return fmt.Errorf("cannot encode catalog: %w", err)
	}

	if err := afero.WriteFile(fs, fileName, data, 0644); err != nil {
		return fmt.Errorf("cannot write catalog to %s: %w", fileName, err)
	}

	s.log.Info("Catalog dumped", slog.String("file", fileName), slog.Int("categories", len(categories)))

	return nil
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
