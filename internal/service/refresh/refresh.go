package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jgivc/ghrelay/internal/entity"
)

type ReleaseService interface {
	Downloads(ctx context.Context, arch entity.Arch, version string) (*entity.DownloadView, error)
}

type BackupService interface {
	List(ctx context.Context) ([]entity.RepoEntry, error)
}

type FlagService interface {
	Warm(ctx context.Context) error
}

// RefreshService pulls the upstream data every page depends on so that it lands in the cache.
type RefreshService struct {
	releases ReleaseService
	backups  BackupService
	flags    FlagService
	log      *slog.Logger
}

func NewRefreshService(releases ReleaseService, backups BackupService, flags FlagService, log *slog.Logger) *RefreshService {
	return &RefreshService{
		releases: releases,
		backups:  backups,
		flags:    flags,
		log:      log.With(slog.String("item", "RefreshService")),
	}
}

func (r *RefreshService) Refresh(ctx context.Context) error {
	var errs []error

	view, err := r.releases.Downloads(ctx, entity.ArchUnknown, "")
	if err != nil {
		r.log.Error("Cannot refresh releases", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("cannot refresh releases: %w", err))
	} else {
		r.log.Info("Releases refreshed", slog.Bool("found", view.Found))
	}

	backups, err := r.backups.List(ctx)
	if err != nil {
		r.log.Error("Cannot refresh backups", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("cannot refresh backups: %w", err))
	} else {
		r.log.Info("Backups refreshed", slog.Int("count", len(backups)))
	}

	if err := r.flags.Warm(ctx); err != nil {
		r.log.Error("Cannot refresh flags", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("cannot refresh flags: %w", err))
	}

	return errors.Join(errs...)
}
