package proxy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/ghrelay/internal/config"
	"github.com/jgivc/ghrelay/internal/entity"
)

const (
	serviceName = "proxy"
)

type GitHubRepository interface {
	Contents(ctx context.Context, owner, repo, path string, raw bool) (*entity.Payload, error)
	ReleasesPayload(ctx context.Context, owner, repo string) (*entity.Payload, error)
}

type proxyService struct {
	repo     GitHubRepository
	releases *config.RepoConfig
	log      *slog.Logger
}

func NewProxyService(repo GitHubRepository, releases *config.RepoConfig, log *slog.Logger) *proxyService {
	return &proxyService{
		repo:     repo,
		releases: releases,
		log:      log.With(slog.String("service", serviceName)),
	}
}

func (p *proxyService) Contents(ctx context.Context, owner, repo, path string, raw bool) (*entity.Payload, error) {
	payload, err := p.repo.Contents(ctx, owner, repo, path, raw)
	if err != nil {
		p.log.Error("Cannot get contents", slog.String("owner", owner), slog.String("repo", repo),
			slog.String("path", path), slog.Bool("raw", raw), slog.Any("error", err))

		return nil, fmt.Errorf("cannot get contents of %s/%s/%s: %w", owner, repo, path, err)
	}

	return payload, nil
}

// Releases relays the release list of the configured application repository.
func (p *proxyService) Releases(ctx context.Context) (*entity.Payload, error) {
	payload, err := p.repo.ReleasesPayload(ctx, p.releases.Owner, p.releases.Repo)
	if err != nil {
		p.log.Error("Cannot get releases", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get releases of %s/%s: %w", p.releases.Owner, p.releases.Repo, err)
	}

	return payload, nil
}
