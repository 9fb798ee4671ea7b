package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/ghrelay/internal/adapter/ghadapter"
	"github.com/jgivc/ghrelay/internal/adapter/mdadapter"
	"github.com/jgivc/ghrelay/internal/config"
	"github.com/jgivc/ghrelay/internal/entity"
	httphandler "github.com/jgivc/ghrelay/internal/handler/http"
	"github.com/jgivc/ghrelay/internal/repository/cache"
	"github.com/jgivc/ghrelay/internal/service/backup"
	"github.com/jgivc/ghrelay/internal/service/download"
	"github.com/jgivc/ghrelay/internal/service/flag"
	"github.com/jgivc/ghrelay/internal/service/proxy"
	"github.com/jgivc/ghrelay/internal/service/refresh"
	"github.com/jgivc/ghrelay/internal/service/release"
	"github.com/jgivc/ghrelay/internal/storage/flags"
	"github.com/klauspost/compress/gzhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

const (
	refreshTimeout = 2 * time.Minute
	dumpTimeout    = 2 * time.Minute
)

type FlagService interface {
	Search(ctx context.Context, query, category string) *entity.FlagSearchResult
	Image(ctx context.Context, category, folder string) (string, error)
	Warm(ctx context.Context) error
	Dump(ctx context.Context, fs afero.Fs, fileName string) error
}

// sweeper is a cache backend that needs expired entries collected. Redis expires keys itself.
type sweeper interface {
	Sweep(ctx context.Context) error
}

type App struct {
	cfgPath   string
	cfg       *config.Config
	srv       *http.Server
	rdb       *redis.Client
	store     ghadapter.Cache
	releases  *release.ReleaseService
	flags     FlagService
	refresher *refresh.RefreshService
	log       *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

// Init loads the config and wires every service. Start calls it, CLI commands that do not
// serve call it directly.
func (a *App) Init(ctx context.Context) error {
	cfg, err := config.Load(afero.NewOsFs(), a.cfgPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	a.cfg = cfg

	lo := &slog.HandlerOptions{}
	switch cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return fmt.Errorf("unknown log level %s", cfg.LogLevel)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	store, err := a.newCache(ctx)
	if err != nil {
		return err
	}
	a.store = store

	client, err := ghadapter.NewClient(&cfg.GitHub, store, cfg.Cache.TTL, log)
	if err != nil {
		return fmt.Errorf("cannot create github client: %w", err)
	}

	renderer, err := mdadapter.NewRenderer()
	if err != nil {
		return fmt.Errorf("cannot create markdown renderer: %w", err)
	}

	manifests, err := flags.NewManifestStorage(client, &cfg.Flags, log)
	if err != nil {
		return fmt.Errorf("cannot create manifest storage: %w", err)
	}

	a.releases = release.NewReleaseService(client, renderer, &cfg.Releases, log)
	a.flags = flag.NewFlagService(client, manifests, &cfg.Flags, log)
	backups := backup.NewBackupService(client, renderer, &cfg.Backups, log)
	a.refresher = refresh.NewRefreshService(a.releases, backups, a.flags, log)

	mux := http.NewServeMux()

	pSrv := proxy.NewProxyService(client, &cfg.Releases.RepoConfig, log)
	contents := httphandler.NewContentsHandler(pSrv, log)
	mux.Handle("GET /api/github/contents/{owner}/{repo}", contents)
	mux.Handle("GET /api/github/contents/{owner}/{repo}/{path...}", contents)
	mux.Handle("GET /api/github/releases", httphandler.NewReleasesHandler(pSrv, log))

	mux.Handle("GET /api/downloads", httphandler.NewDownloadsHandler(a.releases, log))
	mux.Handle("GET /api/download", httphandler.NewFileHandler(download.NewDownloadService(client, log), log))

	mux.Handle("GET /api/flags", httphandler.NewFlagsHandler(a.flags, log))
	mux.Handle("GET /api/flags/{category}/{folder}/image", httphandler.NewFlagImageHandler(a.flags, log))

	mux.Handle("GET /api/backups", httphandler.NewBackupsHandler(backups, log))
	mux.Handle("GET /api/backups/{id}", httphandler.NewBackupHandler(backups, log))

	mux.Handle("POST /api/refresh", httphandler.NewRefreshHandler(a.refresher, log))
	mux.Handle("GET /healthz", httphandler.NewHealthHandler())

	a.srv = &http.Server{
		Addr:    cfg.Listen,
		Handler: httphandler.AccessLog(gzhttp.GzipHandler(mux), log),
	}

	return nil
}

func (a *App) newCache(ctx context.Context) (ghadapter.Cache, error) {
	switch a.cfg.Cache.Backend {
	case config.CacheBackendRedis:
		opt, err := redis.ParseURL(a.cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("cannot parse redis url: %w", err)
		}

		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			rdb.Close()

			return nil, fmt.Errorf("cannot connect to redis: %w", err)
		}
		a.rdb = rdb

		return cache.NewRedisCache(rdb, a.log), nil
	case config.CacheBackendFS:
		c, err := cache.NewFSCache(afero.NewOsFs(), a.cfg.Cache.Dir, a.cfg.Cache.MaxSize, a.log)
		if err != nil {
			return nil, fmt.Errorf("cannot create fs cache: %w", err)
		}

		return c, nil
	}

	return cache.NewMemoryCache(a.cfg.Cache.MaxSize, a.log), nil
}

func (a *App) Start() {
	if err := a.Init(context.Background()); err != nil {
		panic(err)
	}

	go func() {
		a.log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

// Index refreshes the cached upstream data.
func (a *App) Index() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := a.refresher.Refresh(ctx); err != nil {
		a.log.Error("Cannot refresh", slog.Any("error", err))

		return
	}

	a.log.Info("Refresh done")

	if s, ok := a.store.(sweeper); ok {
		if err := s.Sweep(ctx); err != nil {
			a.log.Error("Cannot sweep cache", slog.Any("error", err))
		}
	}
}

// Dump writes the flag catalog to the configured dump file.
func (a *App) Dump() {
	if err := a.DumpFlags(context.Background(), a.cfg.Flags.DumpFileName); err != nil {
		a.log.Error("Cannot dump flags", slog.Any("error", err))
	}
}

func (a *App) DumpFlags(ctx context.Context, fileName string) error {
	ctx, cancel := context.WithTimeout(ctx, dumpTimeout)
	defer cancel()

	return a.flags.Dump(ctx, afero.NewOsFs(), fileName)
}

func (a *App) SearchFlags(ctx context.Context, query, category string) *entity.FlagSearchResult {
	return a.flags.Search(ctx, query, category)
}

func (a *App) Downloads(ctx context.Context, arch entity.Arch, version string) (*entity.DownloadView, error) {
	return a.releases.Downloads(ctx, arch, version)
}

func (a *App) Stop() {
	if a.cfg == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.log.Error("Cannot shutdown server", slog.Any("error", err))
		}
	}

	a.Close()
}

func (a *App) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
}

func (a *App) Config() *config.Config {
	return a.cfg
}
