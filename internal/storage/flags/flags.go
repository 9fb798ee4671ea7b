package flags

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	_ "embed"

	"github.com/goccy/go-json"
	"github.com/jgivc/ghrelay/internal/common"
	"github.com/jgivc/ghrelay/internal/config"
	"github.com/jgivc/ghrelay/internal/entity"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	ManifestFileName = "manifest.json"

	schemaName = "manifest.schema.json"
)

//go:embed manifest.schema.json
var manifestSchema string

type ManifestFetcher interface {
	RawURL(owner, repo, ref, path string) string
	Raw(ctx context.Context, rawURL string) ([]byte, error)
}

type loaded struct {
	idx      int
	manifest *entity.FlagManifest
}

type manifestStorage struct {
	fetcher ManifestFetcher
	cfg     *config.FlagsConfig
	schema  *jsonschema.Schema
	log     *slog.Logger
}

func NewManifestStorage(fetcher ManifestFetcher, cfg *config.FlagsConfig, log *slog.Logger) (*manifestStorage, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(manifestSchema))
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaName, doc); err != nil {
		return nil, fmt.Errorf("cannot add manifest schema: %w", err)
	}

	schema, err := c.Compile(schemaName)
	if err != nil {
		return nil, fmt.Errorf("cannot compile manifest schema: %w", err)
	}

	return &manifestStorage{
		fetcher: fetcher,
		cfg:     cfg,
		schema:  schema,
		log:     log.With(slog.String("item", "ManifestStorage")),
	}, nil
}

// Load fetches all manifests with cfg.Workers workers. The result is aligned with refs;
// a manifest that cannot be loaded is nil and does not affect the others.
func (s *manifestStorage) Load(ctx context.Context, refs []entity.ManifestRef) []*entity.FlagManifest {
	manifests := make([]*entity.FlagManifest, len(refs))
	if len(refs) == 0 {
		return manifests
	}

	in := make(chan int, len(refs))
	out := make(chan loaded, len(refs))

	for i := range refs {
		in <- i
	}
	close(in)

	workers := min(s.cfg.Workers, len(refs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go s.worker(ctx, n, refs, in, out, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	for l := range out {
		manifests[l.idx] = l.manifest
	}

	return manifests
}

func (s *manifestStorage) worker(ctx context.Context, n int, refs []entity.ManifestRef, in chan int, out chan loaded, wg *sync.WaitGroup) {
	defer wg.Done()

	log := s.log.With(slog.Int("worker_id", n))
	log.Debug("Started")

	for idx := range in {
		ref := refs[idx]

		manifest, err := s.LoadManifest(ctx, ref.Category, ref.Folder)
		if err != nil {
			log.Warn("Cannot load manifest", slog.String("category", ref.Category), slog.String("folder", ref.Folder), slog.Any("error", err))

			continue
		}

		select {
		case <-ctx.Done():
			log.Info("Interrupted")

			return
		case out <- loaded{idx: idx, manifest: manifest}:
		}
	}

	log.Debug("Done")
}

func (s *manifestStorage) LoadManifest(ctx context.Context, category, folder string) (*entity.FlagManifest, error) {
	url := s.fetcher.RawURL(s.cfg.Owner, s.cfg.Repo, s.cfg.Ref, path.Join(category, folder, ManifestFileName))

	data, err := s.fetcher.Raw(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch manifest %s: %w", url, err)
	}

	return s.parse(data)
}

func (s *manifestStorage) parse(data []byte) (*entity.FlagManifest, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, common.ParseError.Wrap(fmt.Errorf("cannot decode manifest: %w", err))
	}

	if err := s.schema.Validate(inst); err != nil {
		return nil, common.ParseError.Wrap(fmt.Errorf("invalid manifest: %w", err))
	}

	var manifest entity.FlagManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, common.ParseError.Wrap(fmt.Errorf("cannot decode manifest: %w", err))
	}

	return &manifest, nil
}
